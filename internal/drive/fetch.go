package drive

import (
	"context"
	"fmt"
)

// Source identifies an input sheet either by file ID or by its path in Drive.
type Source struct {
	FileID string
	Path   string
}

func (s Source) IsZero() bool {
	return s.FileID == "" && s.Path == ""
}

// Fetch resolves src and downloads it into dir, returning the local path.
func (s *Service) Fetch(ctx context.Context, src Source, dir string) (string, error) {
	var (
		f   *File
		err error
	)
	switch {
	case src.FileID != "":
		f, err = s.GetFile(ctx, src.FileID)
	case src.Path != "":
		f, err = s.FindFileByPath(ctx, src.Path)
	default:
		return "", fmt.Errorf("drive source requires a file id or a path")
	}
	if err != nil {
		return "", err
	}
	if f.MimeType == folderMimeType {
		return "", fmt.Errorf("%s is a folder", f.Name)
	}
	return s.DownloadToDir(ctx, f, dir)
}
