// Package drive fetches tagger input sheets from Google Drive.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType      = "application/vnd.google-apps.folder"
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ErrNotFound = errors.New("drive: not found")

type Service struct {
	srv *drive.Service
}

// NewService authenticates with a service account key in JSON form.
func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	config, err := google.JWTConfigFromJSON([]byte(credentialsJSON), drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}
	return NewServiceWithOptions(ctx, option.WithHTTPClient(config.Client(ctx)))
}

func NewServiceWithOptions(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create drive client: %w", err)
	}
	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
}

func toFile(f *drive.File) *File {
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
	}
}

func (s *Service) GetFile(ctx context.Context, fileID string) (*File, error) {
	f, err := s.srv.Files.Get(fileID).
		Fields("id, name, mimeType, modifiedTime, size").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get file %s: %w", fileID, err)
	}
	return toFile(f), nil
}

// ListFiles lists the non-trashed children of folderID ("root" when empty).
func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}

	var files []*File
	err := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		Pages(ctx, func(list *drive.FileList) error {
			for _, f := range list.Files {
				files = append(files, toFile(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve files: %w", err)
	}
	return files, nil
}

// FindFolderByPath walks a slash separated folder path from the root.
func (s *Service) FindFolderByPath(ctx context.Context, folderPath string) (string, error) {
	currentID := "root"
	for _, folder := range strings.Split(folderPath, "/") {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", folder, err)
		}
		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder %s: %w", folder, ErrNotFound)
		}
		currentID = result.Files[0].Id
	}
	return currentID, nil
}

// FindFileByPath resolves "Folder/Sub/name.xlsx" to a file.
func (s *Service) FindFileByPath(ctx context.Context, filePath string) (*File, error) {
	dir, name := path.Split(strings.Trim(filePath, "/"))
	folderID, err := s.FindFolderByPath(ctx, dir)
	if err != nil {
		return nil, err
	}
	files, err := s.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Name == name && f.MimeType != folderMimeType {
			return f, nil
		}
	}
	return nil, fmt.Errorf("file %s: %w", filePath, ErrNotFound)
}

// DownloadFile copies the content of a binary file to w. Native Google
// Sheets are exported as XLSX.
func (s *Service) DownloadFile(ctx context.Context, f *File, w io.Writer) error {
	var (
		body io.ReadCloser
		err  error
	)
	if f.MimeType == spreadsheetMimeType {
		resp, e := s.srv.Files.Export(f.ID, xlsxMimeType).Context(ctx).Download()
		if e == nil {
			body = resp.Body
		}
		err = e
	} else {
		resp, e := s.srv.Files.Get(f.ID).Context(ctx).Download()
		if e == nil {
			body = resp.Body
		}
		err = e
	}
	if err != nil {
		return fmt.Errorf("unable to download file %s: %w", f.ID, err)
	}
	defer body.Close()

	_, err = io.Copy(w, body)
	return err
}

// LocalName is the file name used when saving f locally.
func LocalName(f *File) string {
	name := filepath.Base(f.Name)
	if f.MimeType == spreadsheetMimeType && !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}

// DownloadToDir saves f into dir and returns the local path.
func (s *Service) DownloadToDir(ctx context.Context, f *File, dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	localPath := filepath.Join(dir, LocalName(f))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", localPath, err)
	}

	if err := s.DownloadFile(ctx, f, out); err != nil {
		out.Close()
		os.Remove(localPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", localPath, err)
	}
	return localPath, nil
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
