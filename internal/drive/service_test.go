package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeDrive serves the few Drive v3 endpoints the service uses.
func fakeDrive(t *testing.T) *Service {
	t.Helper()

	files := map[string]map[string]any{
		"csv1":   {"id": "csv1", "name": "Videos-HardDeletes.csv", "mimeType": "text/csv"},
		"sheet1": {"id": "sheet1", "name": "Hard Deletes", "mimeType": spreadsheetMimeType},
	}
	content := map[string]string{
		"csv1": "location_folder,location_file\nShowA/S01,ep01\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/files/")
		if id, ok := strings.CutSuffix(rest, "/export"); ok {
			assert.Equal(t, xlsxMimeType, r.URL.Query().Get("mimeType"))
			_, _ = w.Write([]byte("xlsx:" + id))
			return
		}
		meta, ok := files[rest]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
			return
		}
		if r.URL.Query().Get("alt") == "media" {
			_, _ = w.Write([]byte(content[rest]))
			return
		}
		_ = json.NewEncoder(w).Encode(meta)
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		var out []map[string]any
		switch {
		case strings.Contains(q, "name='Reports'") && strings.Contains(q, "'root' in parents"):
			out = append(out, map[string]any{"id": "folder1", "name": "Reports"})
		case strings.Contains(q, "'folder1' in parents") && !strings.Contains(q, "name="):
			out = append(out, files["csv1"], map[string]any{"id": "sub", "name": "Archive", "mimeType": folderMimeType})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"files": out})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := NewServiceWithOptions(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return svc
}

func TestFetch_ByID(t *testing.T) {
	svc := fakeDrive(t)
	dir := t.TempDir()

	path, err := svc.Fetch(context.Background(), Source{FileID: "csv1"}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Videos-HardDeletes.csv"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "location_folder,location_file\nShowA/S01,ep01\n", string(b))
}

func TestFetch_ExportsNativeSheets(t *testing.T) {
	svc := fakeDrive(t)
	dir := t.TempDir()

	path, err := svc.Fetch(context.Background(), Source{FileID: "sheet1"}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Hard Deletes.xlsx"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xlsx:sheet1", string(b))
}

func TestFetch_ByPath(t *testing.T) {
	svc := fakeDrive(t)

	path, err := svc.Fetch(context.Background(), Source{Path: "/Reports/Videos-HardDeletes.csv"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Videos-HardDeletes.csv", filepath.Base(path))

	_, err = svc.Fetch(context.Background(), Source{Path: "Reports/missing.csv"}, t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Fetch(context.Background(), Source{Path: "Nope/file.csv"}, t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetch_Errors(t *testing.T) {
	svc := fakeDrive(t)

	_, err := svc.Fetch(context.Background(), Source{}, t.TempDir())
	assert.Error(t, err)

	_, err = svc.Fetch(context.Background(), Source{FileID: "missing"}, t.TempDir())
	assert.ErrorContains(t, err, "missing")
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `Bob\'s \\ files`, escapeQuery(`Bob's \ files`))
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "a.xlsx", LocalName(&File{Name: "a", MimeType: spreadsheetMimeType}))
	assert.Equal(t, "a.XLSX", LocalName(&File{Name: "a.XLSX", MimeType: spreadsheetMimeType}))
	assert.Equal(t, "b.csv", LocalName(&File{Name: "../b.csv", MimeType: "text/csv"}))
}
