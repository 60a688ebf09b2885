package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func uploadHeader(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	w.Close()

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	return req.MultipartForm.File["audio"][0]
}

func TestSaveResolveDelete(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fh := uploadHeader(t, "meeting.mp3", "fake audio bytes")
	ref, size, err := store.Save(fh, 1, 42)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if size != int64(len("fake audio bytes")) {
		t.Errorf("size = %d, want %d", size, len("fake audio bytes"))
	}
	if !strings.HasPrefix(ref, filepath.Join("1", "42")+string(os.PathSeparator)) {
		t.Errorf("ref = %q, want under 1/42/", ref)
	}
	if !strings.HasSuffix(ref, ".mp3") {
		t.Errorf("ref = %q, extension not preserved", ref)
	}

	path, err := store.Resolve(ref)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "fake audio bytes" {
		t.Errorf("content = %q", data)
	}

	if err := store.Delete(ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Resolve(ref); err == nil {
		t.Error("Resolve succeeded after delete")
	}
	// Deleting a missing file is not an error.
	if err := store.Delete(ref); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, ref := range []string{"../secrets", "../../etc/passwd", ".."} {
		if _, err := store.Resolve(ref); err == nil {
			t.Errorf("Resolve(%q) succeeded, want rejection", ref)
		}
	}
}
