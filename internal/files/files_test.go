package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeUpload(t *testing.T, root, project, id string, data []byte) {
	t.Helper()
	dir := filepath.Join(root, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestResolve_Text(t *testing.T) {
	root := t.TempDir()
	writeUpload(t, root, "p1", "notes.txt", []byte("hello attachment\n"))

	r := NewDirResolver(root)
	a, err := r.Resolve(context.Background(), "p1", "notes.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !a.IsText {
		t.Errorf("expected text, got %s", a.MimeType)
	}
	if !strings.HasPrefix(a.MimeType, "text/plain") {
		t.Errorf("MimeType = %s", a.MimeType)
	}
	text, truncated, err := a.ReadText(5)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if text != "hello" || !truncated {
		t.Errorf("ReadText = %q, %v", text, truncated)
	}
}

func TestResolve_Binary(t *testing.T) {
	root := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	writeUpload(t, root, "p1", "img", png)

	a, err := NewDirResolver(root).Resolve(context.Background(), "p1", "img")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.MimeType != "image/png" {
		t.Errorf("MimeType = %s, want image/png", a.MimeType)
	}
	if _, _, err := a.ReadText(10); err == nil {
		t.Error("expected ReadText to refuse binary content")
	}
}

func TestResolve_NotFound(t *testing.T) {
	root := t.TempDir()
	writeUpload(t, root, "p1", "a.txt", []byte("x"))
	r := NewDirResolver(root)

	for _, tc := range []struct{ project, id string }{
		{"p1", "missing.txt"},
		{"p2", "a.txt"},
		{"p1", "../p1/a.txt"},
		{"..", "a.txt"},
		{"p1", ""},
	} {
		if _, err := r.Resolve(context.Background(), tc.project, tc.id); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("Resolve(%q, %q) = %v, want ErrFileNotFound", tc.project, tc.id, err)
		}
	}
}
