// Package files resolves attachment ids to readable files.
//
// Uploads live under <root>/<project_id>/<file_id>. How they get there is
// someone else's job; this package only locates them, sniffs their type and
// reads text content for prompts.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrFileNotFound = errors.New("file_not_found")

// Attachment describes a resolved upload.
type Attachment struct {
	FileID   string `json:"file_id"`
	Name     string `json:"name"`
	Path     string `json:"-"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	IsText   bool   `json:"is_text"`
}

// Resolver maps a file id within a project to an attachment.
type Resolver interface {
	Resolve(ctx context.Context, projectID, fileID string) (*Attachment, error)
}

// DirResolver resolves attachments from a directory tree.
type DirResolver struct {
	root string
}

func NewDirResolver(root string) *DirResolver {
	return &DirResolver{root: root}
}

func (r *DirResolver) Resolve(ctx context.Context, projectID, fileID string) (*Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validSegment(projectID) || !validSegment(fileID) {
		return nil, ErrFileNotFound
	}
	path := filepath.Join(r.root, projectID, fileID)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("files: stat %s: %w", fileID, err)
	}
	if info.IsDir() {
		return nil, ErrFileNotFound
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("files: detect %s: %w", fileID, err)
	}
	return &Attachment{
		FileID:   fileID,
		Name:     info.Name(),
		Path:     path,
		MimeType: mt.String(),
		Size:     info.Size(),
		IsText:   isText(mt),
	}, nil
}

// ReadText returns up to maxBytes of the attachment's content. The second
// return reports whether the content was cut short.
func (a *Attachment) ReadText(maxBytes int64) (string, bool, error) {
	if !a.IsText {
		return "", false, fmt.Errorf("files: %s is %s, not text", a.FileID, a.MimeType)
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return "", false, fmt.Errorf("files: open %s: %w", a.FileID, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return "", false, fmt.Errorf("files: read %s: %w", a.FileID, err)
	}
	return string(data), a.Size > maxBytes, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func validSegment(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}
