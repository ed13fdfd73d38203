// Package media builds object paths and stores uploaded files. Paths are
// purpose-prefixed so a path alone is enough to route retention and access
// rules: avatars/..., reports/<id>/..., projects/<id>/documents/...,
// payments/receipts/...
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"sitevisor.org/internal/ids"
)

var ErrInvalidName = errors.New("invalid file name")

// AvatarPath returns the object path for a user avatar upload.
func AvatarPath(userID, filename string) (string, error) {
	return join("avatars", userID, filename)
}

// ReportMediaPath returns the object path for one report attachment.
// kind is "photos" or "videos".
func ReportMediaPath(reportID, kind, filename string) (string, error) {
	if kind != "photos" && kind != "videos" {
		return "", ErrInvalidName
	}
	return join("reports/"+reportID+"/"+kind, "", filename)
}

// ProjectDocumentPath returns the object path for a project document.
func ProjectDocumentPath(projectID, filename string) (string, error) {
	return join("projects/"+projectID+"/documents", "", filename)
}

// ReceiptPath returns the object path for a payment receipt.
func ReceiptPath(paymentID, filename string) (string, error) {
	return join("payments/receipts", paymentID, filename)
}

// join builds prefix[/owner]/<ulid>-<sanitized name>. The random component
// makes every upload path unique so uploads never overwrite each other.
func join(prefix, owner, filename string) (string, error) {
	name := sanitize(filename)
	if name == "" {
		return "", ErrInvalidName
	}
	parts := []string{prefix}
	if owner != "" {
		parts = append(parts, owner)
	}
	parts = append(parts, ids.New()+"-"+name)
	return path.Join(parts...), nil
}

// sanitize keeps the base name and strips anything that could escape the
// prefix or confuse a URL.
func sanitize(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return ""
	}
	return out
}

// Store persists media objects. The filesystem implementation backs the
// dev server; a bucket-backed one would satisfy the same interface.
type Store interface {
	Save(objectPath string, r io.Reader) error
	Open(objectPath string) (io.ReadCloser, error)
	Remove(objectPath string) error
}

// FS stores objects under a root directory, mirroring the object path
// layout on disk.
type FS struct {
	root string
}

// NewFS creates the root directory if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("media root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &FS{root: root}, nil
}

func (f *FS) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", ErrInvalidName
	}
	return filepath.Join(f.root, filepath.FromSlash(clean)), nil
}

func (f *FS) Save(objectPath string, r io.Reader) error {
	full, err := f.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

func (f *FS) Open(objectPath string) (io.ReadCloser, error) {
	full, err := f.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (f *FS) Remove(objectPath string) error {
	full, err := f.resolve(objectPath)
	if err != nil {
		return err
	}
	return os.Remove(full)
}
