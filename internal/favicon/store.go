// Package favicon persists the icons game servers advertise in their status
// response. Icons arrive as base64 PNG data, usually in data-URI form, and are
// written once per server to <dir>/<id>.png.
package favicon

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmpty is returned when the advertised icon carries no data.
var ErrEmpty = errors.New("favicon: empty data")

// ErrInvalidID is returned for ids that cannot be used as a file name.
var ErrInvalidID = errors.New("favicon: invalid id")

// Store writes icons into a single directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created lazily on
// the first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory icons are written to.
func (s *Store) Dir() string { return s.dir }

// Path returns where the icon for id is stored.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".png")
}

// Save decodes data and writes it to Path(id), replacing any existing file.
// The write goes through a temp file in the same directory so readers never
// observe a partial image.
func (s *Store) Save(id, data string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	raw, err := Decode(data)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("favicon: create dir %q: %w", s.dir, err)
	}

	path := s.Path(id)
	tmp, err := os.CreateTemp(s.dir, "."+id+"-*.png")
	if err != nil {
		return "", fmt.Errorf("favicon: %s: %w", id, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("favicon: %s: write: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("favicon: %s: close: %w", id, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("favicon: %s: chmod: %w", id, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("favicon: %s: rename: %w", id, err)
	}
	return path, nil
}

// Decode turns the favicon field of a status response into PNG bytes. It
// accepts both "data:image/png;base64,<payload>" and a bare payload, and
// ignores the line breaks some servers insert into the base64 text.
func Decode(data string) ([]byte, error) {
	if _, payload, ok := strings.Cut(data, ","); ok {
		data = payload
	}
	data = strings.NewReplacer("\n", "", "\r", "").Replace(data)
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, ErrEmpty
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("favicon: base64: %w", err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("favicon: not a png: %w", err)
	}
	return raw, nil
}
