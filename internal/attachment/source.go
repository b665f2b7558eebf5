// Package attachment resolves attachment references to raw bytes.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a reference does not resolve to stored bytes.
var ErrNotFound = errors.New("attachment not found")

// Source returns the bytes behind an attachment reference. Sources are read-only.
type Source interface {
	Open(ctx context.Context, ref string) ([]byte, error)
}

// DirSource serves references as paths relative to a root directory.
type DirSource struct {
	Root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root}
}

func (s *DirSource) Open(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel := strings.TrimSpace(ref)
	if rel == "" {
		return nil, ErrNotFound
	}
	// Clean against "/" so a reference can never climb out of Root.
	path := filepath.Join(s.Root, filepath.FromSlash(filepath.Clean("/"+rel)))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// New returns an S3Source when bucket is set and a DirSource rooted at dir otherwise.
func New(dir, bucket, region string) (Source, error) {
	if bucket != "" {
		return NewS3Source(region, bucket)
	}
	return NewDirSource(dir), nil
}
