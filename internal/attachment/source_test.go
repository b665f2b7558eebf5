package attachment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDirSourceOpen(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "bills"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "bills", "hotel.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src := NewDirSource(root)
	data, err := src.Open(context.Background(), "bills/hotel.png")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("unexpected data %q", data)
	}

	for _, ref := range []string{"bills/missing.png", "", "../../etc/passwd"} {
		if _, err := src.Open(context.Background(), ref); !errors.Is(err, ErrNotFound) {
			t.Fatalf("ref %q: expected ErrNotFound, got %v", ref, err)
		}
	}
}

func TestS3ObjectKey(t *testing.T) {
	s := &S3Source{bucket: "claims"}
	tests := map[string]string{
		"s3://claims/uploads/a.png":                   "uploads/a.png",
		"https://claims.s3.amazonaws.com/uploads/a.png": "uploads/a.png",
		"/uploads/a.png":                              "uploads/a.png",
		"uploads/a.png":                               "uploads/a.png",
	}
	for ref, want := range tests {
		if got := s.objectKey(ref); got != want {
			t.Fatalf("objectKey(%q) = %q, want %q", ref, got, want)
		}
	}
}
