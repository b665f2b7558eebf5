package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tourinvoice/internal/attachment"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"
)

type mapSource map[string][]byte

func (m mapSource) Open(_ context.Context, ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, attachment.ErrNotFound
	}
	return data, nil
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 120, B: 200, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func bmpBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage()); err != nil {
		t.Fatalf("encode bmp: %v", err)
	}
	return buf.Bytes()
}

func newTestRenderer(src attachment.Source) *Renderer {
	return NewRenderer(testOptions(), src, zap.NewNop(), nil)
}

func TestRenderWithAttachments(t *testing.T) {
	src := mapSource{
		"bills/hotel.png":   pngBytes(t),
		"conv/taxi.png":     bmpBytes(t),
		"tickets/train.png": pngBytes(t),
	}
	data, err := newTestRenderer(src).Render(context.Background(), sampleDocument())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestRenderMissingAttachmentUsesPlaceholder(t *testing.T) {
	data, err := newTestRenderer(mapSource{}).Render(context.Background(), sampleDocument())
	if err != nil {
		t.Fatalf("expected success with placeholders, got %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty output")
	}
}

func TestRenderMalformedAttachmentFails(t *testing.T) {
	src := mapSource{
		"bills/hotel.png":   []byte("definitely not an image"),
		"conv/taxi.png":     pngBytes(t),
		"tickets/train.png": pngBytes(t),
	}
	_, err := newTestRenderer(src).Render(context.Background(), sampleDocument())
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if rerr.Stage != "attachment bill #1" {
		t.Fatalf("unexpected stage %q", rerr.Stage)
	}
}

type failingSource struct{}

func (failingSource) Open(context.Context, string) ([]byte, error) {
	return nil, errors.New("bucket unreachable")
}

func TestRenderSourceFailureIsRenderError(t *testing.T) {
	_, err := newTestRenderer(failingSource{}).Render(context.Background(), sampleDocument())
	var rerr *RenderError
	if !errors.As(err, &rerr) || !strings.Contains(rerr.Message, "bucket unreachable") {
		t.Fatalf("expected RenderError carrying source failure, got %v", err)
	}
}

func TestRenderToFile(t *testing.T) {
	dir := t.TempDir()
	path, err := newTestRenderer(nil).RenderToFile(context.Background(), sampleDocument(), dir)
	if err != nil {
		t.Fatalf("render to file: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "invoice-") || filepath.Ext(path) != ".pdf" {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("file is not a PDF")
	}
}

func TestPrepareImage(t *testing.T) {
	typ, _, w, h, err := prepareImage(bmpBytes(t))
	if err != nil {
		t.Fatalf("prepare bmp: %v", err)
	}
	if typ != "PNG" || w != 40 || h != 20 {
		t.Fatalf("got %s %dx%d", typ, w, h)
	}
	if _, _, _, _, err := prepareImage([]byte{0x89, 'P', 'N', 'G'}); err == nil {
		t.Fatalf("expected error for truncated image")
	}
}
