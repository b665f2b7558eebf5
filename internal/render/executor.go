package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"tourinvoice/internal/attachment"

	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"go.uber.org/zap"
)

const (
	fontFamily = "Helvetica"
	// maxImageSide bounds re-encoded attachments, in pixels.
	maxImageSide = 2400
)

// RenderError reports a failure while producing the PDF. Stage is the section being
// drawn, or "output" when the finished document could not be written.
type RenderError struct {
	Stage   string
	Message string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s", e.Stage, e.Message)
}

// Executor replays instructions onto one fpdf document.
type Executor struct {
	pdf      *fpdf.Fpdf
	source   attachment.Source
	log      *zap.Logger
	fontSize float64
	tr       func(string) string
	images   int
}

func NewExecutor(pdf *fpdf.Fpdf, source attachment.Source, fontSize float64, log *zap.Logger) *Executor {
	return &Executor{
		pdf:      pdf,
		source:   source,
		log:      log,
		fontSize: fontSize,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// Run draws every instruction in order and stops at the first failure.
func (e *Executor) Run(ctx context.Context, instructions []Instruction) error {
	for _, in := range instructions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.exec(ctx, in); err != nil {
			return &RenderError{Stage: in.Section(), Message: err.Error()}
		}
		if e.pdf.Err() {
			return &RenderError{Stage: in.Section(), Message: e.pdf.Error().Error()}
		}
	}
	return nil
}

func (e *Executor) exec(ctx context.Context, in Instruction) error {
	switch v := in.(type) {
	case NewPage:
		e.pdf.AddPage()
	case Text:
		e.text(v)
	case Line:
		e.pdf.SetLineWidth(0.2)
		e.pdf.Line(v.X1, v.Y1, v.X2, v.Y2)
	case Image:
		return e.image(ctx, v)
	default:
		return fmt.Errorf("unknown instruction %T", in)
	}
	return nil
}

func (e *Executor) text(t Text) {
	style := ""
	if t.Bold {
		style = "B"
	}
	size := t.Size
	if size == 0 {
		size = e.fontSize
	}
	e.pdf.SetFont(fontFamily, style, size)
	e.pdf.SetXY(t.X, t.Y)
	e.pdf.CellFormat(t.W, t.H, e.fit(e.tr(t.Value), t.W), "", 0, t.Align, false, 0, "")
}

// fit truncates s with an ellipsis so it fits a cell of width w using the current font.
func (e *Executor) fit(s string, w float64) string {
	avail := w - 2*e.pdf.GetCellMargin()
	if e.pdf.GetStringWidth(s) <= avail {
		return s
	}
	for len(s) > 0 && e.pdf.GetStringWidth(s+"...") > avail {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (e *Executor) image(ctx context.Context, img Image) error {
	var data []byte
	var err error
	if e.source == nil {
		err = attachment.ErrNotFound
	} else {
		data, err = e.source.Open(ctx, img.Ref)
	}
	if errors.Is(err, attachment.ErrNotFound) {
		e.log.Warn("attachment missing, drawing placeholder", zap.String("ref", img.Ref))
		e.placeholder(img.Box)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read attachment %q: %w", img.Ref, err)
	}

	imageType, payload, w, h, err := prepareImage(data)
	if err != nil {
		return fmt.Errorf("attachment %q: %w", img.Ref, err)
	}

	e.images++
	name := fmt.Sprintf("attachment-%d", e.images)
	opts := fpdf.ImageOptions{ImageType: imageType}
	e.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(payload))
	if e.pdf.Err() {
		return fmt.Errorf("attachment %q: %w", img.Ref, e.pdf.Error())
	}

	r := FitRect(float64(w), float64(h), img.Box)
	e.pdf.ImageOptions(name, r.X, r.Y, r.W, r.H, false, opts, 0, "")
	return nil
}

func (e *Executor) placeholder(box Rect) {
	const h = 40
	e.pdf.SetLineWidth(0.2)
	e.pdf.Rect(box.X, box.Y, box.W, h, "D")
	e.pdf.SetFont(fontFamily, "I", e.fontSize+2)
	e.pdf.SetXY(box.X, box.Y)
	e.pdf.CellFormat(box.W, h, "attachment not found", "", 0, "C", false, 0, "")
}

// prepareImage returns bytes fpdf can embed along with the pixel size. JPEG passes
// through untouched; every other format is decoded and re-encoded as 8-bit PNG,
// downscaled when either side exceeds maxImageSide.
func prepareImage(data []byte) (imageType string, payload []byte, w, h int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", nil, 0, 0, fmt.Errorf("unsupported or malformed image: %w", err)
	}
	if format == "jpeg" {
		return "JPG", data, cfg.Width, cfg.Height, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, 0, 0, fmt.Errorf("decode %s image: %w", format, err)
	}
	w, h = cfg.Width, cfg.Height
	if side := max(w, h); side > maxImageSide {
		w = max(1, w*maxImageSide/side)
		h = max(1, h*maxImageSide/side)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == cfg.Width && h == cfg.Height {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", nil, 0, 0, fmt.Errorf("encode %s image as png: %w", format, err)
	}
	return "PNG", buf.Bytes(), w, h, nil
}
