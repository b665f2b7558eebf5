package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"tourinvoice/internal/attachment"
	"tourinvoice/internal/logger"
	"tourinvoice/internal/metrics"
	"tourinvoice/internal/model"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
)

// Renderer produces the PDF report for a validated document.
type Renderer struct {
	opts    Options
	source  attachment.Source
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewRenderer(opts Options, source attachment.Source, log *zap.Logger, m *metrics.Metrics) *Renderer {
	return &Renderer{opts: opts, source: source, log: log, metrics: m}
}

// Render lays out doc and returns the PDF bytes. Attachments that cannot be found
// become placeholder pages; any other failure is a *RenderError.
func (r *Renderer) Render(ctx context.Context, doc model.InvoiceDocument) ([]byte, error) {
	start := time.Now()
	data, err := r.render(ctx, doc)
	result := "ok"
	if err != nil {
		result = "error"
		logger.FromContext(ctx, r.log).Error("failed to render invoice", zap.String("employee", doc.Employee.EmployeeName), zap.Error(err))
	}
	r.metrics.ObserveRender(result, time.Since(start))
	return data, err
}

func (r *Renderer) render(ctx context.Context, doc model.InvoiceDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(r.opts.Margin, r.opts.Margin, r.opts.Margin)
	pdf.SetAutoPageBreak(false, r.opts.Margin)
	pdf.SetTitle("Tour Expense Claim - "+doc.Employee.EmployeeName, true)
	pdf.SetCreator("tourinvoice", true)

	ex := NewExecutor(pdf, r.source, r.opts.FontSize, logger.FromContext(ctx, r.log))
	if err := ex.Run(ctx, Layout(doc, r.opts)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Stage: "output", Message: err.Error()}
	}
	return buf.Bytes(), nil
}

// RenderToFile renders doc into a new file invoice-<unixnano>.pdf under dir and
// returns its path. The caller owns the file and must remove it.
func (r *Renderer) RenderToFile(ctx context.Context, doc model.InvoiceDocument, dir string) (string, error) {
	data, err := r.Render(ctx, doc)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = os.TempDir()
	}

	for attempt := 0; attempt < 3; attempt++ {
		path := filepath.Join(dir, fmt.Sprintf("invoice-%d.pdf", time.Now().UnixNano()))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", &RenderError{Stage: "output", Message: err.Error()}
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", &RenderError{Stage: "output", Message: err.Error()}
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", &RenderError{Stage: "output", Message: err.Error()}
		}
		return path, nil
	}
	return "", &RenderError{Stage: "output", Message: "could not allocate a unique report file name"}
}
