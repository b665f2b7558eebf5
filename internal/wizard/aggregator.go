// Package wizard owns the in-progress InvoiceDocument of a multi-step submission.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"tourinvoice/internal/calculator"
	"tourinvoice/internal/metrics"
	"tourinvoice/internal/model"
	"tourinvoice/internal/repository"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PersistenceError reports a failed read or write of the session snapshot.
// StateLost is set when the aggregator had to restart from an empty document.
type PersistenceError struct {
	Op        string
	StateLost bool
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.StateLost {
		return fmt.Sprintf("wizard state %s failed, session restarted empty: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("wizard state %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBackoff sets the retry policy used for snapshot writes.
func WithBackoff(fn func() retry.Backoff) Option {
	return func(a *Aggregator) { a.backoff = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
}

// persistJob is one asynchronous snapshot write. err is valid once done is closed.
type persistJob struct {
	done chan struct{}
	err  error
}

// Aggregator merges step data into one document and mirrors it to a DocumentStore.
// Merges are synchronous; the snapshot write that follows each merge runs in the
// background and is awaited before the document is read or merged again.
type Aggregator struct {
	sessionID string
	store     repository.DocumentStore
	calc      *calculator.Calculator
	log       *zap.Logger
	metrics   *metrics.Metrics
	backoff   func() retry.Backoff

	mu  sync.Mutex
	doc model.InvoiceDocument
	job *persistJob
}

// Open resumes the session stored under sessionID, or starts an empty one.
// A snapshot that cannot be read or decoded is discarded: the returned aggregator is
// empty and usable, and the error is a *PersistenceError with StateLost set.
func Open(ctx context.Context, store repository.DocumentStore, sessionID string, calc *calculator.Calculator, log *zap.Logger, opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		sessionID: sessionID,
		store:     store,
		calc:      calc,
		log:       log.With(zap.String("session_id", sessionID)),
		backoff:   defaultBackoff,
		doc:       newDocument(),
	}
	for _, opt := range opts {
		opt(a)
	}

	data, err := store.Load(ctx, sessionID)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return a, nil
	}
	if err != nil {
		a.log.Error("failed to load wizard snapshot", zap.Error(err))
		return a, &PersistenceError{Op: "load", StateLost: true, Err: err}
	}

	var doc model.InvoiceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		a.log.Warn("discarding unparseable wizard snapshot", zap.Error(err))
		if clearErr := store.Clear(ctx, sessionID); clearErr != nil {
			a.log.Error("failed to clear unparseable wizard snapshot", zap.Error(clearErr))
		}
		return a, &PersistenceError{Op: "decode", StateLost: true, Err: err}
	}
	a.doc = doc
	return a, nil
}

func newDocument() model.InvoiceDocument {
	return model.InvoiceDocument{
		Employee:    model.Employee{AgendaItems: []model.AgendaItem{}},
		TourSummary: model.TourSummary{TourDetails: []model.TourDetail{}},
		Bills:       []model.Bill{},
		Conveyances: []model.Conveyance{},
		Expenses:    []model.Expense{},
		DailyAllowance: model.DailyAllowance{
			DAAmount: decimal.Zero,
		},
		Totals: model.Totals{
			TotalBillAmount:       decimal.Zero,
			TotalConveyanceAmount: decimal.Zero,
			TotalExpenses:         decimal.Zero,
			GrandTotal:            decimal.Zero,
		},
	}
}

func (a *Aggregator) SessionID() string { return a.sessionID }

// MergeStep replaces the keys owned by step and recomputes every derived value.
// When the step's dates are invalid the merge is rejected and the document is unchanged.
func (a *Aggregator) MergeStep(ctx context.Context, step Step) (model.InvoiceDocument, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensurePersisted(ctx); err != nil {
		return a.doc.Clone(), err
	}

	next := a.doc.Clone()
	step.apply(&next)
	if err := a.calc.Recompute(&next); err != nil {
		a.metrics.IncMerge(string(step.ID()), "rejected")
		return a.doc.Clone(), fmt.Errorf("merge %s: %w", step.ID(), err)
	}
	a.doc = next

	if err := a.schedulePersist(ctx); err != nil {
		return a.doc.Clone(), err
	}
	a.metrics.IncMerge(string(step.ID()), "ok")
	a.log.Debug("merged wizard step",
		zap.String("step", string(step.ID())),
		zap.String("grand_total", a.doc.Totals.GrandTotal.StringFixed(2)))
	return a.doc.Clone(), nil
}

// Snapshot returns the current document once the last snapshot write has landed.
func (a *Aggregator) Snapshot(ctx context.Context) (model.InvoiceDocument, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensurePersisted(ctx); err != nil {
		return a.doc.Clone(), err
	}
	return a.doc.Clone(), nil
}

// Flush blocks until the current document is stored.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensurePersisted(ctx)
}

// Reset empties the document and deletes the stored snapshot.
func (a *Aggregator) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.await(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	a.job = nil
	a.doc = newDocument()

	err := retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		if err := a.store.Clear(ctx, a.sessionID); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		a.log.Error("failed to clear wizard snapshot", zap.Error(err))
		return &PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

// await waits for the in-flight write and returns its outcome.
func (a *Aggregator) await(ctx context.Context) error {
	job := a.job
	if job == nil {
		return nil
	}
	select {
	case <-job.done:
		return job.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensurePersisted waits for the in-flight write; if it failed, the current
// document is written again synchronously before giving up.
func (a *Aggregator) ensurePersisted(ctx context.Context) error {
	err := a.await(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	a.job = nil

	data, err := json.Marshal(a.doc)
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}
	if err := a.save(ctx, data); err != nil {
		// keep the failure pending so the next read retries the write
		failed := &persistJob{done: make(chan struct{}), err: err}
		close(failed.done)
		a.job = failed
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (a *Aggregator) schedulePersist(ctx context.Context) error {
	data, err := json.Marshal(a.doc)
	if err != nil {
		return &PersistenceError{Op: "encode", Err: err}
	}

	job := &persistJob{done: make(chan struct{})}
	a.job = job
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(job.done)
		job.err = a.save(bg, data)
	}()
	return nil
}

func (a *Aggregator) save(ctx context.Context, data []byte) error {
	err := retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		if err := a.store.Save(ctx, a.sessionID, data); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		a.metrics.IncPersistFailure()
		a.log.Error("failed to persist wizard snapshot", zap.Error(err))
	}
	return err
}
