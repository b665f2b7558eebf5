package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"tourinvoice/internal/calculator"
	"tourinvoice/internal/logger"
	"tourinvoice/internal/model"
	"tourinvoice/internal/repository"
	"tourinvoice/internal/wizard"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix = "invoice-wizard:"
	// sessionIdleTTL is how long an untouched session stays in memory.
	sessionIdleTTL = 30 * time.Minute
)

// WizardResponse is the current wizard document. StateLost is set once, on the
// first response after the stored session was found unreadable and restarted empty.
type WizardResponse struct {
	Document  model.InvoiceDocument `json:"document"`
	StateLost bool                  `json:"state_lost,omitempty"`
}

// StateLostError wraps the failure of a request that is also the first to learn
// that the caller's stored session was discarded.
type StateLostError struct {
	Err error
}

func (e *StateLostError) Error() string { return "wizard state was lost: " + e.Err.Error() }

func (e *StateLostError) Unwrap() error { return e.Err }

// IsStateLost reports whether err carries a state-lost notice for the caller.
func IsStateLost(err error) bool {
	var lost *StateLostError
	if errors.As(err, &lost) {
		return true
	}
	var perr *wizard.PersistenceError
	return errors.As(err, &perr) && perr.StateLost
}

type WizardService interface {
	GetSnapshot(ctx context.Context, ownerID string) (WizardResponse, error)
	MergeStep(ctx context.Context, ownerID string, step wizard.StepID, payload []byte) (WizardResponse, error)
	Reset(ctx context.Context, ownerID string) (WizardResponse, error)
	Submit(ctx context.Context, ownerID string) (InvoiceSummary, error)
}

// wizardSession is one owner's open aggregator. stateLost stays set until a
// response, successful or not, has told the owner.
type wizardSession struct {
	agg       *wizard.Aggregator
	stateLost bool
	lastUsed  time.Time
}

type wizardService struct {
	store    repository.DocumentStore
	calc     *calculator.Calculator
	invoices InvoiceService
	audit    repository.AuditRepository
	opts     []wizard.Option
	log      *zap.Logger
	idleTTL  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	sessions  map[string]*wizardSession
	lastSweep time.Time
}

func NewWizardService(
	store repository.DocumentStore,
	calc *calculator.Calculator,
	invoices InvoiceService,
	audit repository.AuditRepository,
	log *zap.Logger,
	opts ...wizard.Option,
) WizardService {
	return &wizardService{
		store:    store,
		calc:     calc,
		invoices: invoices,
		audit:    audit,
		opts:     opts,
		log:      log,
		idleTTL:  sessionIdleTTL,
		now:      time.Now,
		sessions: make(map[string]*wizardSession),
	}
}

// session returns the owner's open session, resuming it from the store on first use.
func (s *wizardService) session(ctx context.Context, ownerID string) (*wizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictIdle(ctx, now)
	if sess, ok := s.sessions[ownerID]; ok {
		sess.lastUsed = now
		return sess, nil
	}

	agg, err := wizard.Open(ctx, s.store, sessionKeyPrefix+ownerID, s.calc, s.log, s.opts...)
	sess := &wizardSession{agg: agg, lastUsed: now}
	if err != nil {
		var perr *wizard.PersistenceError
		if !errors.As(err, &perr) || !perr.StateLost {
			return nil, err
		}
		sess.stateLost = true
	}
	s.sessions[ownerID] = sess
	return sess, nil
}

// evictIdle drops sessions untouched for idleTTL once their document is stored.
// Sessions still holding an undelivered state-lost notice are kept.
func (s *wizardService) evictIdle(ctx context.Context, now time.Time) {
	if now.Sub(s.lastSweep) < s.idleTTL/2 {
		return
	}
	s.lastSweep = now
	for ownerID, sess := range s.sessions {
		if sess.stateLost || now.Sub(sess.lastUsed) < s.idleTTL {
			continue
		}
		if err := sess.agg.Flush(ctx); err != nil {
			continue
		}
		delete(s.sessions, ownerID)
	}
}

func (s *wizardService) evict(ownerID string, sess *wizardSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[ownerID] == sess {
		delete(s.sessions, ownerID)
	}
}

// takeStateLost consumes the session's pending state-lost notice.
func (s *wizardService) takeStateLost(sess *wizardSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lost := sess.stateLost
	sess.stateLost = false
	return lost
}

// fail attaches a pending state-lost notice to err.
func (s *wizardService) fail(sess *wizardSession, err error) error {
	if s.takeStateLost(sess) {
		return &StateLostError{Err: err}
	}
	return err
}

func (s *wizardService) GetSnapshot(ctx context.Context, ownerID string) (WizardResponse, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return WizardResponse{}, err
	}
	doc, err := sess.agg.Snapshot(ctx)
	if err != nil {
		return WizardResponse{}, s.fail(sess, err)
	}
	return WizardResponse{Document: doc, StateLost: s.takeStateLost(sess)}, nil
}

func (s *wizardService) MergeStep(ctx context.Context, ownerID string, step wizard.StepID, payload []byte) (WizardResponse, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return WizardResponse{}, err
	}
	decoded, err := wizard.DecodeStep(step, payload)
	if err != nil {
		return WizardResponse{}, s.fail(sess, err)
	}
	doc, err := sess.agg.MergeStep(ctx, decoded)
	if err != nil {
		return WizardResponse{}, s.fail(sess, err)
	}
	return WizardResponse{Document: doc, StateLost: s.takeStateLost(sess)}, nil
}

// Reset discards the owner's draft and returns the empty document.
func (s *wizardService) Reset(ctx context.Context, ownerID string) (WizardResponse, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return WizardResponse{}, err
	}
	if err := sess.agg.Reset(ctx); err != nil {
		return WizardResponse{}, s.fail(sess, err)
	}
	doc, err := sess.agg.Snapshot(ctx)
	if err != nil {
		return WizardResponse{}, s.fail(sess, err)
	}
	res := WizardResponse{Document: doc, StateLost: s.takeStateLost(sess)}
	s.evict(ownerID, sess)

	if owner, err := uuid.Parse(ownerID); err == nil {
		if err := s.audit.Log(ctx, &model.AuditLog{
			UserID:     &owner,
			Action:     model.ActionResetWizard,
			EntityID:   ownerID,
			EntityName: "wizard",
		}); err != nil {
			logger.FromContext(ctx, s.log).Warn("failed to record wizard reset", zap.String("owner_id", ownerID), zap.Error(err))
		}
	}
	return res, nil
}

// Submit validates the wizard document, stores it and starts a fresh session.
func (s *wizardService) Submit(ctx context.Context, ownerID string) (InvoiceSummary, error) {
	sess, err := s.session(ctx, ownerID)
	if err != nil {
		return InvoiceSummary{}, err
	}
	doc, err := sess.agg.Snapshot(ctx)
	if err != nil {
		return InvoiceSummary{}, s.fail(sess, err)
	}
	doc.OwnerID = ownerID

	summary, err := s.invoices.Submit(ctx, doc, ownerID)
	if err != nil {
		return InvoiceSummary{}, s.fail(sess, err)
	}
	if err := sess.agg.Reset(ctx); err != nil {
		// The invoice is stored; a leftover draft is only an inconvenience.
		logger.FromContext(ctx, s.log).Error("failed to reset wizard after submission",
			zap.String("owner_id", ownerID),
			zap.String("invoice_id", summary.ID),
			zap.Error(err))
		return summary, nil
	}
	s.evict(ownerID, sess)
	return summary, nil
}

// IsBadRequest reports errors caused by the caller's input rather than the service.
func IsBadRequest(err error) bool {
	return errors.Is(err, calculator.ErrInvalidDateRange) ||
		errors.Is(err, wizard.ErrUnknownStep) ||
		errors.Is(err, wizard.ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidID)
}
