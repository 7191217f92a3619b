// Package service implements the coach lifecycle workflow on top of a
// store.Repository: administrative edits, document verification, approval and
// rejection, change-request review and the notifications that follow them.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/audit"
	"github.com/fitstudio/staff-console/internal/metrics"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/notify"
	"github.com/fitstudio/staff-console/internal/sentinel"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/utils"
	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role models.Role
}

type Service struct {
	store    store.Repository
	cipher   *utils.AccountCipher
	recorder *audit.Recorder
	notifier notify.Dispatcher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	// newCoachID allocates ids for CreateCoach.
	newCoachID func() (string, error)

	presigner Presigner
	urlTTL    time.Duration
}

type Option func(*Service)

func WithNotifier(d notify.Dispatcher) Option {
	return func(s *Service) { s.notifier = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now, mostly for tests around certificate expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(repo store.Repository, cipher *utils.AccountCipher, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("store is required")
	}
	if cipher == nil {
		return nil, errors.New("account cipher is required")
	}
	s := &Service{store: repo, cipher: cipher, now: time.Now, newCoachID: utils.GenerateCoachID}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogDispatcher(s.logger)
	}
	s.recorder = audit.NewRecorder(s.logger)
	return s, nil
}

// translate maps store errors onto the apperr taxonomy. what names the
// entity for not-found messages.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.From(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return apperr.NotFound(what)
	case errors.Is(err, sentinel.ErrConflict):
		return apperr.Wrap(err, apperr.CodeBusinessRule, what+" conflicts with an existing record")
	case errors.Is(err, sentinel.ErrInvalidState):
		return apperr.Wrap(err, apperr.CodeBusinessRule, what+" is in an invalid state")
	}
	return apperr.Wrap(err, apperr.CodeInternal, "datastore failure")
}

// finish records latency and outcome for op and passes err through after
// translating anything the workflow did not classify.
func (s *Service) finish(op string, start time.Time, changed bool, err error) error {
	s.metrics.ObserveLatency(op, time.Since(start))
	switch {
	case err == nil && changed:
		s.metrics.IncOutcome(op, "changed")
	case err == nil:
		s.metrics.IncOutcome(op, "noop")
	case apperr.HasCode(err, apperr.CodeInternal) || !isClassified(err):
		s.metrics.IncOutcome(op, "error")
		s.logger.Error("workflow operation failed", zap.String("operation", op), zap.Error(err))
		return translate(err, op)
	default:
		s.metrics.IncOutcome(op, "rejected")
	}
	return err
}

func isClassified(err error) bool {
	_, ok := apperr.From(err)
	return ok
}

// dispatch sends ev after the workflow decision committed. A failure is
// logged and returned as a warning; it never undoes the decision.
func (s *Service) dispatch(ctx context.Context, ev notify.Event) string {
	ev.ID = utils.GenerateID()
	ev.OccurredAt = s.now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.Dispatch(ctx, ev); err != nil {
		s.metrics.IncNotification(string(ev.Type), "failed")
		s.logger.Warn("notification dispatch failed",
			zap.String("type", string(ev.Type)),
			zap.String("coach_id", ev.CoachID),
			zap.Error(err),
		)
		return "notification could not be delivered: " + err.Error()
	}
	s.metrics.IncNotification(string(ev.Type), "sent")
	return ""
}

func coachEvent(t notify.Type, c *models.Coach, actorID string) notify.Event {
	return notify.Event{
		Type:    t,
		CoachID: c.ID,
		Email:   c.Email,
		Name:    fullName(c),
		ActorID: actorID,
	}
}

func fullName(c *models.Coach) string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// openAccount decrypts the stored account number into c.AccountNumber.
func (s *Service) openAccount(c *models.Coach) error {
	plain, err := s.cipher.Open(c.AccountNumberEnc)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "could not decrypt account number")
	}
	c.AccountNumber = plain
	return nil
}

// sealAccount refreshes the encrypted columns from c.AccountNumber.
func (s *Service) sealAccount(c *models.Coach) error {
	if c.AccountNumber == "" {
		c.AccountNumberEnc = nil
		c.AccountLast4 = ""
		return nil
	}
	sealed, err := s.cipher.Seal(c.AccountNumber)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "could not encrypt account number")
	}
	c.AccountNumberEnc = sealed
	c.AccountLast4 = utils.LastDigits(c.AccountNumber, 4)
	return nil
}
