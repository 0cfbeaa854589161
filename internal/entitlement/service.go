package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/PortNumber53/trialgate/internal/metrics"
	"github.com/PortNumber53/trialgate/internal/models"
	"github.com/PortNumber53/trialgate/internal/store"
)

// ErrNoIdentity is returned when an operation is called without an email.
var ErrNoIdentity = errors.New("entitlement: identity is required")

// Options tunes a Service. Zero values select defaults.
type Options struct {
	TrialDuration time.Duration
	Now           func() time.Time
	Logger        zerolog.Logger
}

// Service ties the record store to reconciliation, trial initiation and
// access evaluation. It holds no per-identity state between calls.
type Service struct {
	store  store.Store
	trial  time.Duration
	now    func() time.Time
	logger zerolog.Logger

	trials singleflight.Group
}

// NewService creates a Service backed by s.
func NewService(s store.Store, opts Options) (*Service, error) {
	if s == nil {
		return nil, errors.New("entitlement: store cannot be nil")
	}
	if opts.TrialDuration <= 0 {
		opts.TrialDuration = DefaultTrialDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:  s,
		trial:  opts.TrialDuration,
		now:    opts.Now,
		logger: opts.Logger.With().Str("component", "entitlement").Logger(),
	}, nil
}

// TrialDuration reports the configured trial window.
func (s *Service) TrialDuration() time.Duration {
	return s.trial
}

// ApplyEvent reconciles ev into the identity's record under the store's
// per-identity lock. The result is always written back, even when the event
// was a no-op.
func (s *Service) ApplyEvent(ctx context.Context, ev models.Event) (models.Record, error) {
	identity := models.NormalizeIdentity(ev.Identity)
	if identity == "" {
		return models.Record{}, ErrNoIdentity
	}

	var applied bool
	rec, err := s.store.Update(ctx, identity, func(current *models.Record) (models.Record, error) {
		next, changed := reconcile(current, ev)
		applied = changed
		return next, nil
	})
	if err != nil {
		metrics.RecordWebhook(ev.Kind.String(), metrics.OutcomeFailed)
		return models.Record{}, fmt.Errorf("entitlement: apply %s: %w", ev.Kind, err)
	}

	outcome := metrics.OutcomeIgnored
	if applied {
		outcome = metrics.OutcomeApplied
	}
	metrics.RecordWebhook(ev.Kind.String(), outcome)

	s.logger.Info().
		Str("email", identity).
		Str("event_id", ev.ID).
		Str("event_type", ev.Type).
		Str("kind", ev.Kind.String()).
		Bool("applied", applied).
		Bool("has_paid", rec.HasPaid).
		Msg("billing event reconciled")

	return rec, nil
}

type trialResult struct {
	record  models.Record
	created bool
}

// EnsureTrial starts the trial window for identity unless one was already
// started. Concurrent calls for one identity share a single store update.
func (s *Service) EnsureTrial(ctx context.Context, identity string) (models.Record, bool, error) {
	identity = models.NormalizeIdentity(identity)
	if identity == "" {
		return models.Record{}, false, ErrNoIdentity
	}

	// Waiters share one update; it must outlive a cancelled leader.
	shared := context.WithoutCancel(ctx)
	ch := s.trials.DoChan(identity, func() (any, error) {
		var created bool
		rec, err := s.store.Update(shared, identity, func(current *models.Record) (models.Record, error) {
			if current != nil && current.TrialStarted != nil {
				return models.Record{}, store.ErrNoChange
			}
			var next models.Record
			if current != nil {
				next = *current
			}
			next.TrialStarted = models.TimePtr(s.now().UTC())
			created = true
			return next, nil
		})
		if err != nil {
			return nil, err
		}
		return trialResult{record: rec, created: created}, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return models.Record{}, false, fmt.Errorf("entitlement: ensure trial: %w", ctx.Err())
	case r = <-ch:
	}
	if r.Err != nil {
		return models.Record{}, false, fmt.Errorf("entitlement: ensure trial: %w", r.Err)
	}

	res := r.Val.(trialResult)
	metrics.RecordTrialGrant(res.created)
	if res.created {
		s.logger.Info().
			Str("email", identity).
			Time("trial_started", *res.record.TrialStarted).
			Msg("trial started")
	}
	return res.record.Clone(), res.created, nil
}

// Get returns the stored record for identity, nil when absent.
func (s *Service) Get(ctx context.Context, identity string) (*models.Record, error) {
	identity = models.NormalizeIdentity(identity)
	if identity == "" {
		return nil, ErrNoIdentity
	}
	rec, err := s.store.Get(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("entitlement: get: %w", err)
	}
	return rec, nil
}

// Check evaluates access for identity without side effects. An absent record
// has no access.
func (s *Service) Check(ctx context.Context, identity string) (models.Decision, error) {
	rec, err := s.Get(ctx, identity)
	if err != nil {
		return models.Decision{}, err
	}

	var current models.Record
	if rec != nil {
		current = *rec
	}
	return s.evaluate(current), nil
}

// Visit evaluates access for a page view, starting the trial when the
// identity has never had one and is not paying.
func (s *Service) Visit(ctx context.Context, identity string) (models.Decision, error) {
	rec, err := s.Get(ctx, identity)
	if err != nil {
		return models.Decision{}, err
	}

	if rec == nil || (!rec.PaidActive() && rec.TrialStarted == nil) {
		started, _, err := s.EnsureTrial(ctx, identity)
		if err != nil {
			return models.Decision{}, err
		}
		rec = &started
	}

	return s.evaluate(*rec), nil
}

// Evaluate is the package Evaluate bound to the service clock and trial.
func (s *Service) Evaluate(rec models.Record) models.Decision {
	return s.evaluate(rec)
}

func (s *Service) evaluate(rec models.Record) models.Decision {
	d := Evaluate(rec, s.now(), s.trial)
	metrics.RecordDecision(string(d.Kind))
	return d
}
