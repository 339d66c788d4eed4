package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/stampkit/internal/domain"
	"github.com/bnema/stampkit/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval = time.Second
	DefaultNumRetries   = 3
)

const (
	OutcomeCompleted       = "completed"
	OutcomeFailed          = "failed"
	OutcomeConsensusNeeded = "consensus_needed"
	OutcomeCanceled        = "canceled"
)

// Poller drives a submitted activity to a terminal status.
type Poller struct {
	fetcher    ports.ActivityFetcher
	clock      ports.Clock
	interval   time.Duration
	numRetries int
	metrics    ports.Metrics
	logger     zerolog.Logger
}

type PollerOption func(*Poller)

func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithNumRetries sets how many status lookups are made before giving up. Zero
// reports consensus needed for any pending activity without polling.
func WithNumRetries(n int) PollerOption {
	return func(p *Poller) {
		if n >= 0 {
			p.numRetries = n
		}
	}
}

func WithPollerMetrics(metrics ports.Metrics) PollerOption {
	return func(p *Poller) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

func WithPollerLogger(logger zerolog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

func NewPoller(fetcher ports.ActivityFetcher, clock ports.Clock, opts ...PollerOption) *Poller {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	p := &Poller{
		fetcher:    fetcher,
		clock:      clock,
		interval:   DefaultPollInterval,
		numRetries: DefaultNumRetries,
		metrics:    ports.NopMetrics{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Await returns activity once it is COMPLETED. FAILED and REJECTED end with
// *domain.ActivityFailedError. An activity still pending after the retry
// budget, or reported as CONSENSUS_NEEDED, ends with *domain.ConsensusNeededError.
func (p *Poller) Await(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	return p.AwaitWith(ctx, p.fetcher, activity)
}

// AwaitWith is Await with status lookups made through fetcher, so polls carry
// the same credential as the submission.
func (p *Poller) AwaitWith(ctx context.Context, fetcher ports.ActivityFetcher, activity domain.Activity) (domain.Activity, error) {
	for attempt := 0; ; attempt++ {
		if !activity.Status.IsPending() {
			return p.settle(activity)
		}

		if attempt == p.numRetries {
			p.logger.Info().
				Str("activity_id", activity.ID).
				Str("status", string(activity.Status)).
				Int("polls", attempt).
				Msg("activity still pending, consensus needed")
			p.metrics.ObserveActivityOutcome(OutcomeConsensusNeeded)
			return activity, &domain.ConsensusNeededError{ActivityID: activity.ID, LastKnownStatus: activity.Status}
		}

		if err := ctx.Err(); err != nil {
			p.metrics.ObserveActivityOutcome(OutcomeCanceled)
			return activity, err
		}
		select {
		case <-ctx.Done():
			p.metrics.ObserveActivityOutcome(OutcomeCanceled)
			return activity, ctx.Err()
		case <-p.clock.After(p.interval):
		}
		if err := ctx.Err(); err != nil {
			p.metrics.ObserveActivityOutcome(OutcomeCanceled)
			return activity, err
		}

		next, err := p.poll(ctx, fetcher, activity.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.metrics.ObserveActivityOutcome(OutcomeCanceled)
			}
			return activity, err
		}
		p.metrics.ObservePoll(next.Status)
		p.logger.Debug().
			Str("activity_id", activity.ID).
			Str("status", string(next.Status)).
			Int("poll", attempt+1).
			Msg("activity polled")

		activity = next
	}
}

type pollResult struct {
	activity domain.Activity
	err      error
}

// poll runs one lookup detached from ctx cancellation. If ctx ends first the
// request is left to finish and its result is dropped.
func (p *Poller) poll(ctx context.Context, fetcher ports.ActivityFetcher, activityID string) (domain.Activity, error) {
	done := make(chan pollResult, 1)
	detached := context.WithoutCancel(ctx)

	go func() {
		activity, err := fetcher.GetActivity(detached, activityID)
		done <- pollResult{activity: activity, err: err}
	}()

	select {
	case <-ctx.Done():
		return domain.Activity{}, ctx.Err()
	case result := <-done:
		if result.err != nil {
			return domain.Activity{}, fmt.Errorf("poll activity %s: %w", activityID, result.err)
		}
		if result.activity.ID == "" {
			result.activity.ID = activityID
		}
		return result.activity, nil
	}
}

func (p *Poller) settle(activity domain.Activity) (domain.Activity, error) {
	switch activity.Status {
	case domain.ActivityStatusCompleted:
		p.metrics.ObserveActivityOutcome(OutcomeCompleted)
		return activity, nil
	case domain.ActivityStatusConsensusNeeded:
		p.metrics.ObserveActivityOutcome(OutcomeConsensusNeeded)
		return activity, &domain.ConsensusNeededError{ActivityID: activity.ID, LastKnownStatus: activity.Status}
	default:
		p.metrics.ObserveActivityOutcome(OutcomeFailed)
		failed := &domain.ActivityFailedError{ActivityID: activity.ID, Status: activity.Status}
		if activity.Failure != nil {
			failed.Reason = activity.Failure.Message
		}
		p.logger.Info().Str("activity_id", activity.ID).Str("status", string(activity.Status)).Msg("activity ended without completing")
		return activity, failed
	}
}
