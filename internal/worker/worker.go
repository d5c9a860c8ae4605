// Package worker runs the processing pool that drives queue items through
// generation, quality gating and submission. All processing happens under an
// item lease, so at most one worker acts on an item at any time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/autoapply/internal/contentgen"
	"github.com/jonathan/autoapply/internal/dispatch"
	"github.com/jonathan/autoapply/internal/notify"
	"github.com/jonathan/autoapply/internal/notion"
	"github.com/jonathan/autoapply/internal/quality"
	"github.com/jonathan/autoapply/internal/queue"
	"github.com/jonathan/autoapply/internal/ratelimit"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/submit"
	"github.com/jonathan/autoapply/internal/types"
)

// Config tunes the pool.
type Config struct {
	Concurrency   int
	PollInterval  time.Duration
	LeaseDuration time.Duration
	BatchSize     int
}

// Pool processes due queue items with a fixed number of workers.
type Pool struct {
	store     store.Store
	generator contentgen.Generator
	executor  *submit.Executor
	limiter   *ratelimit.Limiter
	reporter  notify.Reporter
	tracker   notion.Tracker
	waiter    dispatch.Waiter
	logger    *slog.Logger
	cfg       Config
}

// NewPool wires a pool from its collaborators.
func NewPool(s store.Store, gen contentgen.Generator, exec *submit.Executor, limiter *ratelimit.Limiter, reporter notify.Reporter, tracker notion.Tracker, waiter dispatch.Waiter, logger *slog.Logger, cfg Config) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	return &Pool{
		store:     s,
		generator: gen,
		executor:  exec,
		limiter:   limiter,
		reporter:  reporter,
		tracker:   tracker,
		waiter:    waiter,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run blocks until the context is cancelled, processing due items as they
// become eligible. Wake-ups from the dispatcher shortcut the poll interval.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		owner := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			return p.runWorker(ctx, owner)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) runWorker(ctx context.Context, owner string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.Drain(ctx, owner)
		if err := p.waiter.Wait(ctx, p.cfg.PollInterval); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("dispatch wait failed", "error", err)
		}
	}
}

// Drain picks up and processes one batch of due items. Exported so the serve
// loop can run a synchronous pass in tests and in no-worker deployments.
func (p *Pool) Drain(ctx context.Context, owner string) {
	now := time.Now().UTC()
	items, err := p.store.DueItems(ctx, now, p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("failed to list due items", "error", err)
		return
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		acquired, err := p.store.AcquireLease(ctx, item.ID, owner, time.Now().UTC().Add(p.cfg.LeaseDuration))
		if err != nil {
			p.logger.Error("failed to acquire lease", "item_id", item.ID, "error", err)
			continue
		}
		if !acquired {
			continue
		}
		if err := p.processItem(ctx, item, owner); err != nil {
			p.logger.Error("failed to process item", "item_id", item.ID, "state", string(item.State), "error", err)
		}
		if err := p.store.ReleaseLease(ctx, item.ID, owner); err != nil {
			p.logger.Warn("failed to release lease", "item_id", item.ID, "error", err)
		}
	}
}

func (p *Pool) processItem(ctx context.Context, item *types.QueueItem, owner string) error {
	switch item.State {
	case types.StateQueued:
		next, err := p.store.TransitionItem(ctx, item.ID, types.StateQueued, types.StateGenerating, nil)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil
			}
			return err
		}
		return p.generate(ctx, next)
	case types.StateGenerating:
		// Re-picked after a worker crash or a failed generation attempt.
		return p.generate(ctx, item)
	case types.StateReadyToSubmit, types.StateRetrying:
		return p.submitItem(ctx, item)
	}
	return nil
}

// generate produces content for an item in the generating state and routes it
// through the quality gate.
func (p *Pool) generate(ctx context.Context, item *types.QueueItem) error {
	profile, err := p.store.GetProfile(ctx, item.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	candidate, err := p.store.GetCandidate(ctx, item.CandidateID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	content, err := p.generator.Generate(ctx, candidate, profile)
	if err != nil {
		// Stay in generating; push back eligibility so the next pickup is
		// not an immediate hot loop.
		item.StateReason = fmt.Sprintf("generation failed: %v", err)
		item.NextEligibleAt = time.Now().UTC().Add(p.cfg.PollInterval)
		if updateErr := p.store.UpdateItem(ctx, item); updateErr != nil {
			return fmt.Errorf("failed to record generation failure: %w", updateErr)
		}
		return fmt.Errorf("failed to generate content: %w", err)
	}

	decision := quality.Gate(content, &profile.Quality)
	if decision.DataError {
		p.logger.Warn("generator returned out-of-range scores", "item_id", item.ID, "profile_id", profile.ID)
	}

	updated, err := p.store.TransitionItem(ctx, item.ID, types.StateGenerating, decision.State, func(it *types.QueueItem) {
		it.Content = content
		it.StateReason = decision.Reason
	})
	if err != nil {
		return fmt.Errorf("failed to apply gate decision: %w", err)
	}
	p.logger.Info("content gated", "item_id", item.ID, "state", string(decision.State), "reason", decision.Reason)

	// Auto-approved items proceed to submission under the same lease.
	if updated.State == types.StateReadyToSubmit {
		return p.submitItem(ctx, updated)
	}
	return nil
}

// submitItem runs one submission attempt for a ready_to_submit or retrying
// item, consuming a rate-limit slot first.
func (p *Pool) submitItem(ctx context.Context, item *types.QueueItem) error {
	profile, err := p.store.GetProfile(ctx, item.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if !profile.Active() {
		return nil
	}
	candidate, err := p.store.GetCandidate(ctx, item.CandidateID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}
	if item.Content == nil {
		return fmt.Errorf("item %s has no generated content", item.ID)
	}

	now := time.Now().UTC()
	decision, err := p.limiter.Allow(ctx, profile, now)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !decision.Allowed {
		// Deferred, not failed: no retry attempt is consumed and the state
		// does not change.
		item.StateReason = "rate limit reached"
		item.NextEligibleAt = decision.NextEligible
		if err := p.store.UpdateItem(ctx, item); err != nil {
			return fmt.Errorf("failed to defer rate-limited item: %w", err)
		}
		p.logger.Info("submission deferred by rate limit", "item_id", item.ID, "next_eligible_at", decision.NextEligible)
		return nil
	}

	item, err = p.store.TransitionItem(ctx, item.ID, item.State, types.StateSubmitting, nil)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return fmt.Errorf("failed to start submission: %w", err)
	}

	attempt := p.executor.Execute(ctx, submit.Request{
		Item:      item,
		Candidate: candidate,
		Content:   item.Content,
	})
	if err := p.store.RecordAttempt(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	p.logger.Info("submission attempt finished",
		"item_id", item.ID,
		"attempt", attempt.AttemptNumber,
		"outcome", string(attempt.Outcome),
		"duration_ms", attempt.DurationMs)

	switch attempt.Outcome {
	case types.OutcomeSuccess:
		updated, err := p.store.TransitionItem(ctx, item.ID, types.StateSubmitting, types.StateSubmitted, func(it *types.QueueItem) {
			it.StateReason = ""
		})
		if err != nil {
			return fmt.Errorf("failed to mark submitted: %w", err)
		}
		if err := p.tracker.RecordSubmission(ctx, updated, candidate); err != nil {
			p.logger.Warn("tracker sync failed", "item_id", item.ID, "error", err)
		}
		if err := p.reporter.Submitted(updated, candidate); err != nil {
			p.logger.Warn("submit notification failed", "item_id", item.ID, "error", err)
		}
		return nil

	case types.OutcomePermanentFailure:
		return p.failPermanently(ctx, item, candidate, types.StateSubmitting, attempt.ErrorDetail)

	default:
		return p.handleTransientFailure(ctx, item, candidate, attempt)
	}
}

// handleTransientFailure increments the retry count and either schedules a
// retry with exponential backoff or gives up permanently.
func (p *Pool) handleTransientFailure(ctx context.Context, item *types.QueueItem, candidate *types.JobCandidate, attempt *types.SubmissionAttempt) error {
	prevRetries := item.RetryCount
	failed, err := p.store.TransitionItem(ctx, item.ID, types.StateSubmitting, types.StateFailedTransient, func(it *types.QueueItem) {
		it.RetryCount++
		it.StateReason = attempt.ErrorDetail
	})
	if err != nil {
		return fmt.Errorf("failed to mark transient failure: %w", err)
	}

	next := queue.NextAfterTransientFailure(failed.RetryCount, failed.MaxRetries)
	if next == types.StateFailedPermanent {
		return p.failPermanently(ctx, failed, candidate, types.StateFailedTransient, "retry budget exhausted: "+attempt.ErrorDetail)
	}

	delay := p.executor.Backoff(prevRetries)
	eligible := time.Now().UTC().Add(delay)
	if _, err := p.store.TransitionItem(ctx, item.ID, types.StateFailedTransient, types.StateRetrying, func(it *types.QueueItem) {
		it.NextEligibleAt = eligible
	}); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	p.logger.Info("retry scheduled", "item_id", item.ID, "retry_count", failed.RetryCount, "next_eligible_at", eligible)
	return nil
}

func (p *Pool) failPermanently(ctx context.Context, item *types.QueueItem, candidate *types.JobCandidate, from types.QueueState, detail string) error {
	updated, err := p.store.TransitionItem(ctx, item.ID, from, types.StateFailedPermanent, func(it *types.QueueItem) {
		it.StateReason = detail
	})
	if err != nil {
		return fmt.Errorf("failed to mark permanent failure: %w", err)
	}
	if err := p.reporter.PermanentFailure(updated, candidate, detail); err != nil {
		p.logger.Warn("failure notification failed", "item_id", item.ID, "error", err)
	}
	return nil
}
