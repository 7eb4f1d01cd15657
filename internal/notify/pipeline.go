package notify

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/remindkit/remindkit/internal/domain"
	"github.com/remindkit/remindkit/internal/store"
)

// PipelineConfig holds configuration for the delivery pipeline. None of
// these values are load-tested; they are tunables, not design decisions.
type PipelineConfig struct {
	// BatchSize caps how many due notifications one invocation processes.
	BatchSize int

	// RetryBackoff is the fixed delay before a failed notification is
	// attempted again.
	RetryBackoff time.Duration

	// SendTimeout bounds each individual provider call so one stuck
	// round-trip cannot stall the rest of the batch.
	SendTimeout time.Duration

	// Concurrency bounds how many notifications are delivered in
	// parallel within one invocation.
	Concurrency int
}

// DefaultPipelineConfig returns a PipelineConfig with reasonable defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize:    100,
		RetryBackoff: 5 * time.Minute,
		SendTimeout:  30 * time.Second,
		Concurrency:  4,
	}
}

// Result summarizes one pipeline invocation. Errors holds per-notification
// failures that did not abort the rest of the batch.
type Result struct {
	Processed int
	Errors    []error
}

// txRunner abstracts transactional execution so tests can run the commit
// phase against in-memory fakes.
type txRunner func(ctx context.Context, db *sql.DB, fn store.TxFn) error

// Pipeline scans due, unsent notifications, resolves each owner's active
// device tokens, dispatches the push payload, applies bounded retry with
// fixed backoff, and deactivates endpoints the provider reports as
// permanently invalid. It is stateless: all waiting lives in persisted
// scheduled_for timestamps, and re-invocation is safe.
type Pipeline struct {
	db            *sql.DB
	notifications store.NotificationStore
	tokens        store.DeviceTokenStore
	sender        Sender
	config        PipelineConfig
	logger        *slog.Logger
	runTx         txRunner
}

// NewPipeline creates a new delivery Pipeline.
// If logger is nil, a default logger is used.
func NewPipeline(
	db *sql.DB,
	notifications store.NotificationStore,
	tokens store.DeviceTokenStore,
	sender Sender,
	config PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if notifications == nil {
		panic("notifications store cannot be nil")
	}
	if tokens == nil {
		panic("device token store cannot be nil")
	}
	if sender == nil {
		panic("sender cannot be nil")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultPipelineConfig().BatchSize
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultPipelineConfig().RetryBackoff
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultPipelineConfig().SendTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		db:            db,
		notifications: notifications,
		tokens:        tokens,
		sender:        sender,
		config:        config,
		logger:        logger.With(slog.String("component", "delivery_pipeline")),
		runTx:         store.RunInTransaction,
	}
}

// outcome carries the mutations one notification produced during an
// invocation. All outcomes are committed together at the end.
type outcome struct {
	notification  *domain.Notification
	invalidTokens []string
	usedTokens    []string
	err           error
}

// ProcessDue runs one delivery invocation: query due notifications,
// deliver each with bounded concurrency, then commit every mutation of
// the invocation in a single batched transaction.
//
// Only a failure of the initial due-notification query is fatal.
// Per-notification failures are collected into the result and leave the
// record untouched for the next run.
func (p *Pipeline) ProcessDue(ctx context.Context, now time.Time) (*Result, error) {
	due, err := p.notifications.ListDue(ctx, now, p.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query due notifications: %w", err)
	}
	if len(due) == 0 {
		return &Result{}, nil
	}

	p.logger.Info("processing due notifications", "count", len(due))

	// Bounded parallel fan-out: each notification still performs its own
	// token resolution and send round-trip, but up to Concurrency of them
	// run at once.
	outcomes := make([]outcome, len(due))
	sem := make(chan struct{}, p.config.Concurrency)
	var wg sync.WaitGroup
	for i, n := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, n *domain.Notification) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = p.deliver(ctx, n, now)
		}(i, n)
	}
	wg.Wait()

	result := &Result{}
	var updates []*domain.Notification
	invalid := make(map[string]struct{})
	used := make(map[string]struct{})
	for _, o := range outcomes {
		if o.err != nil {
			result.Errors = append(result.Errors, o.err)
			continue
		}
		updates = append(updates, o.notification)
		for _, t := range o.invalidTokens {
			invalid[t] = struct{}{}
		}
		for _, t := range o.usedTokens {
			used[t] = struct{}{}
		}
	}

	if len(updates) == 0 && len(invalid) == 0 {
		return result, nil
	}

	// Single batched commit for all record mutations of this invocation.
	err = p.runTx(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		notifications := p.notifications
		tokens := p.tokens
		if tx != nil {
			notifications = notifications.WithTx(tx)
			tokens = tokens.WithTx(tx)
		}

		if err := notifications.UpdateMultiple(ctx, updates); err != nil {
			return err
		}
		if len(invalid) > 0 {
			deactivated, err := tokens.DeactivateTokens(ctx, keys(invalid))
			if err != nil {
				return err
			}
			p.logger.Info("deactivated invalid device tokens", "count", deactivated)
		}
		if len(used) > 0 {
			if err := tokens.MarkUsed(ctx, keys(used), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Abandon this run's remaining work; the next scheduled run
		// reconciles from the persisted state.
		result.Errors = append(result.Errors,
			fmt.Errorf("failed to commit delivery results: %w", err))
		return result, nil
	}

	result.Processed = len(updates)
	return result, nil
}

// deliver attempts delivery of a single notification and returns the
// mutations to commit. The notification record is mutated in memory only;
// persistence happens in the invocation's batched commit.
func (p *Pipeline) deliver(ctx context.Context, n *domain.Notification, now time.Time) outcome {
	log := p.logger.With("notification_id", n.ID, "owner_id", n.OwnerID)

	endpoints, err := p.tokens.ListActiveByOwner(ctx, n.OwnerID)
	if err != nil {
		return outcome{err: fmt.Errorf(
			"failed to resolve device tokens for notification %s: %w", n.ID, err)}
	}

	if len(endpoints) == 0 {
		// A user with no endpoints is not worth retrying for.
		n.MarkFailed("no active device tokens")
		log.Debug("no active device tokens, marking terminal")
		return outcome{notification: n}
	}

	tokens := make([]string, len(endpoints))
	for i, e := range endpoints {
		tokens[i] = e.Token
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.config.SendTimeout)
	defer cancel()

	res, err := p.sender.Send(sendCtx, tokens, n.Payload)
	if err != nil {
		// The provider call itself failed; counts as a fully failed attempt.
		retrying := n.ScheduleRetry(now, p.config.RetryBackoff, err.Error())
		log.Warn("push send failed",
			"error", err,
			"retry_count", n.RetryCount,
			"retrying", retrying)
		return outcome{notification: n}
	}

	out := outcome{notification: n}
	// Permanently invalid endpoints are collected regardless of the
	// overall outcome; a delivered notification can still carry one
	// dead token among several.
	out.invalidTokens = res.InvalidTokens()

	if res.SuccessCount > 0 {
		// Delivered as soon as any endpoint succeeded; multi-device
		// users do not need every device to accept.
		n.MarkDelivered(now)
		out.usedTokens = res.SuccessfulTokens()
		log.Info("notification delivered",
			"success_count", res.SuccessCount,
			"failure_count", res.FailureCount)
	} else {
		retrying := n.ScheduleRetry(now, p.config.RetryBackoff, res.FirstError())
		log.Warn("all endpoints failed",
			"failure_count", res.FailureCount,
			"retry_count", n.RetryCount,
			"retrying", retrying)
	}
	return out
}

// SendNow delivers a one-off push to all of a user's active devices,
// outside the scheduled pipeline. Fire-and-forget: no retry and no
// persistence.
func (p *Pipeline) SendNow(
	ctx context.Context,
	ownerID uuid.UUID,
	payload domain.NotificationPayload,
) error {
	endpoints, err := p.tokens.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to resolve device tokens: %w", err)
	}
	if len(endpoints) == 0 {
		p.logger.Debug("no active device tokens for immediate send", "owner_id", ownerID)
		return nil
	}

	tokens := make([]string, len(endpoints))
	for i, e := range endpoints {
		tokens[i] = e.Token
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.config.SendTimeout)
	defer cancel()

	res, err := p.sender.Send(sendCtx, tokens, payload)
	if err != nil {
		return fmt.Errorf("failed to send immediate notification: %w", err)
	}

	p.logger.Info("immediate notification sent",
		"owner_id", ownerID,
		"success_count", res.SuccessCount,
		"failure_count", res.FailureCount)
	return nil
}

// keys returns the keys of a string set.
func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
