// Package syncer reconciles local entities with the remote service.
//
// The engine moves through Idle, Syncing and BackoffWait. A pass pulls and pushes
// routes, then timelines, then favorites, drains the sync queue and finally
// advances the cursor. Any failing step leaves the cursor alone and schedules
// exactly one retry after the backoff delay. Timer, retry, debounce and forced
// triggers share one single-flight guard.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/roamly/tripcache/core/local"
	"github.com/roamly/tripcache/core/syncqueue"
	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/internal/logger"
	"github.com/roamly/tripcache/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/roamly/tripcache/core/syncer"

// Options configures an Engine.
type Options struct {
	Interval time.Duration
	Debounce time.Duration

	// BackOff computes the retry delay after a failed pass.
	// Defaults to a constant twice the interval.
	BackOff backoff.BackOff

	// MaxBackoff is the delay used once BackOff gives up. Policies that grow,
	// such as the exponential one, cap themselves with it in NewBackOff.
	MaxBackoff time.Duration

	Clock  clockwork.Clock
	Logger *slog.Logger
	Tracer trace.Tracer
}

// NewBackOff returns the retry policy for a configured backoff name.
func NewBackOff(policy schema.BackoffPolicy, interval, maxBackoff time.Duration) backoff.BackOff {
	if policy == schema.ExponentialBackoff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 2 * interval
		b.Multiplier = 2
		if maxBackoff > 0 {
			b.MaxInterval = maxBackoff
		}
		return b
	}
	return backoff.NewConstantBackOff(2 * interval)
}

// pending is a scheduled one-shot trigger.
type pending struct {
	timer clockwork.Timer
	stop  chan struct{}
	at    time.Time
}

func (p *pending) cancel() {
	p.timer.Stop()
	close(p.stop)
}

// Engine runs sync passes.
type Engine struct {
	remote contract.RemoteClient
	local  *local.Repository
	queue  *syncqueue.Queue
	store  contract.PersistentStore

	opts   Options
	clock  clockwork.Clock
	log    *slog.Logger
	tracer trace.Tracer

	running  atomic.Bool
	cursorMu sync.Mutex

	// mu guards the fields below.
	mu        sync.Mutex
	state     schema.SyncState
	lastErr   error
	backoff   backoff.BackOff
	retry     *pending
	intent    *pending
	passes    int64
	failures  int64
	bgCtx     context.Context
	cancelBg  context.CancelFunc
	loopDone  chan struct{}
	closed    bool
	scheduled sync.WaitGroup
}

// New returns an idle engine.
func New(remote contract.RemoteClient, repo *local.Repository, queue *syncqueue.Queue, store contract.PersistentStore, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = contract.DefaultSyncInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = contract.DefaultSyncDebounce
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = contract.DefaultMaxBackoff
	}
	if opts.BackOff == nil {
		opts.BackOff = backoff.NewConstantBackOff(2 * opts.Interval)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	bgCtx, cancel := context.WithCancel(context.Background())
	return &Engine{
		remote:   remote,
		local:    repo,
		queue:    queue,
		store:    store,
		opts:     opts,
		clock:    opts.Clock,
		log:      logger.OrDiscard(opts.Logger).With("component", "syncer"),
		tracer:   opts.Tracer,
		state:    schema.IdleState,
		backoff:  opts.BackOff,
		bgCtx:    bgCtx,
		cancelBg: cancel,
	}
}

// Sync runs one pass unless a pass is already in flight, in which case it returns
// false without doing anything. The error is the reason the pass failed.
func (e *Engine) Sync(ctx context.Context) (bool, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Debug("sync already in progress, skipping trigger")
		return false, nil
	}
	defer e.running.Store(false)

	e.mu.Lock()
	e.state = schema.SyncingState
	e.mu.Unlock()

	err := e.runPass(ctx)
	e.finishPass(err)
	return true, err
}

// IsSyncing reports whether a pass is in flight.
func (e *Engine) IsSyncing() bool { return e.running.Load() }

func (e *Engine) finishPass(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastErr = err
	if err == nil {
		e.passes++
		e.state = schema.IdleState
		e.backoff.Reset()
		if e.retry != nil {
			e.retry.cancel()
			e.retry = nil
		}
		return
	}

	e.failures++
	e.state = schema.BackoffWaitState
	delay := e.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = e.opts.MaxBackoff
	}
	e.log.Warn("sync pass failed, retry scheduled", "error", err, "retry_in", delay)
	e.scheduleRetryLocked(delay)
}

// scheduleRetryLocked replaces any pending retry so that exactly one is scheduled.
func (e *Engine) scheduleRetryLocked(delay time.Duration) {
	if e.retry != nil {
		e.retry.cancel()
		e.retry = nil
	}
	if e.closed {
		return
	}
	e.retry = e.scheduleLocked(delay, e.fireRetry)
}

func (e *Engine) fireRetry(p *pending) {
	e.mu.Lock()
	if e.retry != p {
		e.mu.Unlock()
		return
	}
	e.retry = nil
	if e.state == schema.BackoffWaitState {
		e.state = schema.IdleState
	}
	ctx := e.bgCtx
	e.mu.Unlock()

	e.log.Info("retrying sync after backoff")
	_, _ = e.Sync(ctx)
}

// scheduleLocked starts a one-shot timer that calls fn unless cancelled first.
func (e *Engine) scheduleLocked(delay time.Duration, fn func(*pending)) *pending {
	p := &pending{
		timer: e.clock.NewTimer(delay),
		stop:  make(chan struct{}),
		at:    e.clock.Now().Add(delay),
	}
	e.scheduled.Add(1)
	go func() {
		defer e.scheduled.Done()
		select {
		case <-p.timer.Chan():
			fn(p)
		case <-p.stop:
		}
	}()
	return p
}

// Looping reports whether the periodic loop started by Start is running.
func (e *Engine) Looping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loopDone != nil
}

// RetryScheduled reports whether a retry is pending.
func (e *Engine) RetryScheduled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retry != nil
}

// RequestSync records an intent to sync. Requests arriving within the debounce
// window collapse into one pass.
func (e *Engine) RequestSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.intent != nil {
		e.intent.cancel()
	}
	e.intent = e.scheduleLocked(e.opts.Debounce, e.fireIntent)
}

func (e *Engine) fireIntent(p *pending) {
	e.mu.Lock()
	if e.intent != p {
		e.mu.Unlock()
		return
	}
	e.intent = nil
	ctx := e.bgCtx
	e.mu.Unlock()

	_, _ = e.Sync(ctx)
}

// ForceSync drops any pending sync intent and scheduled retry, then runs a pass now.
func (e *Engine) ForceSync(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.intent != nil {
		e.intent.cancel()
		e.intent = nil
	}
	if e.retry != nil {
		e.retry.cancel()
		e.retry = nil
	}
	if e.state == schema.BackoffWaitState {
		e.state = schema.IdleState
	}
	e.mu.Unlock()

	return e.Sync(ctx)
}

// Start runs a pass every interval until ctx is done or Stop is called.
// Once ctx is done the engine can be started again; after Stop it cannot.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.loopDone != nil || e.closed {
		e.mu.Unlock()
		return
	}
	done := make(chan struct{})
	e.loopDone = done
	bg := e.bgCtx
	e.mu.Unlock()

	ticker := e.clock.NewTicker(e.opts.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		defer func() {
			e.mu.Lock()
			if e.loopDone == done {
				e.loopDone = nil
			}
			e.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-bg.Done():
				return
			case <-ticker.Chan():
				_, _ = e.Sync(bg)
			}
		}
	}()
	e.log.Info("sync loop started", "interval", e.opts.Interval)
}

// Stop cancels the loop, pending retries and sync intents, and waits for
// background passes to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cancelBg()
	if e.retry != nil {
		e.retry.cancel()
		e.retry = nil
	}
	if e.intent != nil {
		e.intent.cancel()
		e.intent = nil
	}
	done := e.loopDone
	e.mu.Unlock()

	if done != nil {
		<-done
	}
	e.scheduled.Wait()
}

// Status reports the engine state and the pending queue size.
func (e *Engine) Status(ctx context.Context) (schema.SyncStatus, error) {
	e.mu.Lock()
	status := schema.SyncStatus{
		State:          e.state,
		RetryScheduled: e.retry != nil,
		Passes:         e.passes,
		Failures:       e.failures,
	}
	if e.lastErr != nil {
		status.LastError = e.lastErr.Error()
	}
	if e.retry != nil {
		at := e.retry.at
		status.NextRetry = &at
	}
	e.mu.Unlock()

	cursor, err := e.Cursor(ctx)
	if err != nil {
		return status, err
	}
	status.LastSync = cursor

	pending, err := e.queue.Len(ctx)
	if err != nil {
		return status, err
	}
	status.Pending = pending
	return status, nil
}
