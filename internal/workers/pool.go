// Package workers bounds how much calendar work runs at once. A fixed pool
// of goroutines drains a bounded queue behind a shared requests-per-second
// gate, so neither the MCP transport nor a burst of retries can exceed the
// calendar service's quota. When the service signals quota exhaustion the
// whole pool pauses until the signaled time passes.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/teemow/calendar-mcp/internal/instrumentation"
	"github.com/teemow/calendar-mcp/internal/retry"
	"github.com/teemow/calendar-mcp/internal/schema"
)

// Task is one unit of calendar work. The error return feeds quota detection;
// operation-level failures travel inside the envelope.
type Task func(ctx context.Context) (schema.Envelope, error)

// Config tunes the pool.
type Config struct {
	// Workers is the number of concurrent executors.
	Workers int
	// QueueSize bounds how many tasks may wait for a worker.
	QueueSize int
	// RequestsPerSecond gates task starts across all workers.
	RequestsPerSecond float64
	// WaitTimeout bounds how long ExecuteAndWait blocks for a result.
	WaitTimeout time.Duration
	// QuotaPause is the grace period a worker sleeps after hitting quota
	// exhaustion, on top of the shared quota gate.
	QuotaPause time.Duration
}

// DefaultConfig sizes the pool for a single calendar project quota.
func DefaultConfig() Config {
	return Config{
		Workers:           5,
		QueueSize:         100,
		RequestsPerSecond: 10,
		WaitTimeout:       30 * time.Second,
		QuotaPause:        5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers > 0 {
		d.Workers = c.Workers
	}
	if c.QueueSize > 0 {
		d.QueueSize = c.QueueSize
	}
	if c.RequestsPerSecond > 0 {
		d.RequestsPerSecond = c.RequestsPerSecond
	}
	if c.WaitTimeout > 0 {
		d.WaitTimeout = c.WaitTimeout
	}
	if c.QuotaPause > 0 {
		d.QuotaPause = c.QuotaPause
	}
	return d
}

// QueueFullError signals backpressure: the queue is at capacity and the
// caller should surface the rejection instead of blocking.
type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("task queue full (capacity %d), request rejected", e.Capacity)
}

// ErrPoolClosed is returned for tasks submitted to or abandoned by a pool
// that is shutting down.
var ErrPoolClosed = errors.New("worker pool is shut down")

// ErrResultTimeout is returned when a result does not arrive within the
// configured wait window. The task itself keeps running.
var ErrResultTimeout = errors.New("timed out waiting for task result")

type taskResult struct {
	env schema.Envelope
	err error
}

type queuedTask struct {
	run Task
	// result is buffered so a worker never blocks on a departed waiter.
	result chan taskResult
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Workers       int           `json:"workers"`
	QueueDepth    int           `json:"queue_depth"`
	QueueCapacity int           `json:"queue_capacity"`
	Submitted     int64         `json:"submitted"`
	Completed     int64         `json:"completed"`
	Failed        int64         `json:"failed"`
	Rejected      int64         `json:"rejected"`
	Requeued      int64         `json:"requeued"`
	QuotaPauses   int64         `json:"quota_pauses"`
	Uptime        time.Duration `json:"uptime"`
}

// Pool executes tasks on a fixed set of workers behind a shared rate gate.
type Pool struct {
	cfg     Config
	queue   chan *queuedTask
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	// quotaUntil is the unix-nano time before which no task may start.
	// It only ever moves forward.
	quotaUntil atomic.Int64

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	started   time.Time

	submitted   atomic.Int64
	completed   atomic.Int64
	failed      atomic.Int64
	rejected    atomic.Int64
	requeued    atomic.Int64
	quotaPauses atomic.Int64
}

// NewPool starts the workers immediately.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:       cfg,
		queue:     make(chan *queuedTask, cfg.QueueSize),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:    logger,
		runCtx:    ctx,
		runCancel: cancel,
		started:   time.Now(),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// SetMetrics attaches a metrics recorder for queue depth tracking. A nil
// recorder is a no-op.
func (p *Pool) SetMetrics(m *instrumentation.Metrics) { p.metrics = m }

// Submit queues fn without waiting for its result. Returns QueueFullError
// under backpressure and ErrPoolClosed after shutdown began.
func (p *Pool) Submit(fn Task) error {
	return p.submit(&queuedTask{run: fn, result: make(chan taskResult, 1)})
}

// ExecuteAndWait queues fn and blocks until its result arrives, the wait
// window elapses or ctx ends. On timeout only the waiter is released; the
// task still runs to completion so its side effects are not lost.
func (p *Pool) ExecuteAndWait(ctx context.Context, fn Task) (schema.Envelope, error) {
	qt := &queuedTask{run: fn, result: make(chan taskResult, 1)}
	if err := p.submit(qt); err != nil {
		return schema.Envelope{}, err
	}

	timer := time.NewTimer(p.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case res := <-qt.result:
		return res.env, res.err
	case <-timer.C:
		return schema.Envelope{}, ErrResultTimeout
	case <-ctx.Done():
		return schema.Envelope{}, ctx.Err()
	}
}

func (p *Pool) submit(qt *queuedTask) error {
	select {
	case <-p.runCtx.Done():
		return ErrPoolClosed
	default:
	}

	select {
	case p.queue <- qt:
		p.submitted.Add(1)
		p.metrics.AddQueueDepth(p.runCtx, 1)
		return nil
	default:
		p.rejected.Add(1)
		return &QueueFullError{Capacity: p.cfg.QueueSize}
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:       p.cfg.Workers,
		QueueDepth:    len(p.queue),
		QueueCapacity: p.cfg.QueueSize,
		Submitted:     p.submitted.Load(),
		Completed:     p.completed.Load(),
		Failed:        p.failed.Load(),
		Rejected:      p.rejected.Load(),
		Requeued:      p.requeued.Load(),
		QuotaPauses:   p.quotaPauses.Load(),
		Uptime:        time.Since(p.started),
	}
}

// Shutdown stops the workers. Tasks still queued are abandoned and their
// waiters unblocked with ErrPoolClosed.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		p.runCancel()
		p.wg.Wait()
		for {
			select {
			case qt := <-p.queue:
				p.metrics.AddQueueDepth(context.Background(), -1)
				qt.result <- taskResult{err: ErrPoolClosed}
			default:
				return
			}
		}
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			return
		case qt := <-p.queue:
			p.metrics.AddQueueDepth(p.runCtx, -1)
			p.execute(id, qt)
		}
	}
}

func (p *Pool) execute(id int, qt *queuedTask) {
	if !p.waitForQuotaWindow() {
		qt.result <- taskResult{err: ErrPoolClosed}
		return
	}
	if err := p.limiter.Wait(p.runCtx); err != nil {
		qt.result <- taskResult{err: ErrPoolClosed}
		return
	}

	env, err := qt.run(p.runCtx)
	if err != nil && retry.IsQuotaExhausted(err) {
		p.markQuotaExhausted(err)
		if p.tryRequeue(qt) {
			p.logger.Warn("quota exhausted, task requeued", "worker", id)
			p.pause()
			return
		}
		p.logger.Warn("quota exhausted and queue full, failing task", "worker", id)
	}

	p.completed.Add(1)
	if err != nil || !env.Success {
		p.failed.Add(1)
	}
	qt.result <- taskResult{env: env, err: err}
}

// waitForQuotaWindow sleeps until the quota marker passes. Another worker
// may extend the marker while this one sleeps, so the marker is re-read
// after every wake and the wait continues until it is in the past.
// Returns false if the pool shut down while waiting.
func (p *Pool) waitForQuotaWindow() bool {
	for {
		until := p.quotaUntil.Load()
		now := time.Now().UnixNano()
		if until <= now {
			return true
		}

		timer := time.NewTimer(time.Duration(until - now))
		select {
		case <-p.runCtx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// markQuotaExhausted advances the shared quota marker. The marker never
// moves backwards, so a late-arriving shorter hint cannot shrink a longer
// wait another worker already established.
func (p *Pool) markQuotaExhausted(err error) {
	delay := time.Minute
	if hint, ok := retry.RetryAfterHint(err); ok {
		delay = hint
	}
	target := time.Now().Add(delay).UnixNano()
	for {
		current := p.quotaUntil.Load()
		if current >= target {
			return
		}
		if p.quotaUntil.CompareAndSwap(current, target) {
			return
		}
	}
}

func (p *Pool) tryRequeue(qt *queuedTask) bool {
	select {
	case p.queue <- qt:
		p.requeued.Add(1)
		p.metrics.AddQueueDepth(p.runCtx, 1)
		return true
	default:
		return false
	}
}

func (p *Pool) pause() {
	p.quotaPauses.Add(1)
	timer := time.NewTimer(p.cfg.QuotaPause)
	defer timer.Stop()
	select {
	case <-p.runCtx.Done():
	case <-timer.C:
	}
}
