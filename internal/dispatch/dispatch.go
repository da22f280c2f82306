// Package dispatch bridges the synchronous storage backends to
// cooperative callers: every store operation has a synchronous and an
// asynchronous form, backed by a worker pool sized max(4, 2*cpu) by
// default. Each scope has a FIFO admission queue: writes run alone in
// submission order, reads share admission with neighbouring reads, and a
// read submitted after a write observes that write.
package dispatch

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("github.com/chongliujia/engram/internal/dispatch")

// DefaultPoolSize returns max(4, 2*cpu).
func DefaultPoolSize() int64 {
	n := int64(2 * runtime.NumCPU())
	if n < 4 {
		return 4
	}
	return n
}

// DefaultOpTimeout bounds each backend operation once it starts running.
const DefaultOpTimeout = 5 * time.Second

// Dispatcher bounds concurrent backend I/O to pool width and serialises
// writes per scope.
type Dispatcher struct {
	sem       *semaphore.Weighted
	locks     *scopeLocks
	opTimeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOpTimeout overrides the per-operation deadline. Zero or negative
// disables the deadline entirely.
func WithOpTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.opTimeout = d }
}

// New constructs a dispatcher. poolSize <= 0 selects DefaultPoolSize();
// lockCapacity <= 0 selects the default LRU cap of 10000 active scopes.
func New(poolSize int64, lockCapacity int, opts ...Option) *Dispatcher {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize()
	}
	d := &Dispatcher{
		sem:       semaphore.NewWeighted(poolSize),
		locks:     newScopeLocks(lockCapacity),
		opTimeout: DefaultOpTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Handle is a completion handle for an asynchronous operation.
type Handle struct {
	done chan error
}

// Await blocks until the operation completes or ctx is cancelled; in the
// latter case it returns ctx.Err() immediately without waiting further.
// Cancelling the ctx given to Await does not drop the task. A task is
// dropped without running only when the ctx given to SubmitWrite or
// SubmitRead is cancelled before the task is admitted on its scope; once
// admitted, it runs to completion. RunWrite and RunRead pass one ctx to
// both, so for them a cancellation before admission drops the task.
func (h *Handle) Await(ctx context.Context) error {
	select {
	case err := <-h.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitWrite enqueues fn as a write against scopeKey: writes to the same
// scope are serialised in submission order.
func (d *Dispatcher) SubmitWrite(ctx context.Context, scopeKey string, fn func(ctx context.Context) error) *Handle {
	return d.submit(ctx, scopeKey, true, fn)
}

// SubmitRead enqueues fn as a read against scopeKey: reads on the same
// scope run in parallel with each other but never interleave mid-write.
func (d *Dispatcher) SubmitRead(ctx context.Context, scopeKey string, fn func(ctx context.Context) error) *Handle {
	return d.submit(ctx, scopeKey, false, fn)
}

func (d *Dispatcher) submit(ctx context.Context, scopeKey string, write bool, fn func(ctx context.Context) error) *Handle {
	h := &Handle{done: make(chan error, 1)}
	// Enqueue synchronously, before spawning the goroutine, so two Submit
	// calls on the same scope take queue positions in program order rather
	// than goroutine-scheduling order.
	w := d.locks.enqueue(scopeKey, write)
	go func() {
		select {
		case <-w.ready:
		case <-ctx.Done():
			if d.locks.abandon(scopeKey, w) {
				h.done <- ctx.Err() // dropped: cancelled before the task started
				return
			}
			// Admission raced the cancellation and won; the task now runs
			// to completion like any started task.
			<-w.ready
		}
		defer d.locks.done(scopeKey, w)

		// Pool admission comes after scope admission: an admitted task
		// waiting for a pool slot is never behind a same-scope task that
		// still needs one, so slots always drain.
		if err := d.sem.Acquire(context.WithoutCancel(ctx), 1); err != nil {
			h.done <- err
			return
		}
		defer d.sem.Release(1)

		// Once admitted, the task is immune to the caller's cancellation;
		// only the pre-admission wait above observes ctx.Done(). The op
		// deadline still applies so a wedged backend call cannot hold the
		// scope queue forever.
		runCtx := context.WithoutCancel(ctx)
		if d.opTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, d.opTimeout)
			defer cancel()
		}
		runCtx, span := tracer.Start(runCtx, "dispatch.run", trace.WithAttributes(
			attribute.String("scope_hash", scopeKey),
			attribute.Bool("write", write),
		))
		err := fn(runCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		h.done <- err
	}()
	return h
}

// RunWrite is the synchronous form of SubmitWrite: submit then await.
func (d *Dispatcher) RunWrite(ctx context.Context, scopeKey string, fn func(ctx context.Context) error) error {
	return d.SubmitWrite(ctx, scopeKey, fn).Await(ctx)
}

// RunRead is the synchronous form of SubmitRead.
func (d *Dispatcher) RunRead(ctx context.Context, scopeKey string, fn func(ctx context.Context) error) error {
	return d.SubmitRead(ctx, scopeKey, fn).Await(ctx)
}
