// Package composer implements the public build_memory_packet operation:
// validate, read short-term state, retrieve candidates, fit them under
// budget, assemble the packet, and optionally persist a context-build
// audit record. Each build runs inside one OTel span with composer-level
// counters alongside.
package composer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/chongliujia/engram/internal/budget"
	"github.com/chongliujia/engram/internal/dispatch"
	"github.com/chongliujia/engram/internal/retrieval"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

var tracer = otel.Tracer("github.com/chongliujia/engram/internal/composer")

var composerMetrics struct {
	buildCount    metric.Int64Counter
	buildDuration metric.Float64Histogram
	omittedCount  metric.Int64Counter
	persistErrors metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/chongliujia/engram/internal/composer")
	composerMetrics.buildCount, _ = m.Int64Counter("engram.composer.build_count",
		metric.WithDescription("build_memory_packet invocations"), metric.WithUnit("{build}"))
	composerMetrics.buildDuration, _ = m.Float64Histogram("engram.composer.build_duration",
		metric.WithDescription("build_memory_packet wall time"), metric.WithUnit("ms"))
	composerMetrics.omittedCount, _ = m.Int64Counter("engram.composer.omitted_candidates",
		metric.WithDescription("candidates dropped by the budget fitter"), metric.WithUnit("{candidate}"))
	composerMetrics.persistErrors, _ = m.Int64Counter("engram.composer.persist_errors",
		metric.WithDescription("non-strict context-build persistence failures"), metric.WithUnit("{error}"))
}

// Composer orchestrates build_memory_packet against one Storage backend.
// Candidate retrieval runs under the scope's read lock via the Dispatcher
// so the snapshot is consistent against concurrent writers.
type Composer struct {
	store     storage.Storage
	disp      *dispatch.Dispatcher
	defPolicy *types.RetrievalPolicy
	log       *slog.Logger
	clock     func() int64

	mu          sync.Mutex
	lastCreated int64
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option { return func(c *Composer) { c.log = l } }

// WithClock overrides the default time source for created_ms.
func WithClock(clock func() int64) Option { return func(c *Composer) { c.clock = clock } }

// WithDefaultPolicy sets the retrieval limits applied when a request
// carries no policy of its own.
func WithDefaultPolicy(p types.RetrievalPolicy) Option {
	return func(c *Composer) { c.defPolicy = &p }
}

// New constructs a Composer over store, dispatching snapshot reads
// through d.
func New(store storage.Storage, d *dispatch.Dispatcher, opts ...Option) *Composer {
	c := &Composer{store: store, disp: d, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Build runs one composition: Received -> Validated -> Retrieved ->
// Fitted -> Emitted -> [Persisted]. Any failure before Emitted returns an
// error; once Emitted, the packet is returned even if persistence fails
// non-strictly.
func (c *Composer) Build(ctx context.Context, req types.BuildRequest) (types.MemoryPacket, error) {
	const op = "composer.Build"
	buildID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "composer.build", trace.WithAttributes(
		attribute.String("purpose", string(req.Purpose)),
		attribute.String("build_id", buildID),
	))
	defer span.End()
	composerMetrics.buildCount.Add(ctx, 1)
	start := time.Now()
	defer func() {
		composerMetrics.buildDuration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond))
	}()

	// Validated
	if err := req.Scope.Validate(); err != nil {
		err = storage.Wrap(op, storage.KindInvalidArgument, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.MemoryPacket{}, err
	}
	policy := types.RetrievalPolicy{}
	switch {
	case req.Policy != nil:
		policy = *req.Policy
	case c.defPolicy != nil:
		policy = *c.defPolicy
	}
	policy = policy.WithDefaults()

	var ws *types.WorkingState
	var stm *types.STM
	var set retrieval.CandidateSet

	// Retrieved: snapshot the scope under its read lock so no concurrent
	// write interleaves with candidate retrieval.
	err := c.disp.RunRead(ctx, req.Scope.Hash(), func(ctx context.Context) error {
		var err error
		ws, err = c.store.GetWorkingState(ctx, req.Scope)
		if err != nil {
			return err
		}
		stm, err = c.store.GetSTM(ctx, req.Scope)
		if err != nil {
			return err
		}
		set, err = retrieval.Select(ctx, c.store, req.Scope, req.TaskType, req.Cues, policy)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.MemoryPacket{}, err
	}

	// Fitted
	b := types.Budget{}
	if req.Budget != nil {
		b = *req.Budget
	}
	fitted := budget.Fit(set, b)
	composerMetrics.omittedCount.Add(ctx, int64(len(fitted.Omissions)))

	// Emitted
	packet := types.MemoryPacket{
		Meta: types.Meta{
			SchemaVersion: types.SchemaVersion,
			Scope:         req.Scope,
			Purpose:       req.Purpose,
			CreatedMs:     c.now(),
			PolicyID:      req.PolicyID,
		},
		ShortTerm: types.ShortTerm{WorkingState: ws, STM: stm},
		LongTerm: types.LongTerm{
			Facts:      fitted.Facts,
			Episodes:   fitted.Episodes,
			Procedures: fitted.Procedures,
			Insights:   fitted.Insights,
		},
		Events: fitted.Events,
		BudgetReport: types.BudgetReport{
			RequestedTokens: b.MaxTokens,
			UsedTokensEst:   fitted.UsedTokens,
			RemainingTokens: fitted.RemainingTokens,
			Omissions:       fitted.Omissions,
		},
		Explain: types.Explain{
			CandidateLimits: policy,
			SelectionCounts: set.Counts(),
			EstimatorFactor: types.EstimatorFactor,
		},
	}

	// [Persisted]: failure is downgraded to a warning unless persist_strict.
	if req.PersistOrDefault() {
		cb := types.ContextBuild{Scope: req.Scope, CreatedMs: packet.Meta.CreatedMs, Packet: packet}
		persistErr := c.disp.RunWrite(ctx, req.Scope.Hash(), func(ctx context.Context) error {
			return c.store.WriteContextBuild(ctx, cb)
		})
		if persistErr != nil {
			composerMetrics.persistErrors.Add(ctx, 1)
			if req.PersistStrict {
				span.RecordError(persistErr)
				span.SetStatus(codes.Error, persistErr.Error())
				return types.MemoryPacket{}, persistErr
			}
			c.log.Warn("context build persistence failed", "error", persistErr, "build_id", buildID, "scope", req.Scope.String())
		}
	}

	return packet, nil
}

// now returns a build's created_ms. Values are strictly increasing per
// Composer, so two builds in the same millisecond never share the
// (scope, created_ms) key of the context-build log.
func (c *Composer) now() int64 {
	t := time.Now().UnixMilli()
	if c.clock != nil {
		t = c.clock()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t <= c.lastCreated {
		t = c.lastCreated + 1
	}
	c.lastCreated = t
	return t
}
