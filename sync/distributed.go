package sync

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/conceptrt/conceptrt/kernelmetrics"
	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/registry"
)

// Dispatch delivers one invocation produced by a sync firing, returning its
// completion once known. Supplied by the kernel, which owns the transport
// dispatch loop; the distributed engine only decides *when* to call it.
type Dispatch func(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error)

// DistributedEngine wraps an Engine with cross-runtime firing annotations:
//
//   - eager (the default, no annotation) delivers synchronously, the same
//     as the single-process engine.
//   - eventual holds the invocation in a PendingQueue when its target
//     concept is unavailable, redelivering on the registry's next
//     availability signal for that concept.
//   - local never forwards its firing to an upstream engine: if the target
//     is unavailable and not eventual, the firing is simply dropped rather
//     than escalated.
//   - idempotent marks a sync safe to redeliver without additional
//     bookkeeping — it is still evaluated while degraded (its target
//     unavailable), and
//     a dispatch retry that double-delivers is tolerated by the target
//     concept's own action semantics.
type DistributedEngine struct {
	log       zerolog.Logger
	RuntimeID string
	Engine    *Engine
	registry  *registry.Registry
	dispatch  Dispatch
	pending   *PendingQueue
	upstream  *DistributedEngine

	maxAge time.Duration
	cron   *cron.Cron

	metrics *kernelmetrics.Collector
}

// SetMetrics attaches a metrics sink, also propagated to the wrapped Engine.
func (d *DistributedEngine) SetMetrics(m *kernelmetrics.Collector) {
	d.metrics = m
	d.Engine.SetMetrics(m)
}

// NewDistributed wraps engine for runtimeID, draining `eventual`-annotated
// pending invocations as concepts come back online and running a periodic
// max-age eviction sweep over entries that never recovered.
func NewDistributed(log zerolog.Logger, runtimeID string, engine *Engine, reg *registry.Registry, dispatch Dispatch, maxAge time.Duration) *DistributedEngine {
	d := &DistributedEngine{
		log:       log.With().Str("component", "distributed_sync_engine").Str("runtime", runtimeID).Logger(),
		RuntimeID: runtimeID,
		Engine:    engine,
		registry:  reg,
		dispatch:  dispatch,
		pending:   NewPendingQueue(),
		maxAge:    maxAge,
	}
	reg.OnAvailability(d.onAvailabilityChange)
	return d
}

// SetUpstream attaches an upstream engine this one forwards non-`local`
// firings to when it cannot itself deliver them.
func (d *DistributedEngine) SetUpstream(upstream *DistributedEngine) {
	d.upstream = upstream
}

// StartEvictionSweep schedules a periodic pending-queue eviction on a
// robfig/cron/v3 schedule (e.g. "@every 1m"). Call Stop to halt it.
func (d *DistributedEngine) StartEvictionSweep(schedule string) error {
	d.cron = cron.New()
	_, err := d.cron.AddFunc(schedule, func() {
		cutoff := time.Now().Add(-d.maxAge)
		dropped := d.pending.EvictOlderThan(cutoff)
		d.metrics.SetPendingQueueLength(d.RuntimeID, d.pending.Len())
		if dropped > 0 {
			d.log.Warn().Int("dropped", dropped).Msg("evicted stale pending sync invocations")
		}
	})
	if err != nil {
		return errors.Wrap(err, "could not schedule pending-queue eviction")
	}
	d.cron.Start()
	return nil
}

// Stop halts the eviction sweep, if running.
func (d *DistributedEngine) Stop() {
	if d.cron != nil {
		d.cron.Stop()
	}
}

// PendingLen reports how many invocations are currently queued awaiting
// their target concept's availability.
func (d *DistributedEngine) PendingLen() int {
	return d.pending.Len()
}

// OnCompletion matches c against the local sync set and delivers (or
// defers, or forwards upstream) every invocation it fires, honoring each
// firing sync's annotations.
func (d *DistributedEngine) OnCompletion(ctx context.Context, c model.ActionCompletion, pool []model.ActionCompletion) ([]model.ActionCompletion, error) {
	invs, err := d.Engine.OnCompletion(c, pool)
	if err != nil {
		return nil, err
	}

	var completions []model.ActionCompletion
	for _, inv := range invs {
		s, _ := d.Engine.index.Get(inv.Sync)
		out, err := d.deliver(ctx, s, inv)
		if err != nil {
			return nil, err
		}
		if out != nil {
			completions = append(completions, *out)
		}
	}
	return completions, nil
}

func (d *DistributedEngine) deliver(ctx context.Context, s model.CompiledSync, inv model.ActionInvocation) (*model.ActionCompletion, error) {
	// Web/respond is answered by the kernel's dispatch itself and never has
	// a registered transport, so it is always deliverable.
	available := d.registry == nil || (inv.Concept == "Web" && inv.Action == "respond") || d.registry.Available(inv.Concept)

	if !available {
		if s.Has(model.AnnotationEventual) {
			d.pending.Push(PendingEntry{ID: inv.ID, Concept: inv.Concept, Invocation: inv, EnqueuedAt: time.Now()})
			d.metrics.SetPendingQueueLength(d.RuntimeID, d.pending.Len())
			d.log.Debug().Str("concept", inv.Concept).Str("sync", s.Name).Msg("deferred invocation: target unavailable")
			return nil, nil
		}
		if !s.Has(model.AnnotationLocal) && d.upstream != nil {
			return d.upstream.deliver(ctx, s, inv)
		}
		d.log.Warn().Str("concept", inv.Concept).Str("sync", s.Name).
			Msg("dropping invocation: target unavailable and not recoverable")
		return nil, nil
	}

	c, err := d.dispatch(ctx, inv)
	if err != nil {
		return nil, errors.Wrapf(err, "could not deliver invocation for sync %q", s.Name)
	}
	return &c, nil
}

// onAvailabilityChange degrades or undegrades syncs targeting uri, and on
// recovery redelivers every invocation pending for it.
func (d *DistributedEngine) onAvailabilityChange(uri string, available bool) {
	if !available {
		d.Engine.DegradeForConcept(uri)
		return
	}
	d.Engine.UndegradeForConcept(uri)

	drained := d.pending.DrainConcept(uri)
	d.metrics.SetPendingQueueLength(d.RuntimeID, d.pending.Len())
	for _, entry := range drained {
		if _, err := d.dispatch(context.Background(), entry.Invocation); err != nil {
			d.log.Error().Err(err).Str("sync", entry.Invocation.Sync).Str("concept", uri).
				Msg("could not redeliver pending invocation")
		}
	}
}
