// Package kernel implements the dispatch loop: it turns an
// inbound request into a flow, dispatches the invocations the sync engine
// fires in response to each completion, and returns the first response a
// sync produces for `Web/respond`.
package kernel

import (
	stdsync "sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/conceptrt/conceptrt/action"
	"github.com/conceptrt/conceptrt/kernelmetrics"
	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/query"
	"github.com/conceptrt/conceptrt/registry"
	"github.com/conceptrt/conceptrt/sync"
	"github.com/conceptrt/conceptrt/transport"
)

// Config tunes the dispatch loop's resource limits. All fields have usable
// zero-equivalent defaults via DefaultConfig.
type Config struct {
	// RuntimeID identifies this kernel instance in distributed deployments.
	RuntimeID string

	// InvocationTimeout bounds how long the kernel waits for a single
	// transport call before recording a "timeout" error completion.
	InvocationTimeout time.Duration

	// MaxInvocations caps how many invocations one flow may process before
	// the kernel treats it as a non-terminating sync cycle and gives up.
	MaxInvocations int

	// PendingMaxAge bounds how long an `eventual` sync firing waits for its
	// target concept before the distributed engine drops it.
	PendingMaxAge time.Duration

	// QueryCacheSize bounds the lite-query adapter's shared LRU, in entries
	// (one per concept/relation pair actually queried).
	QueryCacheSize int

	// QueryTTL is how long a lite-query snapshot is considered fresh.
	QueryTTL time.Duration
}

// DefaultConfig returns conservative defaults suitable for a single-process
// deployment.
func DefaultConfig() Config {
	return Config{
		RuntimeID:         "local",
		InvocationTimeout: transport.DefaultTimeout,
		MaxInvocations:    1000,
		PendingMaxAge:     5 * time.Minute,
		QueryCacheSize:    256,
		QueryTTL:          2 * time.Second,
	}
}

// Kernel is the dispatch loop. Safe for concurrent HandleRequest calls:
// per-flow state lives in flowResponses and in the parameters threaded
// through processFlow, not in shared mutable fields beyond the registry,
// action log, and sync engine, which are themselves concurrency-safe.
type Kernel struct {
	log        zerolog.Logger
	registry   *registry.Registry
	actionLog  action.Log
	distEngine *sync.DistributedEngine
	cfg        Config

	newID func() model.ID
	now   func() time.Time

	queryCache    *lru.Cache
	queryAdapters adapterMap

	flowResponses stdsync.Map // model.ID -> *responseHolder

	metrics *kernelmetrics.Collector
}

// SetMetrics attaches a metrics sink shared by the dispatch loop and the
// sync engine; nil (the default) disables recording entirely.
func (k *Kernel) SetMetrics(m *kernelmetrics.Collector) {
	k.metrics = m
	k.distEngine.SetMetrics(m)
}

// New builds a Kernel wired to reg for concept resolution and actionLog for
// durability. The sync engine is always a DistributedEngine — in a
// single-process deployment it simply has no upstream and every concept is
// locally available, which degenerates to purely synchronous dispatch.
func New(log zerolog.Logger, reg *registry.Registry, actionLog action.Log, cfg Config) (*Kernel, error) {
	cache, err := query.NewCache(cfg.QueryCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not build kernel")
	}

	k := &Kernel{
		log:        log.With().Str("component", "kernel").Logger(),
		registry:   reg,
		actionLog:  actionLog,
		cfg:        cfg,
		newID:      model.NewID,
		now:        time.Now,
		queryCache: cache,
	}

	engine := sync.New(k.log, actionLog, k.resolveQuery)
	k.distEngine = sync.NewDistributed(k.log, cfg.RuntimeID, engine, reg, k.dispatchInvocation, cfg.PendingMaxAge)
	return k, nil
}

// ActionLog exposes the kernel's action log, chiefly so callers can feed it
// to trace.GetFlowTrace after a flow completes.
func (k *Kernel) ActionLog() action.Log {
	return k.actionLog
}

// RegisterConcept adds a concept to the registry.
func (k *Kernel) RegisterConcept(uri string, t transport.Transport) {
	k.registry.Register(uri, t)
}

// ReloadConcept swaps a concept's transport without dropping in-flight
// calls to the old one.
func (k *Kernel) ReloadConcept(uri string, t transport.Transport) {
	k.registry.ReloadConcept(uri, t)
}

// DeregisterConcept removes a concept.
func (k *Kernel) DeregisterConcept(uri string) bool {
	return k.registry.DeregisterConcept(uri)
}

// RegisterSync adds or replaces one compiled sync.
func (k *Kernel) RegisterSync(s model.CompiledSync) {
	k.distEngine.Engine.RegisterSync(s)
}

// ReloadSyncs atomically replaces the whole sync set; in-flight dispatch is
// unaffected, and the next completion sees only the new set.
func (k *Kernel) ReloadSyncs(syncs map[string]model.CompiledSync) {
	k.distEngine.Engine.ReloadSyncs(syncs)
}

// StartEvictionSweep begins periodically dropping pending `eventual`
// invocations older than cfg.PendingMaxAge, on a robfig/cron schedule (e.g.
// "@every 1m").
func (k *Kernel) StartEvictionSweep(schedule string) error {
	return k.distEngine.StartEvictionSweep(schedule)
}

// Close releases background resources (the eviction sweep).
func (k *Kernel) Close() {
	k.distEngine.Stop()
}
