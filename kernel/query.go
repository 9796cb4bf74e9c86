package kernel

import (
	"context"
	"strings"
	stdsync "sync"
	"time"

	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/query"
	"github.com/conceptrt/conceptrt/storage"
	"github.com/conceptrt/conceptrt/transport"
)

// adapterMap is a concurrency-safe registry of lite-query adapters keyed by
// "concept/relation".
type adapterMap struct {
	m stdsync.Map
}

func (a *adapterMap) loadOrStore(key string, build func() *query.Adapter) *query.Adapter {
	if v, ok := a.m.Load(key); ok {
		return v.(*query.Adapter)
	}
	v, _ := a.m.LoadOrStore(key, build())
	return v.(*query.Adapter)
}

func (a *adapterMap) invalidatePrefix(prefix string) {
	a.m.Range(func(key, value interface{}) bool {
		if strings.HasPrefix(key.(string), prefix) {
			value.(*query.Adapter).Invalidate()
		}
		return true
	})
}

// transportProtocol bridges a concept's transport.Querier capability to the
// lite-query adapter's Protocol interface: one relation's worth of rows is
// treated as the whole snapshot, since every demonstration concept exposes
// at most a handful of independently queryable relations.
type transportProtocol struct {
	querier  transport.Querier
	relation string
}

func (p transportProtocol) Snapshot() (query.Snapshot, error) {
	rows, err := p.querier.Query(context.Background(), p.relation, nil)
	if err != nil {
		return query.Snapshot{}, errors.Wrapf(err, "could not query relation %q", p.relation)
	}
	return query.Snapshot{
		AsOf:      time.Now(),
		Relations: map[string][]model.Fields{p.relation: rows},
	}, nil
}

// resolveQuery is the sync.QueryFunc the kernel hands to the sync engine
// for WhereQuery clauses: resolve concept's transport, build or reuse its
// lite-query adapter, and read through the cache.
func (k *Kernel) resolveQuery(concept, relation string, filter storage.Filter) ([]model.Fields, error) {
	t, ok := k.registry.Resolve(concept)
	if !ok {
		return nil, errors.Errorf("concept %q not registered", concept)
	}
	querier, ok := t.(transport.Querier)
	if !ok {
		return nil, errors.Errorf("concept %q does not support queries", concept)
	}

	key := concept + "/" + relation
	adapter := k.queryAdapters.loadOrStore(key, func() *query.Adapter {
		return query.NewShared(key, transportProtocol{querier: querier, relation: relation}, k.cfg.QueryTTL, k.queryCache)
	})
	return adapter.Read(relation, filter)
}

// invalidateQueries drops every cached lite-query snapshot for concept,
// across all of its relations, called after any successful write to it.
func (k *Kernel) invalidateQueries(concept string) {
	k.queryAdapters.invalidatePrefix(concept + "/")
}
