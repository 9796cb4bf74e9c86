// Package inprocess implements transport.Transport by calling a concept
// handler directly in the caller's goroutine, the same way a stub network
// transport delivers events directly between in-process peers without a
// wire hop.
package inprocess

import (
	"context"
	"time"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// Handler is a concept's action surface: given an invocation and the
// storage.Store the kernel injected at registration time, produce a
// completion. Handlers must not block indefinitely; the kernel's
// per-invocation timeout is enforced by the caller via ctx.
type Handler func(ctx context.Context, store storage.Store, inv model.ActionInvocation) model.ActionCompletion

// Transport wraps a Handler and the storage.Store it operates over.
type Transport struct {
	handler Handler
	store   storage.Store
}

// New returns an in-process transport bound to handler and store.
func New(handler Handler, store storage.Store) *Transport {
	return &Transport{handler: handler, store: store}
}

// Invoke calls the handler synchronously, stamping Timestamp if the handler
// did not set one.
func (t *Transport) Invoke(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error) {
	c := t.handler(ctx, t.store, inv)
	if c.ID.IsZero() {
		c.ID = inv.ID
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	c.Concept = inv.Concept
	c.Action = inv.Action
	c.Input = inv.Input
	c.Flow = inv.Flow
	return c, nil
}

// Query answers a relation read directly from the bound store, giving every
// in-process concept a working Querier without extra wiring.
func (t *Transport) Query(_ context.Context, relation string, filter storage.Filter) ([]model.Fields, error) {
	return t.store.Find(relation, filter)
}

// Store returns the storage.Store backing this transport, so the kernel or
// lite-query adapter can invalidate caches on local writes.
func (t *Transport) Store() storage.Store {
	return t.store
}
