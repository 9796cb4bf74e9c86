package kernel

import (
	"context"

	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
	"github.com/conceptrt/conceptrt/transport"
)

// InvokeConcept calls uri directly, bypassing the sync engine entirely —
// used for setup (seeding state before a demo) and for CLI/administrative
// access to a concept's action surface.
// Unlike dispatchInvocation, a failure here is returned as a Go error: there
// is no flow for a synthetic error completion to join.
func (k *Kernel) InvokeConcept(ctx context.Context, uri, action string, input model.Fields) (model.ActionCompletion, error) {
	t, ok := k.registry.Resolve(uri)
	if !ok {
		return model.ActionCompletion{}, errors.Errorf("concept %q not registered", uri)
	}

	inv := model.ActionInvocation{
		ID:        k.newID(),
		Concept:   uri,
		Action:    action,
		Input:     input,
		Flow:      k.newID(),
		Timestamp: k.now(),
	}
	if err := k.actionLog.AppendInvocation(inv); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not append invocation")
	}
	k.metrics.RecordInvocation(uri, action)

	timeout := k.cfg.InvocationTimeout
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := t.Invoke(callCtx, inv)
	if err != nil {
		k.registry.MarkUnavailable(uri)
		return model.ActionCompletion{}, errors.Wrap(err, "invoke failed")
	}
	c = stampCompletion(c, inv)
	if c.Timestamp.IsZero() {
		c.Timestamp = k.now()
	}
	if err := k.actionLog.AppendCompletion(c); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not append completion")
	}
	k.metrics.RecordCompletion(c.Concept, c.Action, c.Variant)
	if !c.IsError() {
		k.invalidateQueries(uri)
	}
	return c, nil
}

// QueryConcept reads uri's relation through the lite-query adapter if the
// transport supports it, falling back to a direct transport.Query call.
func (k *Kernel) QueryConcept(uri, relation string, filter storage.Filter) ([]model.Fields, error) {
	return k.resolveQuery(uri, relation, filter)
}
