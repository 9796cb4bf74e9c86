package kernel

import (
	"context"

	"github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/transport"
)

// dispatchInvocation is the sync.Dispatch implementation the kernel hands
// to its distributed engine: resolve inv.Concept in the registry, call its
// transport, and record both sides of the exchange in the action log.
// Every failure mode — unregistered concept, transport error, timeout —
// becomes an `error`-variant completion rather than a Go error, so the
// dispatch loop never aborts a flow on a single failed invocation.
func (k *Kernel) dispatchInvocation(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error) {
	if inv.Concept == "Web" && inv.Action == "respond" {
		return k.respond(inv)
	}

	if err := k.actionLog.AppendInvocation(inv); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not append invocation")
	}
	k.metrics.RecordInvocation(inv.Concept, inv.Action)

	t, ok := k.registry.Resolve(inv.Concept)
	if !ok {
		c := k.errorCompletion(inv, "concept not registered")
		return k.finish(inv, c)
	}

	timeout := k.cfg.InvocationTimeout
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := t.Invoke(callCtx, inv)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c = k.errorCompletion(inv, "timeout")
	case err != nil:
		c = k.errorCompletion(inv, "transport error: "+err.Error())
		k.registry.MarkUnavailable(inv.Concept)
	default:
		c = stampCompletion(c, inv)
		if c.Timestamp.IsZero() {
			c.Timestamp = k.now()
		}
	}

	return k.finish(inv, c)
}

// respond handles the synthetic `Web/respond` action: it never goes through
// the registry or a transport. Its invocation carries the response fields
// directly.
func (k *Kernel) respond(inv model.ActionInvocation) (model.ActionCompletion, error) {
	if err := k.actionLog.AppendInvocation(inv); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not append Web/respond invocation")
	}

	c := model.ActionCompletion{
		ID:        inv.ID,
		Concept:   inv.Concept,
		Action:    inv.Action,
		Input:     inv.Input,
		Variant:   model.VariantOK,
		Output:    inv.Input,
		Flow:      inv.Flow,
		Timestamp: k.now(),
		Parent:    inv.Parent,
	}
	if err := k.actionLog.AppendCompletion(c); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not append Web/respond completion")
	}
	k.metrics.RecordCompletion(c.Concept, c.Action, c.Variant)

	if holder, ok := k.responseHolderFor(inv.Flow); ok {
		holder.trySet(responseFromInput(inv.Flow, inv.Input))
	}
	return c, nil
}

// finish appends c to the action log and invalidates any lite-query
// snapshots cached for inv.Concept on a successful (non-error) completion,
// since the concept's state may have just changed.
func (k *Kernel) finish(inv model.ActionInvocation, c model.ActionCompletion) (model.ActionCompletion, error) {
	if err := k.actionLog.AppendCompletion(c); err != nil {
		return model.ActionCompletion{}, errors.Wrap(err, "could not append completion")
	}
	k.metrics.RecordCompletion(c.Concept, c.Action, c.Variant)
	if !c.IsError() {
		k.invalidateQueries(inv.Concept)
	}
	return c, nil
}

func (k *Kernel) errorCompletion(inv model.ActionInvocation, message string) model.ActionCompletion {
	return model.ActionCompletion{
		ID:        inv.ID,
		Concept:   inv.Concept,
		Action:    inv.Action,
		Input:     inv.Input,
		Variant:   model.VariantError,
		Output:    model.Fields{"message": message},
		Flow:      inv.Flow,
		Timestamp: k.now(),
		Parent:    inv.Parent,
	}
}

// stampCompletion fills in any identifying fields a transport left zero, so
// a minimal transport implementation cannot corrupt the flow's bookkeeping.
func stampCompletion(c model.ActionCompletion, inv model.ActionInvocation) model.ActionCompletion {
	c.ID = inv.ID
	c.Concept = inv.Concept
	c.Action = inv.Action
	c.Flow = inv.Flow
	if c.Parent.IsZero() {
		c.Parent = inv.Parent
	}
	return c
}
