// Package lock implements a pessimistic resource lock: the first caller to
// check out a resource holds it; later callers queue in arrival order until
// the holder checks back in.
package lock

import (
	"context"

	"github.com/google/uuid"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

const (
	relationLocks  = "locks"
	relationQueue  = "queue"
	relationOwners = "lockOwners" // lockId -> {resource}
)

const (
	variantQueued = "queued"
)

// Handler implements transport/inprocess.Handler for the Lock concept.
func Handler(_ context.Context, store storage.Store, inv model.ActionInvocation) model.ActionCompletion {
	switch inv.Action {
	case "checkOut":
		return checkOut(store, inv)
	case "checkIn":
		return checkIn(store, inv)
	default:
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "unknown action " + inv.Action}}
	}
}

func checkOut(store storage.Store, inv model.ActionInvocation) model.ActionCompletion {
	resourceV, _ := inv.Input.Get("resource")
	whoV, _ := inv.Input.Get("who")
	resource, _ := resourceV.(string)
	who, _ := whoV.(string)
	if resource == "" || who == "" {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "missing resource or who"}}
	}

	if held, found, err := store.Get(relationLocks, resource); err == nil && found {
		if holder, _ := held.Get("holder"); holder == who {
			lockID, _ := held.Get("lockId")
			return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{"lockId": lockID}}
		}
		waiters := enqueue(store, resource, who)
		return model.ActionCompletion{Variant: variantQueued, Output: model.Fields{"position": indexOf(waiters, who) + 1}}
	}

	lockID := uuid.New().String()
	if err := store.Put(relationLocks, resource, model.Fields{"lockId": lockID, "holder": who}); err != nil {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": err.Error()}}
	}
	if err := store.Put(relationOwners, lockID, model.Fields{"resource": resource}); err != nil {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": err.Error()}}
	}
	removeFromQueue(store, resource, who)
	return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{"lockId": lockID}}
}

func checkIn(store storage.Store, inv model.ActionInvocation) model.ActionCompletion {
	lockIDV, _ := inv.Input.Get("lockId")
	lockID, _ := lockIDV.(string)
	if lockID == "" {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "missing lockId"}}
	}

	owner, found, err := store.Get(relationOwners, lockID)
	if err != nil {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": err.Error()}}
	}
	if !found {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "unknown lock"}}
	}
	resourceV, _ := owner.Get("resource")
	resource, _ := resourceV.(string)

	if err := store.Del(relationLocks, resource); err != nil {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": err.Error()}}
	}
	if err := store.Del(relationOwners, lockID); err != nil {
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": err.Error()}}
	}
	return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{"resource": resource}}
}

func enqueue(store storage.Store, resource, who string) []string {
	waiters := loadQueue(store, resource)
	for _, w := range waiters {
		if w == who {
			return waiters
		}
	}
	waiters = append(waiters, who)
	_ = store.Put(relationQueue, resource, model.Fields{"waiters": toInterfaceSlice(waiters)})
	return waiters
}

func removeFromQueue(store storage.Store, resource, who string) {
	waiters := loadQueue(store, resource)
	out := waiters[:0]
	for _, w := range waiters {
		if w != who {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		_ = store.Del(relationQueue, resource)
		return
	}
	_ = store.Put(relationQueue, resource, model.Fields{"waiters": toInterfaceSlice(out)})
}

func loadQueue(store storage.Store, resource string) []string {
	row, found, err := store.Get(relationQueue, resource)
	if err != nil || !found {
		return nil
	}
	raw, _ := row.Get("waiters")
	items, _ := raw.([]interface{})
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func indexOf(ss []string, target string) int {
	for i, s := range ss {
		if s == target {
			return i
		}
	}
	return -1
}
