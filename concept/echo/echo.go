// Package echo implements the simplest possible concept: it echoes back
// whatever text it is given. It exists to exercise the dispatch loop
// end-to-end with the smallest possible sync graph.
package echo

import (
	"context"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// Handler implements transport/inprocess.Handler for the Echo concept.
func Handler(_ context.Context, _ storage.Store, inv model.ActionInvocation) model.ActionCompletion {
	switch inv.Action {
	case "send":
		text, _ := inv.Input.Get("text")
		return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{"echo": text}}
	default:
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "unknown action " + inv.Action}}
	}
}
