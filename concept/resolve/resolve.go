// Package resolve implements a stateless multi-value conflict resolver: it
// always returns its inputs in the same sorted order regardless of the
// order they were supplied in, demonstrating commutative resolution.
package resolve

import (
	"context"
	"sort"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// Handler implements transport/inprocess.Handler for the Resolve concept.
func Handler(_ context.Context, _ storage.Store, inv model.ActionInvocation) model.ActionCompletion {
	switch inv.Action {
	case "attemptResolve":
		v1, _ := inv.Input.Get("v1")
		v2, _ := inv.Input.Get("v2")
		s1, _ := v1.(string)
		s2, _ := v2.(string)
		values := []string{s1, s2}
		sort.Strings(values)
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = v
		}
		return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{"values": out}}
	default:
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "unknown action " + inv.Action}}
	}
}
