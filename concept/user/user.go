// Package user implements a minimal user-registration concept, storing one
// row per username.
package user

import (
	"context"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

const relation = "users"

// Handler implements transport/inprocess.Handler for the User concept.
func Handler(_ context.Context, store storage.Store, inv model.ActionInvocation) model.ActionCompletion {
	switch inv.Action {
	case "register":
		username, _ := inv.Input.Get("username")
		email, _ := inv.Input.Get("email")
		key, _ := username.(string)
		if key == "" {
			return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "missing username"}}
		}
		if _, found, _ := store.Get(relation, key); found {
			return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "username taken"}}
		}
		record := model.Fields{"username": key, "email": email}
		if err := store.Put(relation, key, record); err != nil {
			return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": err.Error()}}
		}
		// username/email are duplicated at the top level (in addition to the
		// nested "user" record) so syncs can bind them directly as join keys
		// without reaching into a nested map.
		return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{
			"user": record, "username": key, "email": email,
		}}

	default:
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "unknown action " + inv.Action}}
	}
}
