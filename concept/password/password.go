// Package password implements a minimal credential concept: validating a
// candidate password against a length policy, and storing a set password
// keyed by user.
package password

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// MinLength is the shortest password this concept considers valid.
const MinLength = 8

const relation = "passwords"

// Handler implements transport/inprocess.Handler for the Password concept.
func Handler(_ context.Context, store storage.Store, inv model.ActionInvocation) model.ActionCompletion {
	switch inv.Action {
	case "validate":
		pw, _ := inv.Input.Get("password")
		s, _ := pw.(string)
		return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{"valid": len(s) >= MinLength}}

	case "set":
		user, _ := inv.Input.Get("user")
		pw, _ := inv.Input.Get("password")
		key, _ := user.(string)
		s, _ := pw.(string)
		if key == "" {
			return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "missing user"}}
		}
		if err := store.Put(relation, key, model.Fields{"user": key, "hash": hash(s)}); err != nil {
			return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": err.Error()}}
		}
		return model.ActionCompletion{Variant: model.VariantOK, Output: model.Fields{"user": key}}

	default:
		return model.ActionCompletion{Variant: model.VariantError, Output: model.Fields{"message": "unknown action " + inv.Action}}
	}
}

func hash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
