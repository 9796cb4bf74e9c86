package main

import (
	"github.com/rs/zerolog"

	"github.com/conceptrt/conceptrt/action"
	badgerlog "github.com/conceptrt/conceptrt/action/badger"
	memlog "github.com/conceptrt/conceptrt/action/memory"
	"github.com/conceptrt/conceptrt/concept/echo"
	"github.com/conceptrt/conceptrt/concept/lock"
	"github.com/conceptrt/conceptrt/concept/password"
	"github.com/conceptrt/conceptrt/concept/resolve"
	"github.com/conceptrt/conceptrt/concept/user"
	"github.com/conceptrt/conceptrt/kernel"
	"github.com/conceptrt/conceptrt/kernelmetrics"
	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/registry"
	memstore "github.com/conceptrt/conceptrt/storage/memory"
	"github.com/conceptrt/conceptrt/transport/inprocess"
)

// buildDemoKernel wires the five demonstration concepts into a fresh Kernel,
// with syncs for the echo and registration flows, giving `serve` a running
// flow to exercise over HTTP. Lock and Resolve are registered without any
// syncs, so they are reached only through direct invocation. If dataDir is
// non-empty, invocations and completions persist to a badger-backed action
// log at that path instead of the default in-memory one.
func buildDemoKernel(log zerolog.Logger, dataDir string) (*kernel.Kernel, func() error, error) {
	var actionLog action.Log
	closeFn := func() error { return nil }

	if dataDir != "" {
		bl, err := badgerlog.Open(dataDir)
		if err != nil {
			return nil, nil, err
		}
		actionLog = bl
		closeFn = bl.Close
	} else {
		actionLog = memlog.New()
	}

	reg := registry.New(log)
	cfg := kernel.DefaultConfig()

	k, err := kernel.New(log, reg, actionLog, cfg)
	if err != nil {
		return nil, nil, err
	}
	k.SetMetrics(kernelmetrics.New())

	k.RegisterConcept("Echo", inprocess.New(echo.Handler, memstore.New()))
	k.RegisterConcept("Password", inprocess.New(password.Handler, memstore.New()))
	k.RegisterConcept("User", inprocess.New(user.Handler, memstore.New()))
	k.RegisterConcept("Lock", inprocess.New(lock.Handler, memstore.New()))
	k.RegisterConcept("Resolve", inprocess.New(resolve.Handler, memstore.New()))

	registerEchoSyncs(k)
	registerRegistrationSyncs(k)

	if err := k.StartEvictionSweep("@every 1m"); err != nil {
		return nil, nil, err
	}

	return k, closeFn, nil
}

func registerEchoSyncs(k *kernel.Kernel) {
	k.RegisterSync(model.CompiledSync{
		Name: "HandleEcho",
		When: []model.WhenPattern{
			{Concept: "Web", Action: "request", OutputFields: []model.FieldMatch{
				model.Literal("method", "echo"),
				model.Variable("text", "text"),
			}},
		},
		Then: []model.ThenTemplate{
			{Concept: "Echo", Action: "send", Fields: []model.ThenField{
				{Name: "text", Kind: model.MatchVariable, Var: "text"},
			}},
		},
	})
	k.RegisterSync(model.CompiledSync{
		Name: "EchoResponse",
		When: []model.WhenPattern{
			{Concept: "Web", Action: "request"},
			{Concept: "Echo", Action: "send", OutputFields: []model.FieldMatch{
				model.Variable("echo", "echo"),
			}},
		},
		Where: []model.WhereClause{
			{Kind: model.WhereBind, Expr: `object("echo", ?echo)`, As: "body"},
		},
		Then: []model.ThenTemplate{
			{Concept: "Web", Action: "respond", Fields: []model.ThenField{
				{Name: "body", Kind: model.MatchVariable, Var: "body"},
			}},
		},
	})
}

// registerRegistrationSyncs wires Password/User into a register request:
// validate, register, set the password, and respond with a generated
// token, or reject with 422 if the password fails validation. Token
// generation has no state of its own, so it is folded into a where-bind on
// RegistrationResponse rather than a fifth invocation.
func registerRegistrationSyncs(k *kernel.Kernel) {
	k.RegisterSync(model.CompiledSync{
		Name: "ValidatePassword",
		When: []model.WhenPattern{
			{Concept: "Web", Action: "request", OutputFields: []model.FieldMatch{
				model.Literal("method", "register"),
				model.Variable("password", "password"),
			}},
		},
		Then: []model.ThenTemplate{
			{Concept: "Password", Action: "validate", Fields: []model.ThenField{
				{Name: "password", Kind: model.MatchVariable, Var: "password"},
			}},
		},
	})

	k.RegisterSync(model.CompiledSync{
		Name: "RegisterUser",
		When: []model.WhenPattern{
			{Concept: "Web", Action: "request", OutputFields: []model.FieldMatch{
				model.Literal("method", "register"),
				model.Variable("user", "user"),
				model.Variable("email", "email"),
			}},
			{Concept: "Password", Action: "validate", OutputFields: []model.FieldMatch{
				model.Literal("valid", true),
			}},
		},
		Then: []model.ThenTemplate{
			{Concept: "User", Action: "register", Fields: []model.ThenField{
				{Name: "username", Kind: model.MatchVariable, Var: "user"},
				{Name: "email", Kind: model.MatchVariable, Var: "email"},
			}},
		},
	})

	k.RegisterSync(model.CompiledSync{
		Name: "SetPassword",
		When: []model.WhenPattern{
			{Concept: "Web", Action: "request", OutputFields: []model.FieldMatch{
				model.Literal("method", "register"),
				model.Variable("user", "user"),
				model.Variable("password", "password"),
			}},
			{Concept: "User", Action: "register", OutputFields: []model.FieldMatch{
				model.Variable("username", "user"),
			}},
		},
		Then: []model.ThenTemplate{
			{Concept: "Password", Action: "set", Fields: []model.ThenField{
				{Name: "user", Kind: model.MatchVariable, Var: "user"},
				{Name: "password", Kind: model.MatchVariable, Var: "password"},
			}},
		},
	})

	k.RegisterSync(model.CompiledSync{
		Name: "RegistrationResponse",
		When: []model.WhenPattern{
			{Concept: "Web", Action: "request", OutputFields: []model.FieldMatch{
				model.Literal("method", "register"),
				model.Variable("user", "user"),
			}},
			{Concept: "Password", Action: "set", OutputFields: []model.FieldMatch{
				model.Variable("user", "user"),
			}},
		},
		Where: []model.WhereClause{
			{Kind: model.WhereBind, Expr: `uuid()`, As: "token"},
			{Kind: model.WhereBind, Expr: `object("username", ?user, "token", ?token)`, As: "profile"},
			{Kind: model.WhereBind, Expr: `object("user", ?profile)`, As: "body"},
		},
		Then: []model.ThenTemplate{
			{Concept: "Web", Action: "respond", Fields: []model.ThenField{
				{Name: "body", Kind: model.MatchVariable, Var: "body"},
			}},
		},
	})

	k.RegisterSync(model.CompiledSync{
		Name: "RegistrationInvalidPassword",
		When: []model.WhenPattern{
			{Concept: "Web", Action: "request", OutputFields: []model.FieldMatch{
				model.Literal("method", "register"),
			}},
			{Concept: "Password", Action: "validate", OutputFields: []model.FieldMatch{
				model.Literal("valid", false),
			}},
		},
		Then: []model.ThenTemplate{
			{Concept: "Web", Action: "respond", Fields: []model.ThenField{
				{Name: "code", Kind: model.MatchLiteral, Value: 422},
				{Name: "error", Kind: model.MatchLiteral, Value: "invalid password"},
			}},
		},
	})
}
