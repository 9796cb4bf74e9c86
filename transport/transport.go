// Package transport defines the uniform transport contract
// that the registry resolves concept URIs to. Every variant must preserve
// ID/flow/concept/action/input on the returned completion; query, health,
// and push-completion delivery are optional capabilities, surfaced through
// separate interfaces so the kernel can type-assert for them rather than
// forcing every adapter to implement no-ops.
package transport

import (
	"context"
	"time"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

// Transport is the mandatory half of the contract: invoke an action and
// receive its completion.
type Transport interface {
	Invoke(ctx context.Context, inv model.ActionInvocation) (model.ActionCompletion, error)
}

// Querier is implemented by transports that can answer queries directly,
// bypassing the invoke path. For a concept whose transport lacks it, the
// kernel's where-query resolution returns an error.
type Querier interface {
	Query(ctx context.Context, relation string, filter storage.Filter) ([]model.Fields, error)
}

// Health reports a transport's liveness, optionally with a latency sample.
type Health struct {
	Available bool
	LatencyMs float64
}

// HealthChecker is implemented by transports that support active health
// checks.
type HealthChecker interface {
	Health(ctx context.Context) (Health, error)
}

// PushSource is implemented by duplex transports (WebSocket) that can
// deliver unsolicited completions — e.g. a concept pushing a completion for
// an invocation it received asynchronously.
type PushSource interface {
	OnPushCompletion(handler func(model.ActionCompletion))
}

// Closer is implemented by transports holding a live connection or resource
// that must be released when the concept is deregistered or reloaded.
type Closer interface {
	Close() error
}

// DefaultTimeout is the fallback per-invocation timeout: the kernel uses it
// when Config.InvocationTimeout is unset, the HTTP adapter as its client
// timeout, and the WebSocket adapter when the caller's context carries no
// deadline. The SQS and Pub/Sub adapters use their own ReceiveTimeout and
// AckDeadline fields instead.
const DefaultTimeout = 10 * time.Second
