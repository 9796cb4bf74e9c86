// Package registry implements the concept registry: it maps concept URIs
// to transports, tracks availability, and notifies listeners on change.
// The registry owns each entry; transports are shared references.
package registry

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/conceptrt/conceptrt/transport"
)

// Listener is notified whenever a concept URI's availability changes.
type Listener func(uri string, available bool)

// Entry is one registered concept.
type Entry struct {
	URI       string
	Transport transport.Transport
	Available bool
}

// Registry is the concept registry. Safe for concurrent use; availability
// listeners are invoked synchronously and in registration order, matching
// the kernel's single-threaded cooperative model.
type Registry struct {
	log zerolog.Logger

	mu        sync.RWMutex
	entries   map[string]*Entry
	listeners []Listener
}

// New creates an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		log:     log.With().Str("component", "registry").Logger(),
		entries: make(map[string]*Entry),
	}
}

// Register adds a new concept, replacing any existing entry for uri.
// Re-registering an existing URI re-emits availability true.
func (r *Registry) Register(uri string, t transport.Transport) {
	r.mu.Lock()
	r.entries[uri] = &Entry{URI: uri, Transport: t, Available: true}
	r.mu.Unlock()

	r.log.Info().Str("uri", uri).Msg("concept registered")
	r.notify(uri, true)
}

// ReloadConcept atomically swaps the transport for uri. No completions are
// lost: only invocations dispatched after the swap observe the new
// transport; in-flight calls already sent to the old transport complete
// through it.
func (r *Registry) ReloadConcept(uri string, t transport.Transport) {
	r.mu.Lock()
	entry, ok := r.entries[uri]
	if !ok {
		entry = &Entry{URI: uri}
		r.entries[uri] = entry
	}
	wasAvailable := entry.Available
	entry.Transport = t
	entry.Available = true
	r.mu.Unlock()

	r.log.Info().Str("uri", uri).Msg("concept reloaded")
	if !wasAvailable {
		r.notify(uri, true)
	}
}

// DeregisterConcept removes uri, emits availability false, and reports
// whether it had been registered.
func (r *Registry) DeregisterConcept(uri string) bool {
	r.mu.Lock()
	_, existed := r.entries[uri]
	delete(r.entries, uri)
	r.mu.Unlock()

	if existed {
		r.log.Info().Str("uri", uri).Msg("concept deregistered")
		r.notify(uri, false)
	}
	return existed
}

// MarkUnavailable flips a registered concept to unavailable without
// removing it — used when a transport detects its peer died (a closed
// WebSocket, a failed health check) but may come back without re-registering.
func (r *Registry) MarkUnavailable(uri string) {
	r.mu.Lock()
	entry, ok := r.entries[uri]
	wasAvailable := ok && entry.Available
	if ok {
		entry.Available = false
	}
	r.mu.Unlock()

	if wasAvailable {
		r.log.Warn().Str("uri", uri).Msg("concept marked unavailable")
		r.notify(uri, false)
	}
}

// Resolve returns the transport registered for uri, if any.
func (r *Registry) Resolve(uri string) (transport.Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[uri]
	if !ok {
		return nil, false
	}
	return entry.Transport, true
}

// Available reports whether uri is currently registered and available.
func (r *Registry) Available(uri string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[uri]
	return ok && entry.Available
}

// OnAvailability registers a listener for availability changes.
func (r *Registry) OnAvailability(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

func (r *Registry) notify(uri string, available bool) {
	r.mu.RLock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, l := range listeners {
		l(uri, available)
	}
}
