package fixengine

import "sync"

// entry pairs a Session with its own mutex so the registry can serialise
// access to one session without blocking lookups of any other (spec §4.5,
// §5: "per-entry locking: concurrent updates to distinct sessions do not
// contend").
type entry struct {
	mu      sync.Mutex
	session *Session
}

// Registry is the thread-safe SessionId -> Session map every I/O and engine
// task shares (spec §4.5).
type Registry struct {
	mu      sync.RWMutex
	entries map[SessionID]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[SessionID]*entry{}}
}

// Register adds session under its ID, replacing any existing entry with the
// same ID.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID] = &entry{session: s}
}

// Unregister removes id from the registry.
func (r *Registry) Unregister(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Lookup returns the session registered under id, if any. The lookup itself
// only takes the registry's read lock; callers that need exclusive access
// to the session for a multi-step operation should call WithSession.
func (r *Registry) Lookup(id SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// WithSession runs fn while holding id's own entry lock, letting the engine
// task perform verify-then-advance as one atomic step without blocking
// other sessions (spec §4.5, §5).
func (r *Registry) WithSession(id SessionID, fn func(*Session) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return errUnknownSession(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// All returns every registered SessionID, for diagnostics/CLI listing.
func (r *Registry) All() []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	return out
}

// RouteInbound resolves the local SessionID a raw inbound message belongs
// to by extracting tags 8, 49, 50, 142, 56, 57, 143 and reversing
// sender/target (spec §4.5), then returns the registered Session for it.
func (r *Registry) RouteInbound(header *FieldMap) (*Session, bool) {
	counterpartID := sessionIDFromHeader(header)
	local := counterpartID.Reversed()
	return r.Lookup(local)
}

func errUnknownSession(id SessionID) error {
	return NewMessageRejectError("no session registered for "+id.String(), RejectReasonCompIdProblem)
}
