package hub

import "sync"

// Conn is the transport-side handle the hub fans out to. Implemented by
// session.Client; tests substitute a recording fake.
type Conn interface {
	// Send enqueues a frame for delivery. Returns false if the frame was
	// dropped (buffer full or connection gone).
	Send(data []byte) bool
}

// ClientState is the per-connection state owned by the registry.
type ClientState struct {
	StockCode  string // stock the client wants full updates for, "" = none
	AlarmToken string // token presented to claim personal notices, "" = none
}

// Entry pairs a connection with its state in a registry snapshot.
type Entry struct {
	Conn  Conn
	State ClientState
}

// Registry holds the live set of client connections and their state.
// It is the single source of truth for which connections exist; the
// binding maps are indexes keyed off registry membership.
type Registry struct {
	mu      sync.RWMutex
	clients map[Conn]ClientState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[Conn]ClientState)}
}

// Register adds a connection with empty state. Registering the same
// connection twice resets its state (last write wins).
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	r.clients[c] = ClientState{}
	r.mu.Unlock()
}

// Contains reports whether the connection is currently registered.
func (r *Registry) Contains(c Conn) bool {
	r.mu.RLock()
	_, ok := r.clients[c]
	r.mu.RUnlock()
	return ok
}

// SetSubscription updates the stored stock code for a connection.
// A no-op when the connection is not registered: an "open" request may
// race a disconnect, and the late write must not resurrect the entry.
func (r *Registry) SetSubscription(c Conn, stockCode string) {
	r.mu.Lock()
	if state, ok := r.clients[c]; ok {
		state.StockCode = stockCode
		r.clients[c] = state
	}
	r.mu.Unlock()
}

// SetAlarmToken updates the stored alarm token for a connection.
// No-op when the connection is not registered.
func (r *Registry) SetAlarmToken(c Conn, token string) {
	r.mu.Lock()
	if state, ok := r.clients[c]; ok {
		state.AlarmToken = token
		r.clients[c] = state
	}
	r.mu.Unlock()
}

// Unregister removes a connection and returns its last known state, which
// the disconnect cleanup needs to unwind the alarm binding. Removing an
// unknown connection returns ok=false and changes nothing.
func (r *Registry) Unregister(c Conn) (ClientState, bool) {
	r.mu.Lock()
	state, ok := r.clients[c]
	if ok {
		delete(r.clients, c)
	}
	r.mu.Unlock()
	return state, ok
}

// Snapshot returns a copy of the current membership. Fan-out iterates the
// copy so connections added or removed mid-broadcast never fault it.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.clients))
	for c, state := range r.clients {
		entries = append(entries, Entry{Conn: c, State: state})
	}
	r.mu.RUnlock()
	return entries
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
