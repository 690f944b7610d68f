package hub

import "sync"

// Binding holds the two login/alarm indexes: alarm token -> user id
// (written when the auth service reports a login) and user id -> connection
// (written when a connection presents its token). At most one connection
// per user; a later registration supersedes the previous one.
type Binding struct {
	mu     sync.RWMutex
	logins map[string]int64 // alarm token -> user id
	alarms map[int64]Conn   // user id -> notice target
}

// NewBinding creates empty binding maps.
func NewBinding() *Binding {
	return &Binding{
		logins: make(map[string]int64),
		alarms: make(map[int64]Conn),
	}
}

// BindLogin records that a token belongs to a user. Overwrites any
// previous owner of the token.
func (b *Binding) BindLogin(userID int64, alarmToken string) {
	b.mu.Lock()
	b.logins[alarmToken] = userID
	b.mu.Unlock()
}

// ResolveUserID looks up the user a token belongs to.
func (b *Binding) ResolveUserID(alarmToken string) (int64, bool) {
	b.mu.RLock()
	userID, ok := b.logins[alarmToken]
	b.mu.RUnlock()
	return userID, ok
}

// BindAlarmClient records the connection that receives a user's personal
// notices, replacing any prior target.
func (b *Binding) BindAlarmClient(userID int64, c Conn) {
	b.mu.Lock()
	b.alarms[userID] = c
	b.mu.Unlock()
}

// ResolveAlarmClient returns the connection bound for a user's notices.
func (b *Binding) ResolveAlarmClient(userID int64) (Conn, bool) {
	b.mu.RLock()
	c, ok := b.alarms[userID]
	b.mu.RUnlock()
	return c, ok
}

// UnbindAlarmClient removes the user's notice target if present.
func (b *Binding) UnbindAlarmClient(userID int64) {
	b.mu.Lock()
	delete(b.alarms, userID)
	b.mu.Unlock()
}

// UnbindAlarmClientIf removes the user's notice target only when it still
// points at the given connection. Disconnect cleanup uses this so a stale
// socket closing late cannot drop a binding a newer connection took over.
func (b *Binding) UnbindAlarmClientIf(userID int64, c Conn) {
	b.mu.Lock()
	if bound, ok := b.alarms[userID]; ok && bound == c {
		delete(b.alarms, userID)
	}
	b.mu.Unlock()
}
