package authsession

// EventKind identifies a session lifecycle event.
type EventKind uint8

const (
	EventLoginSucceeded EventKind = iota + 1
	EventLoginFailed
	EventLogout
	EventRestored
	EventWiped
)

func (k EventKind) String() string {
	switch k {
	case EventLoginSucceeded:
		return "login_success"
	case EventLoginFailed:
		return "login_failure"
	case EventLogout:
		return "logout"
	case EventRestored:
		return "session_restored"
	case EventWiped:
		return "session_wiped"
	default:
		return "unknown"
	}
}

// Event is delivered to [Options.Observer].
type Event struct {
	Kind   EventKind
	UserID int64
	RoleID int64
	Reason Reason
	Err    error
	// Degraded is set on restore when the role catalog was the fallback catalog.
	Degraded bool
}
