package auth

import "time"

// EventKind names a credential lifecycle transition.
type EventKind string

// Event kinds emitted by Service.
const (
	EventLoginSucceeded  EventKind = "login_succeeded"
	EventLoginFailed     EventKind = "login_failed"
	EventRenewed         EventKind = "renewed"
	EventRenewalRejected EventKind = "renewal_rejected"
	EventLoggedOut       EventKind = "logged_out"
	EventSessionsRevoked EventKind = "sessions_revoked"
	EventRegistered      EventKind = "registered"
)

// EventKinds lists every kind in emission order of a typical session.
var EventKinds = []EventKind{
	EventRegistered,
	EventLoginSucceeded,
	EventLoginFailed,
	EventRenewed,
	EventRenewalRejected,
	EventLoggedOut,
	EventSessionsRevoked,
}

// Failed reports whether the kind records a rejected attempt.
func (k EventKind) Failed() bool {
	return k == EventLoginFailed || k == EventRenewalRejected
}

// Event describes one transition. Subject may be empty when the caller
// presented a token that resolved to nobody. Reason carries the rejection
// cause for failed kinds and is never shown to clients.
type Event struct {
	Kind    EventKind `json:"kind"`
	Subject string    `json:"subject,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// EventSink receives lifecycle events. HandleEvent is called synchronously
// on the request goroutine, so implementations must not block.
type EventSink interface {
	HandleEvent(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// HandleEvent calls f(e).
func (f EventSinkFunc) HandleEvent(e Event) { f(e) }

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

// HandleEvent delivers e to every non-nil sink.
func (m MultiSink) HandleEvent(e Event) {
	for _, s := range m {
		if s != nil {
			s.HandleEvent(e)
		}
	}
}
