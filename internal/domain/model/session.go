package model

type SessionKind string

const (
	SessionNone     SessionKind = "none"
	SessionReal     SessionKind = "real"
	SessionFallback SessionKind = "fallback"
)

// Session is the authenticated state with the platform. Fake marks a
// locally synthesized session used when the handshake could not be confirmed.
type Session struct {
	Address string
	Name    string
	Fake    bool
}

func (s *Session) Kind() SessionKind {
	switch {
	case s == nil:
		return SessionNone
	case s.Fake:
		return SessionFallback
	default:
		return SessionReal
	}
}

func FallbackSession(address string) *Session {
	return &Session{Address: address, Fake: true}
}
