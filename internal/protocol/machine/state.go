package machine

import (
	"fmt"
	"strings"
)

// State is the client protocol state for one connection.
type State int

const (
	StateStart State = iota
	StateChallenge
	StateSession
	StateEnd
	StateAbort
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateChallenge:
		return "CHALLENGE"
	case StateSession:
		return "SESSION"
	case StateEnd:
		return "END"
	case StateAbort:
		return "ABORT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateEnd || s == StateAbort
}

// SessionPolicy selects what happens after the server's SUCCESS message.
type SessionPolicy int

const (
	// RemainOpenUntilEnd keeps the session open for SESSION_MESSAGE records until END.
	RemainOpenUntilEnd SessionPolicy = iota
	// CloseAfterFirstMessage delivers the SUCCESS payload then aborts the connection.
	CloseAfterFirstMessage
)

const (
	PolicyNameRemainOpen = "remain-open-until-end"
	PolicyNameCloseFirst = "close-after-first-message"
)

func (p SessionPolicy) String() string {
	switch p {
	case CloseAfterFirstMessage:
		return PolicyNameCloseFirst
	default:
		return PolicyNameRemainOpen
	}
}

// ParseSessionPolicy accepts the policy names used in configuration files.
func ParseSessionPolicy(raw string) (SessionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", PolicyNameRemainOpen:
		return RemainOpenUntilEnd, nil
	case PolicyNameCloseFirst:
		return CloseAfterFirstMessage, nil
	default:
		return RemainOpenUntilEnd, fmt.Errorf("machine: unknown session policy %q", raw)
	}
}
