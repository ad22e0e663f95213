package protocol

import "errors"

// Failure taxonomy shared by the client, driver, and state machine.
// Only ErrConfiguration is returned to callers as fatal; the rest are recorded
// as abort reasons.
var (
	ErrConfiguration     = errors.New("protocol: configuration error")
	ErrCertificate       = errors.New("protocol: certificate rejected")
	ErrProtocolViolation = errors.New("protocol: protocol violation")
	ErrDecode            = errors.New("protocol: decode error")
	ErrTransport         = errors.New("protocol: transport error")

	// ErrSessionClosed marks the abort a client issues on itself when its
	// session policy closes after the first session payload.
	ErrSessionClosed = errors.New("protocol: session closed after first message")
)

// Kind returns a short label for err suitable for logs and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrCertificate):
		return "certificate"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrSessionClosed):
		return "session_closed"
	default:
		return "other"
	}
}
