package driver

import "github.com/danmuck/authctl/internal/protocol/certpolicy"

// Event is one transport notification fed to an Actor.
// The set is closed: HandshakeComplete, DataReceived, Closed, and ErrorOccurred.
type Event interface {
	isEvent()
}

// HandshakeComplete carries the peer certificate once TLS is established.
type HandshakeComplete struct {
	Cert certpolicy.PeerCertificate
}

// DataReceived carries one inbound chunk, split anywhere.
type DataReceived struct {
	Bytes []byte
}

// Closed reports that the peer ended the stream.
type Closed struct{}

// ErrorOccurred reports a transport failure.
type ErrorOccurred struct {
	Err error
}

func (HandshakeComplete) isEvent() {}
func (DataReceived) isEvent()      {}
func (Closed) isEvent()            {}
func (ErrorOccurred) isEvent()     {}
