// Package protocol owns the challenge-response client contract.
//
// Ownership boundary:
// - certpolicy: peer certificate acceptance
// - codec: text record framing of protocol messages
// - machine: client state transitions and abort handling
// - driver: transport event adaptation for one connection
package protocol
