// Package relay implements the relay role: it accepts client connections,
// admits clients whose identity is valid and fans their audio back out once per tick.
package relay

import "proxichat/core/lib/packet"

// DefaultPort is the well-known port of the relay stream listener.
const DefaultPort = 8081

// Verifier decides whether a claimed identity belongs to a current participant.
// It is consulted on every Auth message and must answer without blocking.
type Verifier interface {
	IdentityIsValid(identity packet.Identity) bool
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(identity packet.Identity) bool

func (f VerifierFunc) IdentityIsValid(identity packet.Identity) bool {
	return f(identity)
}

// AllowAll accepts every identity.
var AllowAll Verifier = VerifierFunc(func(packet.Identity) bool { return true })
