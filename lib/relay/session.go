package relay

import (
	"errors"
	"fmt"
	log "github.com/schollz/logger"
	"net"
	"proxichat/core/lib/audio"
	"proxichat/core/lib/automaton"
	"proxichat/core/lib/packet"
	"proxichat/core/lib/session"
	"proxichat/core/lib/transport"
)

// Phase is the authentication progress of a relay-side session.
type Phase uint8

const (
	// PhaseNone means no valid Auth has been received yet.
	PhaseNone Phase = iota
	// PhaseAuthReady means the identity was accepted and AuthConfirm is due.
	PhaseAuthReady
	// PhaseConfirmed means AuthConfirm was sent and audio is relayed.
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthReady:
		return "auth_ready"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// AuthState is the Phase together with the identity it applies to.
// Identity is meaningless in PhaseNone.
type AuthState struct {
	Phase    Phase
	Identity packet.Identity
}

func (s AuthState) String() string {
	if s.Phase == PhaseNone {
		return s.Phase.String()
	}
	return fmt.Sprintf("%v(%v)", s.Phase, s.Identity)
}

var anyPhase = []Phase{PhaseNone, PhaseAuthReady, PhaseConfirmed}

// Session is the relay's side of one client connection.
// It is driven by the Listener and must not be used concurrently.
type Session struct {
	stream   *session.Stream
	state    AuthState
	receive  *automaton.Automaton[Phase, packet.Kind]
	verifier Verifier
	inbound  audio.Slot
	outbound audio.Chunk
}

// NewSession creates a session for an accepted connection.
// A nil sealer means the stream is not encrypted.
func NewSession(conn transport.Conn, sealer session.Sealer) *Session {
	s := &Session{
		stream: session.NewStream(conn, sealer),
	}
	// Messages of any other kind are only ever sent by the relay.
	s.receive = automaton.Compile(&s.state.Phase, automaton.Transitions[Phase, packet.Kind]{
		packet.KindAuth: {{
			At: anyPhase,
			Ok: []Phase{PhaseAuthReady},
			Do: s.onAuth,
		}},
		packet.KindNewAudio: {{
			At: anyPhase,
			Do: s.onAudio,
		}},
	})
	return s
}

// Receive performs the receive phase of a tick.
// A returned error is fatal and the session must be closed.
func (s *Session) Receive(verifier Verifier) error {
	message, outcome, err := s.stream.ReadMessage()
	if err != nil {
		return err
	}
	if outcome == transport.Pending {
		return nil
	}
	s.verifier = verifier
	err = s.receive.Transition(message.Kind(), message)
	if errors.Is(err, automaton.ErrBadKey) || errors.Is(err, automaton.ErrBadState) {
		return fmt.Errorf("%w: relay received %v", session.ErrProtocolViolation, message.Kind())
	}
	return err
}

func (s *Session) onAuth(handle *automaton.Handle[Phase], in any) error {
	m := in.(packet.Auth)
	if !s.verifier.IdentityIsValid(m.Identity) {
		return fmt.Errorf("%w: %v", session.ErrInvalidIdentity, m.Identity)
	}
	if handle.Is(PhaseNone) {
		log.Infof("relay: %v authenticated as %v", s.RemoteAddr(), m.Identity)
	}
	s.state.Identity = m.Identity
	handle.Set(PhaseAuthReady)
	return nil
}

func (s *Session) onAudio(_ *automaton.Handle[Phase], in any) error {
	s.inbound.Put(in.(packet.NewAudio).Samples)
	return nil
}

// Send performs the send phase of a tick. A frame is due on every tick:
// AuthConfirm right after a valid Auth, the outbound audio once confirmed
// and None before that. A returned error is fatal and the session must be closed.
func (s *Session) Send() error {
	var message packet.Message
	switch s.state.Phase {
	case PhaseAuthReady:
		s.state.Phase = PhaseConfirmed
		message = packet.AuthConfirm{}
	case PhaseConfirmed:
		message = packet.ProcessedAudio{Samples: s.outbound}
	default:
		message = packet.None{}
	}
	_, err := s.stream.WriteMessage(message)
	return err
}

// TakeInbound returns the latest audio chunk received from the peer
// and clears it, so every chunk is handed out at most once.
func (s *Session) TakeInbound() (audio.Chunk, bool) {
	return s.inbound.Take()
}

// SetOutbound sets the audio that is sent to the peer on the next Send.
func (s *Session) SetOutbound(samples []audio.Sample) error {
	chunk, err := audio.ChunkFrom(samples)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrChunkSizeMismatch, err)
	}
	s.outbound = chunk
	return nil
}

// State returns the current authentication state.
func (s *Session) State() AuthState {
	return s.state
}

// RemoteAddr returns the peer address, or nil once the session is closed.
func (s *Session) RemoteAddr() net.Addr {
	return s.stream.RemoteAddr()
}

// Close releases the connection and resets all state.
func (s *Session) Close() error {
	err := s.stream.Close()
	s.state = AuthState{}
	s.inbound = audio.Slot{}
	s.outbound = audio.Chunk{}
	return err
}
