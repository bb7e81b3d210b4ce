// Package client implements the participant role: it authenticates with a relay,
// streams captured audio in fixed chunks and plays back what the relay mixes.
package client

import (
	"fmt"
	log "github.com/schollz/logger"
	"net"
	"proxichat/core/lib/audio"
	"proxichat/core/lib/packet"
	"proxichat/core/lib/session"
	"proxichat/core/lib/transport"
)

// Session is the client's side of one relay connection.
// It must not be used concurrently.
type Session struct {
	stream   *session.Stream
	identity packet.Identity

	authCompleted bool
	outbound      *audio.Accumulator
	playback      *audio.Queue
}

// NewSession creates a session that authenticates as identity.
// Received audio is pushed to playback. A nil sealer means the stream is not encrypted.
func NewSession(conn transport.Conn, sealer session.Sealer, identity packet.Identity, playback *audio.Queue, maxBacklog int) *Session {
	return &Session{
		stream:   session.NewStream(conn, sealer),
		identity: identity,
		outbound: audio.NewAccumulator(maxBacklog),
		playback: playback,
	}
}

// Record queues captured samples for sending.
func (s *Session) Record(samples []audio.Sample) {
	s.outbound.Push(samples)
}

// Send performs the send phase of a tick. Until the relay confirms the identity
// Auth is repeated on every tick, afterwards one chunk of recorded audio is sent.
// A returned error is fatal and the session must be closed.
func (s *Session) Send() error {
	var message packet.Message
	if s.authCompleted {
		message = packet.NewAudio{Samples: s.outbound.Drain()}
	} else {
		message = packet.Auth{Identity: s.identity}
	}
	_, err := s.stream.WriteMessage(message)
	return err
}

// Receive performs the receive phase of a tick.
// A returned error is fatal and the session must be closed.
func (s *Session) Receive() error {
	message, outcome, err := s.stream.ReadMessage()
	if err != nil {
		return err
	}
	if outcome == transport.Pending {
		return nil
	}
	switch m := message.(type) {
	case packet.AuthConfirm:
		if !s.authCompleted {
			log.Infof("client: authenticated as %v", s.identity)
		}
		s.authCompleted = true
	case packet.ProcessedAudio:
		samples := m.Samples
		if err = s.playback.Push(samples[:]); err != nil {
			log.Debugf("client: dropped playback: %v", err)
		}
	case packet.None:
	default:
		return fmt.Errorf("%w: client received %v", session.ErrProtocolViolation, message.Kind())
	}
	return nil
}

// Authenticated reports whether the relay confirmed the identity.
func (s *Session) Authenticated() bool {
	return s.authCompleted
}

// Backlog returns the number of recorded samples that were not sent yet.
func (s *Session) Backlog() int {
	return s.outbound.Len()
}

func (s *Session) RemoteAddr() net.Addr {
	return s.stream.RemoteAddr()
}

// Close releases the connection and resets all state.
func (s *Session) Close() error {
	err := s.stream.Close()
	s.authCompleted = false
	s.outbound.Reset()
	return err
}
