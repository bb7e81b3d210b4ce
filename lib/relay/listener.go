package relay

import (
	"context"
	log "github.com/schollz/logger"
	"net"
	"proxichat/core/lib/audio"
	"time"
)

// Options configure a Listener.
type Options struct {
	// Verifier checks claimed identities. Nil means AllowAll.
	Verifier Verifier
	// Mixer produces the audio for every confirmed peer. Nil means SumMixer.
	Mixer Mixer
	// MaxSessions rejects new sessions while this many are active, if positive.
	MaxSessions int
}

// SessionInfo describes one active session.
type SessionInfo struct {
	Addr  net.Addr
	State AuthState
}

// Listener owns every active relay session and drives them once per tick.
// All methods must be called from the goroutine that calls Tick.
type Listener struct {
	incoming <-chan *Session
	verifier Verifier
	mixer    Mixer
	max      int

	sessions []*Session
	failed   []bool
	voices   []Voice
	mixed    []audio.Sample
}

// NewListener creates a Listener that takes new sessions from incoming,
// usually the channel of a Server.
func NewListener(incoming <-chan *Session, options Options) *Listener {
	if options.Verifier == nil {
		options.Verifier = AllowAll
	}
	if options.Mixer == nil {
		options.Mixer = SumMixer{}
	}
	return &Listener{
		incoming: incoming,
		verifier: options.Verifier,
		mixer:    options.Mixer,
		max:      options.MaxSessions,
		sessions: make([]*Session, 0, 32),
		mixed:    make([]audio.Sample, 0, audio.ChunkSize),
	}
}

// Tick adopts at most one new session and runs one receive and send cycle
// on every session. Sessions that fail are closed and removed before Tick returns.
func (l *Listener) Tick() {
	select {
	case s, ok := <-l.incoming:
		if ok && s != nil {
			l.adopt(s)
		}
	default:
	}

	l.failed = l.failed[:0]
	for range l.sessions {
		l.failed = append(l.failed, false)
	}

	for i, s := range l.sessions {
		if err := s.Receive(l.verifier); err != nil {
			l.fail(i, err)
		}
	}
	l.mix()
	for i, s := range l.sessions {
		if l.failed[i] {
			continue
		}
		if err := s.Send(); err != nil {
			l.fail(i, err)
		}
	}
	l.sweep()
}

func (l *Listener) adopt(s *Session) {
	if l.max > 0 && len(l.sessions) >= l.max {
		log.Errorf("relay: rejected %v, %v sessions are active", s.RemoteAddr(), len(l.sessions))
		_ = s.Close()
		return
	}
	log.Infof("relay: connection created with %v", s.RemoteAddr())
	l.sessions = append(l.sessions, s)
}

func (l *Listener) mix() {
	l.voices = l.voices[:0]
	for i, s := range l.sessions {
		chunk, ok := s.TakeInbound()
		if !ok || l.failed[i] || s.State().Phase != PhaseConfirmed {
			continue
		}
		l.voices = append(l.voices, Voice{Identity: s.State().Identity, Samples: chunk})
	}
	for i, s := range l.sessions {
		if l.failed[i] || s.State().Phase != PhaseConfirmed {
			continue
		}
		l.mixed = l.mixer.Mix(l.mixed[:0], s.State().Identity, l.voices)
		if err := s.SetOutbound(l.mixed); err != nil {
			l.fail(i, err)
		}
	}
}

func (l *Listener) fail(i int, err error) {
	log.Errorf("relay: %v: %v", l.sessions[i].RemoteAddr(), err)
	l.failed[i] = true
}

// sweep closes and removes the failed sessions in one pass.
// Positions are taken from the snapshot in l.failed, so multiple removals
// in the same tick can neither skip nor remove the wrong session.
func (l *Listener) sweep() {
	kept := l.sessions[:0]
	for i, s := range l.sessions {
		if !l.failed[i] {
			kept = append(kept, s)
			continue
		}
		log.Infof("relay: terminating the connection with %v", s.RemoteAddr())
		_ = s.Close()
	}
	for i := len(kept); i < len(l.sessions); i++ {
		l.sessions[i] = nil
	}
	l.sessions = kept
}

// Len returns the number of active sessions.
func (l *Listener) Len() int {
	return len(l.sessions)
}

// Sessions returns a snapshot of the active sessions.
func (l *Listener) Sessions() []SessionInfo {
	infos := make([]SessionInfo, len(l.sessions))
	for i, s := range l.sessions {
		infos[i] = SessionInfo{Addr: s.RemoteAddr(), State: s.State()}
	}
	return infos
}

// Run calls Tick every interval until ctx is done, then closes all sessions.
func (l *Listener) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Close closes and removes every session.
func (l *Listener) Close() {
	for i, s := range l.sessions {
		_ = s.Close()
		l.sessions[i] = nil
	}
	l.sessions = l.sessions[:0]
}
