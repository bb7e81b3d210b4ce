package relay

import (
	"errors"
	log "github.com/schollz/logger"
	"net"
	"proxichat/core/lib/device"
	"proxichat/core/lib/secure"
	"proxichat/core/lib/session"
	"proxichat/core/lib/transport"
	"sync"
	"time"
)

// DefaultHandshakeTimeout bounds the secure handshake of a new connection.
const DefaultHandshakeTimeout = 5 * time.Second

// ServerOptions configure a Server.
type ServerOptions struct {
	// Key enables encrypted sessions. Clients must pin its public identity.
	Key *device.KeyPair
	// HandshakeTimeout bounds the handshake of one connection.
	HandshakeTimeout time.Duration
	// Backlog is the number of prepared sessions that may wait for the tick loop.
	Backlog int
}

// Server accepts connections in the background and prepares a Session for each.
// Everything that may block happens here, never in the tick loop.
// Prepared sessions are handed over through the channel returned by Sessions.
type Server struct {
	listener net.Listener
	options  ServerOptions
	sessions chan *Session
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func NewServer(listener net.Listener, options ServerOptions) *Server {
	if options.HandshakeTimeout <= 0 {
		options.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if options.Backlog <= 0 {
		options.Backlog = 16
	}
	return &Server{
		listener: listener,
		options:  options,
		sessions: make(chan *Session, options.Backlog),
		done:     make(chan struct{}),
	}
}

// Sessions returns the channel on which prepared sessions are delivered.
func (s *Server) Sessions() <-chan *Session {
	return s.sessions
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Close is called.
// It returns nil after Close and the accept error otherwise.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Errorf("relay: failed to accept connection: %v", err)
			return err
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	var sealer session.Sealer
	if s.options.Key != nil {
		sealed, err := secure.Respond(conn, *s.options.Key, s.options.HandshakeTimeout)
		if err != nil {
			log.Errorf("relay: handshake with %v failed: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			return
		}
		sealer = sealed
	}
	wrapped, err := transport.Wrap(conn)
	if err != nil {
		log.Errorf("relay: %v: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	prepared := NewSession(wrapped, sealer)
	select {
	case s.sessions <- prepared:
	case <-s.done:
		_ = prepared.Close()
	}
}

// Close stops accepting connections and waits for pending handshakes.
// Prepared sessions nobody has taken from Sessions yet are closed.
// Sessions that were already taken are owned by the receiver.
func (s *Server) Close() (err error) {
	s.once.Do(func() {
		close(s.done)
		err = s.listener.Close()
		s.wg.Wait()
		s.drain()
	})
	return
}

func (s *Server) drain() {
	for {
		select {
		case prepared := <-s.sessions:
			log.Infof("relay: closing unclaimed connection with %v", prepared.RemoteAddr())
			_ = prepared.Close()
		default:
			return
		}
	}
}
