package relay

import (
	"crypto/rand"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"io"
	"net"
	"proxichat/core/lib/device"
	"proxichat/core/lib/packet"
	"proxichat/core/lib/secure"
	"testing"
	"time"
)

// peer speaks the client side of the protocol with blocking I/O.
type peer struct {
	conn   net.Conn
	sealer *secure.Sealer
}

func (p *peer) send(m packet.Message) error {
	frame := packet.Encode(m)
	data := frame[:]
	if p.sealer != nil {
		sealed, err := p.sealer.Seal(nil, data)
		if err != nil {
			return err
		}
		data = sealed
	}
	_, err := p.conn.Write(data)
	return err
}

func (p *peer) receive() (packet.Message, error) {
	size := packet.FrameSize
	if p.sealer != nil {
		size += p.sealer.Overhead()
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(p.conn, data); err != nil {
		return nil, err
	}
	if p.sealer != nil {
		var err error
		if data, err = p.sealer.Open(nil, data); err != nil {
			return nil, err
		}
	}
	return packet.Decode(data)
}

// await receives until a message of the given kind arrives.
func (p *peer) await(kind packet.Kind) (packet.Message, error) {
	for {
		m, err := p.receive()
		if err != nil {
			return nil, err
		}
		if m.Kind() == kind {
			return m, nil
		}
	}
}

func startServer(t *testing.T, options ServerOptions) *Server {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	server := NewServer(listener, options)
	done := make(chan error, 1)
	go func() { done <- server.Serve() }()
	t.Cleanup(func() {
		assert.Nil(t, server.Close())
		assert.Nil(t, <-done)
	})
	return server
}

// tickUntil drives l until cond holds or the timeout expires.
func tickUntil(t *testing.T, l *Listener, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		l.Tick()
		time.Sleep(time.Millisecond)
	}
}

func testEndToEnd(t *testing.T, key *device.KeyPair) {
	server := startServer(t, ServerOptions{Key: key})
	l := NewListener(server.Sessions(), Options{})
	defer l.Close()

	var group errgroup.Group
	finished := make(chan struct{})
	group.Go(func() error {
		defer close(finished)
		conn, err := net.Dial("tcp", server.Addr().String())
		if err != nil {
			return err
		}
		defer conn.Close()
		p := &peer{conn: conn}
		if key != nil {
			if p.sealer, err = secure.Initiate(conn, key.Public, time.Second); err != nil {
				return err
			}
		}
		if err = p.send(packet.Auth{Identity: 42}); err != nil {
			return err
		}
		if _, err = p.await(packet.KindAuthConfirm); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			if err = p.send(packet.NewAudio{Samples: constChunk(0.5)}); err != nil {
				return err
			}
		}
		m, err := p.await(packet.KindProcessedAudio)
		if err != nil {
			return err
		}
		// A lone peer never hears itself.
		assert.Equal(t, packet.ProcessedAudio{}, m)
		return nil
	})

	var closed bool
	tickUntil(t, l, func() bool {
		select {
		case <-finished:
			closed = true
		default:
		}
		return closed && l.Len() == 0
	})
	require.Nil(t, group.Wait())
}

func TestServer_EndToEnd(t *testing.T) {
	testEndToEnd(t, nil)
}

func TestServer_EndToEndSecure(t *testing.T) {
	key, err := device.GenerateKeyPair(rand.Reader)
	require.Nil(t, err)
	testEndToEnd(t, &key)
}

func TestServer_RejectsFailedHandshake(t *testing.T) {
	key, err := device.GenerateKeyPair(rand.Reader)
	require.Nil(t, err)
	server := startServer(t, ServerOptions{Key: &key, HandshakeTimeout: 100 * time.Millisecond})

	conn, err := net.Dial("tcp", server.Addr().String())
	require.Nil(t, err)
	defer conn.Close()
	frame := packet.Encode(packet.Auth{Identity: 1})
	_, err = conn.Write(frame[:])
	require.Nil(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	// The relay hangs up, either cleanly or with a reset.
	_, err = io.ReadAll(conn)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout())
	}
	select {
	case s := <-server.Sessions():
		t.Fatalf("unexpected session %v", s.RemoteAddr())
	default:
	}
}

func TestServer_CloseStopsServe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	server := NewServer(listener, ServerOptions{})
	var group errgroup.Group
	group.Go(server.Serve)
	require.Nil(t, server.Close())
	assert.Nil(t, group.Wait())
	assert.Nil(t, server.Close())
}

func TestServer_CloseClosesUnclaimedSessions(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	server := NewServer(listener, ServerOptions{})
	var group errgroup.Group
	group.Go(server.Serve)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.Nil(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return len(server.sessions) == 1 }, 5*time.Second, time.Millisecond)

	require.Nil(t, server.Close())
	require.Nil(t, group.Wait())
	assert.Empty(t, server.sessions)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	require.NotNil(t, err)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout())
	}
}
