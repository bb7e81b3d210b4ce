package client

import (
	"context"
	"crypto/rand"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"proxichat/core/lib/audio"
	"proxichat/core/lib/device"
	"proxichat/core/lib/relay"
	"proxichat/core/lib/session"
	"sync"
	"testing"
	"time"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// fakeDevice remembers the queues of the latest Open.
type fakeDevice struct {
	mutex    sync.Mutex
	capture  *audio.Queue
	playback *audio.Queue
	opened   int
	closed   int
	err      error
}

func (f *fakeDevice) Open(capture, playback *audio.Queue) (io.Closer, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.capture, f.playback = capture, playback
	f.opened++
	return closerFunc(func() error {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		f.closed++
		return nil
	}), nil
}

func (f *fakeDevice) queues() (capture, playback *audio.Queue) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.capture, f.playback
}

func (f *fakeDevice) counts() (opened, closed int) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.opened, f.closed
}

// startRelay runs a relay on loopback until the test ends.
func startRelay(t *testing.T, key *device.KeyPair) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	server := relay.NewServer(listener, relay.ServerOptions{Key: key})
	l := relay.NewListener(server.Sessions(), relay.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = server.Serve()
	}()
	go func() {
		defer wg.Done()
		_ = l.Run(ctx, time.Millisecond)
	}()
	t.Cleanup(func() {
		cancel()
		_ = server.Close()
		wg.Wait()
	})
	return server.Addr().String()
}

// driveUntil ticks every driver until cond holds.
func driveUntil(t *testing.T, cond func() bool, drivers ...*Driver) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		for _, d := range drivers {
			require.Nil(t, d.Drive())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDriver_Idle(t *testing.T) {
	d := NewDriver(Options{Identity: 1})
	assert.Nil(t, d.Drive())
	assert.False(t, d.Connected())
	assert.False(t, d.Authenticated())
	d.Disconnect()
}

func TestDriver_ConnectFails(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	address := listener.Addr().String()
	require.Nil(t, listener.Close())

	d := NewDriver(Options{Identity: 1, DialTimeout: time.Second})
	assert.NotNil(t, d.Connect(context.Background(), address))
	assert.False(t, d.Connected())
}

func TestDriver_DeviceFails(t *testing.T) {
	address := startRelay(t, nil)
	dev := &fakeDevice{err: errors.New("no sound card")}
	d := NewDriver(Options{Identity: 1, Device: dev})
	assert.ErrorIs(t, d.Connect(context.Background(), address), dev.err)
	assert.False(t, d.Connected())
}

func testConversation(t *testing.T, key *device.KeyPair) {
	address := startRelay(t, key)
	var relayIdentity device.Identity
	if key != nil {
		relayIdentity = key.Public
	}
	alice, bob := &fakeDevice{}, &fakeDevice{}
	a := NewDriver(Options{Identity: 1, Device: alice, RelayIdentity: relayIdentity})
	b := NewDriver(Options{Identity: 2, Device: bob, RelayIdentity: relayIdentity})
	defer a.Disconnect()
	defer b.Disconnect()

	ctx := context.Background()
	require.Nil(t, a.Connect(ctx, address))
	require.Nil(t, b.Connect(ctx, address))
	driveUntil(t, func() bool { return a.Authenticated() && b.Authenticated() }, a, b)

	capture, _ := alice.queues()
	_, playback := bob.queues()
	heard := false
	driveUntil(t, func() bool {
		voice := make([]audio.Sample, audio.ChunkSize)
		for i := range voice {
			voice[i] = 0.5
		}
		require.Nil(t, capture.Push(voice))
		playback.Drain(func(block []audio.Sample) {
			if block[0] == 0.5 {
				heard = true
			}
		})
		return heard
	}, a, b)
}

func TestDriver_Conversation(t *testing.T) {
	testConversation(t, nil)
}

func TestDriver_ConversationSecure(t *testing.T) {
	key, err := device.GenerateKeyPair(rand.Reader)
	require.Nil(t, err)
	testConversation(t, &key)
}

func TestDriver_WrongRelayIdentity(t *testing.T) {
	key, err := device.GenerateKeyPair(rand.Reader)
	require.Nil(t, err)
	other, err := device.GenerateKeyPair(rand.Reader)
	require.Nil(t, err)
	address := startRelay(t, &key)

	d := NewDriver(Options{Identity: 1, RelayIdentity: other.Public, DialTimeout: time.Second})
	assert.NotNil(t, d.Connect(context.Background(), address))
	assert.False(t, d.Connected())
}

func TestDriver_ReconnectTearsDown(t *testing.T) {
	address := startRelay(t, nil)
	dev := &fakeDevice{}
	d := NewDriver(Options{Identity: 1, Device: dev})
	ctx := context.Background()

	require.Nil(t, d.Connect(ctx, address))
	first, _ := dev.queues()
	require.Nil(t, d.Connect(ctx, address))
	opened, closed := dev.counts()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 1, closed)
	assert.True(t, first.Closed())
	assert.True(t, d.Connected())

	d.Disconnect()
	d.Disconnect()
	_, closed = dev.counts()
	assert.Equal(t, 2, closed)
	assert.False(t, d.Connected())
}

func TestDriver_RelayHangsUp(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer listener.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	dev := &fakeDevice{}
	d := NewDriver(Options{Identity: 1, Device: dev})
	require.Nil(t, d.Connect(context.Background(), listener.Addr().String()))
	require.Nil(t, (<-accepted).Close())

	deadline := time.Now().Add(5 * time.Second)
	for d.Connected() {
		require.True(t, time.Now().Before(deadline), "session not torn down")
		if err = d.Drive(); err != nil {
			assert.ErrorIs(t, err, session.ErrTransport)
		}
		time.Sleep(time.Millisecond)
	}
	_, closed := dev.counts()
	assert.Equal(t, 1, closed)
}
