package client

import (
	"context"
	log "github.com/schollz/logger"
	"io"
	"proxichat/core/lib/audio"
	"proxichat/core/lib/device"
	"proxichat/core/lib/packet"
	"proxichat/core/lib/secure"
	"proxichat/core/lib/session"
	"proxichat/core/lib/transport"
	"sync"
	"time"
)

// DefaultDialTimeout bounds connection setup when Options.DialTimeout is not set.
const DefaultDialTimeout = 5 * time.Second

// Device is the audio hardware boundary. Open starts pushing captured samples
// to capture and playing back whatever is pushed to playback,
// until the returned handle is closed.
type Device interface {
	Open(capture, playback *audio.Queue) (io.Closer, error)
}

// Options configure a Driver.
type Options struct {
	// Identity is claimed when authenticating with the relay.
	Identity packet.Identity
	// Device is opened for every connection. Nil means no audio device.
	Device Device
	// DialTimeout bounds dialing and the secure handshake.
	DialTimeout time.Duration
	// RelayIdentity enables encryption and pins the relay's public key.
	RelayIdentity device.Identity
	// MaxBacklog caps the number of recorded samples waiting to be sent.
	MaxBacklog int
}

// Driver owns at most one client session and drives it once per tick.
// Connect and Disconnect may be called from a different goroutine than Drive.
type Driver struct {
	options Options

	mutex    sync.Mutex
	session  *Session
	capture  *audio.Queue
	playback *audio.Queue
	handle   io.Closer
}

func NewDriver(options Options) *Driver {
	if options.DialTimeout <= 0 {
		options.DialTimeout = DefaultDialTimeout
	}
	return &Driver{options: options}
}

// Connect replaces any current session with a new one to address.
// Dialing and the handshake happen without holding up Drive.
func (d *Driver) Connect(ctx context.Context, address string) error {
	d.Disconnect()

	conn, err := transport.Dial(ctx, address, d.options.DialTimeout)
	if err != nil {
		log.Errorf("client: failed to connect to %v: %v", address, err)
		return err
	}
	var sealer session.Sealer
	if d.options.RelayIdentity != nil {
		sealed, err := secure.Initiate(conn, d.options.RelayIdentity, d.options.DialTimeout)
		if err != nil {
			_ = conn.Close()
			log.Errorf("client: handshake with %v failed: %v", address, err)
			return err
		}
		sealer = sealed
	}
	wrapped, err := transport.Wrap(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	capture, playback := audio.NewQueue(), audio.NewQueue()
	var handle io.Closer
	if d.options.Device != nil {
		if handle, err = d.options.Device.Open(capture, playback); err != nil {
			_ = wrapped.Close()
			log.Errorf("client: failed to open audio device: %v", err)
			return err
		}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.teardown()
	d.session = NewSession(wrapped, sealer, d.options.Identity, playback, d.options.MaxBacklog)
	d.capture, d.playback, d.handle = capture, playback, handle
	log.Infof("client: connected to %v", conn.RemoteAddr())
	return nil
}

// Disconnect ends the current session, if any.
func (d *Driver) Disconnect() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.teardown()
}

// Drive runs one tick: it moves captured audio into the session,
// then performs the send and the receive phase.
// A returned error ended the session, which has been torn down.
func (d *Driver) Drive() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.session == nil {
		return nil
	}
	d.capture.Drain(d.session.Record)
	err := d.session.Send()
	if err == nil {
		err = d.session.Receive()
	}
	if err != nil {
		log.Errorf("client: %v: %v", d.session.RemoteAddr(), err)
		d.teardown()
	}
	return err
}

// Connected reports whether a session exists.
func (d *Driver) Connected() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session != nil
}

// Authenticated reports whether the current session was confirmed by the relay.
func (d *Driver) Authenticated() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session != nil && d.session.Authenticated()
}

func (d *Driver) teardown() {
	if d.session == nil {
		return
	}
	log.Infof("client: terminating the connection with %v", d.session.RemoteAddr())
	_ = d.session.Close()
	if d.handle != nil {
		_ = d.handle.Close()
	}
	d.capture.Close()
	d.playback.Close()
	d.session, d.capture, d.playback, d.handle = nil, nil, nil, nil
}
