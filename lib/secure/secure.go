package secure

import (
	"crypto/rand"
	"errors"
	"fmt"
	"github.com/flynn/noise"
	"net"
	"proxichat/core/lib/device"
	"proxichat/core/lib/packet"
	"strconv"
	"time"
)

// CipherSuite is the Noise cipher suite both peers must use.
var CipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// TagSize is the size of the authentication tag of noise.CipherChaChaPoly.
const TagSize = 16

// prologue binds the handshake to the frame size,
// so peers built with a different frame layout fail early.
var prologue = []byte("proxichat frame " + strconv.Itoa(packet.FrameSize))

var ErrHandshake = errors.New("secure handshake failed")

// Sealer encrypts outgoing frames and decrypts incoming ones.
// Frames must be opened in the same order they were sealed by the peer.
type Sealer struct {
	write *noise.CipherState
	read  *noise.CipherState
}

// Overhead is the number of bytes a sealed frame is larger than a plain one.
func (s *Sealer) Overhead() int {
	return TagSize
}

// Seal appends the encrypted frame to dst.
func (s *Sealer) Seal(dst, frame []byte) ([]byte, error) {
	return s.write.Encrypt(dst, nil, frame)
}

// Open appends the decrypted frame to dst.
func (s *Sealer) Open(dst, wire []byte) ([]byte, error) {
	return s.read.Decrypt(dst, nil, wire)
}

// Initiate runs the client side of a Noise NK handshake with the relay
// whose identity is known in advance. It blocks for at most timeout.
func Initiate(conn net.Conn, relay device.Identity, timeout time.Duration) (sealer *Sealer, err error) {
	peerStatic, err := relay.X25519()
	if err != nil {
		return
	}
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite: CipherSuite,
		Random:      rand.Reader,
		Pattern:     noise.HandshakeNK,
		Initiator:   true,
		Prologue:    prologue,
		PeerStatic:  peerStatic,
	})
	if err != nil {
		return
	}
	defer deadline(conn, timeout)()

	message, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if err = packet.WritePrefixed(conn, message); err != nil {
		return
	}
	reply, err := packet.ReadPrefixed(conn)
	if err != nil {
		return
	}
	_, c1, c2, err := hs.ReadMessage(nil, reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	sealer = &Sealer{write: c1, read: c2}
	return
}

// Respond runs the relay side of a Noise NK handshake. It blocks for at most timeout.
func Respond(conn net.Conn, key device.KeyPair, timeout time.Duration) (sealer *Sealer, err error) {
	static, err := key.Noise()
	if err != nil {
		return
	}
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   CipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeNK,
		Prologue:      prologue,
		StaticKeypair: static,
	})
	if err != nil {
		return
	}
	defer deadline(conn, timeout)()

	message, err := packet.ReadPrefixed(conn)
	if err != nil {
		return
	}
	if _, _, _, err = hs.ReadMessage(nil, message); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	reply, c1, c2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	if err = packet.WritePrefixed(conn, reply); err != nil {
		return
	}
	sealer = &Sealer{write: c2, read: c1}
	return
}

func deadline(conn net.Conn, timeout time.Duration) (reset func()) {
	if timeout <= 0 {
		return func() {}
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))
	return func() { _ = conn.SetDeadline(time.Time{}) }
}
