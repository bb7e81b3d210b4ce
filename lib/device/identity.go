package device

import (
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/flynn/noise"
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/oasisprotocol/curve25519-voi/primitives/x25519"
	"io"
	"os"
	"strings"
)

// Key is the private key of a relay.
type Key ed25519.PrivateKey

// X25519Key is the X25519 version of a Key.
type X25519Key []byte

func (k Key) X25519() X25519Key {
	return x25519.EdPrivateKeyToX25519(ed25519.PrivateKey(k))
}

// Identity is the public key of a relay.
// Clients pin it to make sure they talk to the right relay.
type Identity ed25519.PublicKey

// X25519Identity is the X25519 version of an Identity.
type X25519Identity []byte

func (k Identity) X25519() (X25519Identity, error) {
	key, ok := x25519.EdPublicKeyToX25519(ed25519.PublicKey(k))
	if !ok {
		return nil, ErrBadIdentity
	}
	return key, nil
}

func (k Identity) String() string {
	return hex.EncodeToString(k)
}

var (
	ErrBadIdentity = errors.New("not a valid ed25519 public key")
	ErrBadKey      = errors.New("not a valid ed25519 private key")
)

// ParseIdentity decodes a hex-encoded Identity.
func ParseIdentity(s string) (Identity, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIdentity, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: must be %v bytes long", ErrBadIdentity, ed25519.PublicKeySize)
	}
	if _, ok := x25519.EdPublicKeyToX25519(ed25519.PublicKey(raw)); !ok {
		return nil, ErrBadIdentity
	}
	return raw, nil
}

// KeyPair holds both a Key and its corresponding Identity.
type KeyPair struct {
	Private Key
	Public  Identity
}

// NoiseKeyPair represents the X25519 version of a KeyPair.
type NoiseKeyPair = noise.DHKey

// GenerateKeyPair generates a new KeyPair.
func GenerateKeyPair(reader io.Reader) (KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		Private: Key(privateKey),
		Public:  Identity(publicKey),
	}, nil
}

// Noise returns the X25519 version of this KeyPair for the Noise handshake.
func (k *KeyPair) Noise() (NoiseKeyPair, error) {
	public, err := k.Public.X25519()
	if err != nil {
		return NoiseKeyPair{}, err
	}
	return noise.DHKey{
		Private: k.Private.X25519(),
		Public:  public,
	}, nil
}

// Save writes the hex-encoded private key to path, readable by the owner only.
func (k *KeyPair) Save(path string) error {
	data := hex.EncodeToString(k.Private) + "\n"
	return os.WriteFile(path, []byte(data), 0600)
}

// LoadKeyPair reads a key file that was written with KeyPair.Save.
func LoadKeyPair(path string) (KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return KeyPair{}, fmt.Errorf("%w: must be %v bytes long", ErrBadKey, ed25519.PrivateKeySize)
	}
	private := ed25519.PrivateKey(raw)
	public, ok := private.Public().(ed25519.PublicKey)
	if !ok {
		return KeyPair{}, ErrBadKey
	}
	return KeyPair{
		Private: Key(private),
		Public:  Identity(public),
	}, nil
}
