package packet

import (
	"github.com/stoewer/go-strcase"
	"proxichat/core/lib/audio"
	"strconv"
)

// Kind identifies the variant of a Message on the wire.
type Kind uint8

const (
	KindAuth Kind = iota + 1
	KindAuthConfirm
	KindNewAudio
	KindProcessedAudio
	KindNone
)

var kindNames = map[Kind]string{
	KindAuth:           strcase.SnakeCase("Auth"),
	KindAuthConfirm:    strcase.SnakeCase("AuthConfirm"),
	KindNewAudio:       strcase.SnakeCase("NewAudio"),
	KindProcessedAudio: strcase.SnakeCase("ProcessedAudio"),
	KindNone:           strcase.SnakeCase("None"),
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k is one of the defined message kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Identity is the opaque participant number a client claims when connecting.
type Identity int64

// Message is one of Auth, AuthConfirm, NewAudio, ProcessedAudio or None.
// All variants are plain values and can be compared with ==.
type Message interface {
	Kind() Kind
}

// Auth is sent by a client to claim an Identity.
type Auth struct {
	Identity Identity
}

// AuthConfirm is sent by the relay once the claimed identity was accepted.
type AuthConfirm struct{}

// NewAudio carries one chunk of captured audio from a client to the relay.
type NewAudio struct {
	Samples audio.Chunk
}

// ProcessedAudio carries one chunk of audio for playback from the relay to a client.
type ProcessedAudio struct {
	Samples audio.Chunk
}

// None is sent by the relay when nothing else is due.
type None struct{}

func (Auth) Kind() Kind           { return KindAuth }
func (AuthConfirm) Kind() Kind    { return KindAuthConfirm }
func (NewAudio) Kind() Kind       { return KindNewAudio }
func (ProcessedAudio) Kind() Kind { return KindProcessedAudio }
func (None) Kind() Kind           { return KindNone }
