package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"proxichat/core/lib/audio"
)

/*

Frame layout (big endian, every frame is exactly FrameSize bytes):

	[0]      kind
	[1:4]    reserved, always zero
	[4:]     payload area of PayloadSize bytes
	         Auth:                  identity as int64 in the first 8 bytes
	         NewAudio, ProcessedAudio: ChunkSize float32 samples
	         AuthConfirm, None:     empty
	         unused payload bytes are always zero

*/

const (
	// HeaderSize is the byte size of the frame header.
	HeaderSize = 4
	// PayloadSize is the byte size of the largest payload, an audio chunk.
	PayloadSize = audio.ChunkSize * 4
	// FrameSize is the byte size of every frame on the wire.
	FrameSize = HeaderSize + PayloadSize
)

const identitySize = 8

// Frame holds one encoded Message.
type Frame [FrameSize]byte

// ErrDecode is matched by every *DecodeError with errors.Is.
var ErrDecode = errors.New("invalid frame")

// DecodeError is returned when bytes are not a valid frame.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "invalid frame: " + e.Reason
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeError(format string, args ...interface{}) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// Encode encodes a Message into a new Frame.
func Encode(m Message) (f Frame) {
	EncodeTo(&f, m)
	return
}

// EncodeTo encodes a Message into an existing Frame, overwriting all of its bytes.
// It panics if m is not one of the message types of this package.
func EncodeTo(f *Frame, m Message) {
	*f = Frame{}
	payload := f[HeaderSize:]
	switch v := m.(type) {
	case Auth:
		binary.BigEndian.PutUint64(payload, uint64(v.Identity))
	case AuthConfirm, None:
	case NewAudio:
		putSamples(payload, &v.Samples)
	case ProcessedAudio:
		putSamples(payload, &v.Samples)
	default:
		panic(fmt.Sprintf("packet: cannot encode message of type %T", m))
	}
	f[0] = byte(m.Kind())
}

// Decode decodes a Message from exactly FrameSize bytes.
func Decode(raw []byte) (Message, error) {
	if len(raw) != FrameSize {
		return nil, decodeError("got %v bytes, want %v", len(raw), FrameSize)
	}
	kind := Kind(raw[0])
	if !kind.Valid() {
		return nil, decodeError("unknown kind %v", raw[0])
	}
	for _, b := range raw[1:HeaderSize] {
		if b != 0 {
			return nil, decodeError("reserved header bytes are not zero")
		}
	}
	payload := raw[HeaderSize:]
	switch kind {
	case KindAuth:
		if !zero(payload[identitySize:]) {
			return nil, decodeError("trailing bytes after %v payload", kind)
		}
		return Auth{Identity: Identity(binary.BigEndian.Uint64(payload))}, nil
	case KindNewAudio:
		m := NewAudio{}
		getSamples(&m.Samples, payload)
		return m, nil
	case KindProcessedAudio:
		m := ProcessedAudio{}
		getSamples(&m.Samples, payload)
		return m, nil
	}
	if !zero(payload) {
		return nil, decodeError("trailing bytes after %v payload", kind)
	}
	if kind == KindAuthConfirm {
		return AuthConfirm{}, nil
	}
	return None{}, nil
}

// Plausible reports whether b may be the start of a frame:
// a known kind followed by zero reserved bytes.
// Only the header bytes present in b are checked.
func Plausible(b []byte) bool {
	if len(b) == 0 || !Kind(b[0]).Valid() {
		return false
	}
	header := b[1:]
	if len(header) > HeaderSize-1 {
		header = header[:HeaderSize-1]
	}
	return zero(header)
}

func putSamples(dst []byte, samples *audio.Chunk) {
	for i, s := range samples {
		binary.BigEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
}

func getSamples(samples *audio.Chunk, src []byte) {
	for i := range samples {
		samples[i] = math.Float32frombits(binary.BigEndian.Uint32(src[i*4:]))
	}
}

func zero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
