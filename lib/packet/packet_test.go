package packet

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"proxichat/core/lib/audio"
	"testing"
)

func testChunk(offset float32) (c audio.Chunk) {
	for i := range c {
		c[i] = offset + float32(i)/audio.ChunkSize
	}
	return
}

var messages = []Message{
	Auth{Identity: 42},
	Auth{Identity: -1},
	AuthConfirm{},
	NewAudio{Samples: testChunk(0)},
	ProcessedAudio{Samples: testChunk(-0.5)},
	None{},
}

func TestEncode_FrameSize(t *testing.T) {
	assert.Equal(t, 516, FrameSize)
	for _, m := range messages {
		f := Encode(m)
		assert.Len(t, f[:], FrameSize)
		assert.EqualValues(t, m.Kind(), f[0])
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	for _, m := range messages {
		f := Encode(m)
		decoded, err := Decode(f[:])
		require.Nil(t, err, m.Kind().String())
		assert.Equal(t, m, decoded)
	}
}

func TestEncodeTo_Overwrites(t *testing.T) {
	var f Frame
	EncodeTo(&f, NewAudio{Samples: testChunk(1)})
	EncodeTo(&f, None{})
	assert.Equal(t, Encode(None{}), f)
}

func TestEncode_PanicsOnForeignMessage(t *testing.T) {
	assert.Panics(t, func() { Encode(foreign{}) })
}

type foreign struct{}

func (foreign) Kind() Kind { return KindNone }

func TestDecode_Garbage(t *testing.T) {
	valid := Encode(Auth{Identity: 7})

	cases := map[string][]byte{
		"empty":     {},
		"truncated": valid[:FrameSize-1],
		"oversized": append(valid[:], 0),
	}
	unknown := valid
	unknown[0] = 0xff
	cases["unknown kind"] = unknown[:]
	zeroKind := valid
	zeroKind[0] = 0
	cases["zero kind"] = zeroKind[:]
	reserved := valid
	reserved[2] = 1
	cases["reserved"] = reserved[:]
	trailing := valid
	trailing[FrameSize-1] = 1
	cases["auth trailing"] = trailing[:]
	confirm := Encode(AuthConfirm{})
	confirm[HeaderSize] = 1
	cases["confirm trailing"] = confirm[:]

	for name, raw := range cases {
		m, err := Decode(raw)
		assert.Nil(t, m, name)
		assert.ErrorIs(t, err, ErrDecode, name)
		var decodeErr *DecodeError
		assert.ErrorAs(t, err, &decodeErr, name)
	}
}

func TestPlausible(t *testing.T) {
	frame := Encode(NewAudio{Samples: testChunk(0.5)})
	assert.True(t, Plausible(frame[:]))
	assert.True(t, Plausible(frame[:2]))
	assert.True(t, Plausible([]byte{byte(KindNone)}))

	assert.False(t, Plausible(nil))
	assert.False(t, Plausible([]byte{0, 0, 0, 0}))
	assert.False(t, Plausible([]byte{0xff, 0, 0, 0}))
	assert.False(t, Plausible([]byte{byte(KindAuth), 0, 1}))
	// Payload bytes are not part of the header.
	assert.True(t, Plausible([]byte{byte(KindAuth), 0, 0, 0, 1}))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "auth_confirm", KindAuthConfirm.String())
	assert.Equal(t, "processed_audio", KindProcessedAudio.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.False(t, Kind(0).Valid())
}

func TestPrefixed(t *testing.T) {
	var b bytes.Buffer
	require.Nil(t, WritePrefixed(&b, []byte("golden")))
	require.Nil(t, WritePrefixed(&b, []byte("gate")))
	assert.Equal(t, LengthSize+6+LengthSize+4, b.Len())

	data, err := ReadPrefixed(&b)
	assert.Nil(t, err)
	assert.Equal(t, []byte("golden"), data)
	data, err = ReadPrefixed(&b)
	assert.Nil(t, err)
	assert.Equal(t, []byte("gate"), data)
}

func TestLength(t *testing.T) {
	l, err := LengthOf([]byte("bridge"))
	assert.Nil(t, err)
	decoded, err := DecodeLength(l.Bytes())
	assert.Nil(t, err)
	assert.EqualValues(t, 6, decoded)

	_, err = LengthOf(make([]byte, MaxLength+1))
	assert.ErrorIs(t, err, ErrTooLong)
	_, err = DecodeLength([]byte{1})
	assert.NotNil(t, err)
}
