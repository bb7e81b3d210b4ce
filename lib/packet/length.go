package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Length is the header of a length-prefixed packet.
// Length-prefixed packets are only exchanged during the handshake
// that may precede the fixed-frame stream.
type Length uint16

// LengthSize is the byte size of a Length.
const LengthSize = 2

// MaxLength is the maximum length of a length-prefixed packet.
const MaxLength = (1 << (LengthSize << 3)) - 1

var ErrTooLong = fmt.Errorf("packet may not exceed %v bytes", MaxLength)

// LengthOf returns the Length of data or ErrTooLong.
func LengthOf(data []byte) (Length, error) {
	if len(data) > MaxLength {
		return 0, ErrTooLong
	}
	return Length(len(data)), nil
}

// DecodeLength decodes a Length that was encoded with Length.Bytes.
func DecodeLength(raw []byte) (Length, error) {
	if len(raw) != LengthSize {
		return 0, errors.New("length header must be 2 bytes long")
	}
	return Length(binary.BigEndian.Uint16(raw)), nil
}

// Bytes encodes the Length in big endian byte order.
func (l Length) Bytes() []byte {
	var raw [LengthSize]byte
	binary.BigEndian.PutUint16(raw[:], uint16(l))
	return raw[:]
}

// WritePrefixed writes data preceded by its Length in a single write.
func WritePrefixed(w io.Writer, data []byte) error {
	length, err := LengthOf(data)
	if err != nil {
		return err
	}
	_, err = w.Write(append(length.Bytes(), data...))
	return err
}

// ReadPrefixed reads one packet that was written with WritePrefixed.
func ReadPrefixed(r io.Reader) (data []byte, err error) {
	var header [LengthSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return
	}
	length, err := DecodeLength(header[:])
	if err != nil {
		return
	}
	data = make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		data = nil
	}
	return
}
