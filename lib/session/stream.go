package session

import (
	log "github.com/schollz/logger"
	"net"
	"proxichat/core/lib/packet"
	"proxichat/core/lib/transport"
)

// Stream exchanges fixed-size frames over a non-blocking connection.
// It performs at most one read per ReadMessage and one write per WriteMessage,
// so it can be driven from a tick loop that must never wait.
//
// Incomplete frames are kept between calls in both directions,
// therefore the stream stays aligned to frame boundaries
// no matter how the transport splits or coalesces bytes.
// A plain frame that fails to decode is dropped and the stream realigns
// on the next plausible frame header among the bytes already read.
type Stream struct {
	conn   transport.Conn
	sealer Sealer

	frame packet.Frame
	plain []byte

	read  []byte
	readN int

	write  []byte
	unsent []byte
}

// NewStream creates a Stream on conn. A nil sealer means Plain.
func NewStream(conn transport.Conn, sealer Sealer) *Stream {
	if sealer == nil {
		sealer = Plain{}
	}
	size := packet.FrameSize + sealer.Overhead()
	return &Stream{
		conn:   conn,
		sealer: sealer,
		plain:  make([]byte, 0, packet.FrameSize),
		read:   make([]byte, size),
		write:  make([]byte, 0, size),
	}
}

// WireSize is the number of bytes one frame occupies on the wire.
func (s *Stream) WireSize() int {
	return len(s.read)
}

// ReadMessage performs one non-blocking read.
// It returns a message only once a complete frame has arrived.
// Pending is returned when no complete frame is available
// or when a complete frame could not be decoded and was dropped.
// Any returned error is fatal for the stream.
func (s *Stream) ReadMessage() (message packet.Message, outcome transport.Outcome, err error) {
	if s.conn == nil {
		return nil, transport.Ready, ErrClosed
	}
	n, outcome, err := s.conn.TryRead(s.read[s.readN:])
	if err != nil {
		return nil, transport.Ready, transportError("read", err)
	}
	if outcome == transport.Pending {
		return
	}
	s.readN += n
	if s.readN < len(s.read) {
		return nil, transport.Pending, nil
	}
	s.readN = 0

	s.plain, err = s.sealer.Open(s.plain[:0], s.read)
	if err != nil {
		return nil, transport.Ready, transportError("open", err)
	}
	message, err = packet.Decode(s.plain)
	if err != nil {
		log.Debugf("session: %v: dropped frame: %v", s.RemoteAddr(), err)
		if s.sealer.Overhead() == 0 {
			s.resync()
		}
		return nil, transport.Pending, nil
	}
	return message, transport.Ready, nil
}

// resync keeps the dropped bytes from the first plausible frame header on,
// so stray bytes on a plain stream shift the frames only until the next one.
// Sealed streams cannot drift, a misaligned frame fails to open.
func (s *Stream) resync() {
	for i := 1; i < len(s.read); i++ {
		if packet.Plausible(s.read[i:]) {
			s.readN = copy(s.read, s.read[i:])
			log.Debugf("session: %v: skipped %v bytes to the next frame", s.RemoteAddr(), i)
			return
		}
	}
}

// WriteMessage performs one non-blocking write.
// If a previous frame was only partly written, its remainder is written instead
// and message is dropped. Pending means that nothing was written.
// Any returned error is fatal for the stream.
func (s *Stream) WriteMessage(message packet.Message) (outcome transport.Outcome, err error) {
	if s.conn == nil {
		return transport.Ready, ErrClosed
	}
	if len(s.unsent) == 0 {
		packet.EncodeTo(&s.frame, message)
		s.write, err = s.sealer.Seal(s.write[:0], s.frame[:])
		if err != nil {
			return transport.Ready, transportError("seal", err)
		}
		s.unsent = s.write
	}
	n, outcome, err := s.conn.TryWrite(s.unsent)
	if err != nil {
		return transport.Ready, transportError("write", err)
	}
	s.unsent = s.unsent[n:]
	if outcome == transport.Pending {
		return
	}
	if len(s.unsent) > 0 {
		log.Debugf("session: %v: partial write, %v bytes left", s.RemoteAddr(), len(s.unsent))
	}
	return transport.Ready, nil
}

// Unsent returns the number of bytes of a partly written frame.
func (s *Stream) Unsent() int {
	return len(s.unsent)
}

// RemoteAddr returns the address of the peer, or nil after Close.
func (s *Stream) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// Close releases the connection and clears all buffers.
// It is safe to call Close multiple times.
func (s *Stream) Close() (err error) {
	if s.conn != nil {
		err = s.conn.Close()
	}
	s.conn = nil
	s.sealer = Plain{}
	s.frame = packet.Frame{}
	s.plain = s.plain[:0]
	for i := range s.read {
		s.read[i] = 0
	}
	s.readN = 0
	s.write = s.write[:0]
	s.unsent = nil
	return
}
