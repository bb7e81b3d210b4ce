// Package transporttest provides a scripted transport.Conn for tests.
package transporttest

import (
	"io"
	"net"
	"proxichat/core/lib/packet"
	"proxichat/core/lib/transport"
	"sync"
)

// Conn is an in-memory transport.Conn.
// Reads return the bytes queued with Feed and report Pending once they are used up.
// Writes are collected and can be inspected with Written or Messages.
type Conn struct {
	mutex sync.Mutex

	inbound  []byte
	outbound []byte

	// ReadLimit caps the number of bytes returned by a single read if positive.
	ReadLimit int
	// WriteLimit caps the number of bytes accepted by a single write if positive.
	WriteLimit int
	// BlockWrites makes every write report Pending.
	BlockWrites bool
	// ReadErr is returned by reads once all fed bytes are consumed.
	ReadErr error
	// WriteErr is returned by every write if set.
	WriteErr error

	reads  int
	writes int
	closed bool
}

var addr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

func New() *Conn {
	return &Conn{}
}

// Feed queues bytes for reading.
func (c *Conn) Feed(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.inbound = append(c.inbound, data...)
}

// FeedMessage queues one plain frame for reading.
func (c *Conn) FeedMessage(m packet.Message) {
	f := packet.Encode(m)
	c.Feed(f[:])
}

// Hangup makes reads fail with io.EOF once all fed bytes are consumed.
func (c *Conn) Hangup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.ReadErr = io.EOF
}

func (c *Conn) TryRead(p []byte) (int, transport.Outcome, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.reads++
	if c.closed {
		return 0, transport.Ready, net.ErrClosed
	}
	if len(c.inbound) == 0 {
		if c.ReadErr != nil {
			return 0, transport.Ready, c.ReadErr
		}
		return 0, transport.Pending, nil
	}
	limit := len(p)
	if c.ReadLimit > 0 && c.ReadLimit < limit {
		limit = c.ReadLimit
	}
	n := copy(p[:limit], c.inbound)
	c.inbound = c.inbound[n:]
	return n, transport.Ready, nil
}

func (c *Conn) TryWrite(p []byte) (int, transport.Outcome, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.writes++
	if c.closed {
		return 0, transport.Ready, net.ErrClosed
	}
	if c.WriteErr != nil {
		return 0, transport.Ready, c.WriteErr
	}
	if c.BlockWrites {
		return 0, transport.Pending, nil
	}
	n := len(p)
	if c.WriteLimit > 0 && c.WriteLimit < n {
		n = c.WriteLimit
	}
	c.outbound = append(c.outbound, p[:n]...)
	return n, transport.Ready, nil
}

func (c *Conn) RemoteAddr() net.Addr {
	return addr
}

func (c *Conn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.closed
}

// Reads returns the number of read calls.
func (c *Conn) Reads() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.reads
}

// Writes returns the number of write calls.
func (c *Conn) Writes() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.writes
}

// Written returns a copy of all bytes written so far.
func (c *Conn) Written() []byte {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]byte(nil), c.outbound...)
}

// Messages decodes every complete plain frame written so far.
// Frames that fail to decode are returned as nil.
func (c *Conn) Messages() []packet.Message {
	written := c.Written()
	messages := make([]packet.Message, 0, len(written)/packet.FrameSize)
	for len(written) >= packet.FrameSize {
		m, _ := packet.Decode(written[:packet.FrameSize])
		messages = append(messages, m)
		written = written[packet.FrameSize:]
	}
	return messages
}
