//go:build !unix

package transport

import (
	"errors"
	"net"
	"os"
	"time"
)

// pollTimeout is how long a read or write may wait on platforms
// without direct access to non-blocking system calls.
const pollTimeout = 100 * time.Microsecond

type deadlineConn struct {
	conn net.Conn
}

// Wrap turns a connection from the net package into a non-blocking Conn.
// This fallback emulates non-blocking calls with a very short deadline.
func Wrap(conn net.Conn) (Conn, error) {
	return &deadlineConn{conn: conn}, nil
}

func (c *deadlineConn) TryRead(p []byte) (int, Outcome, error) {
	if len(p) == 0 {
		return 0, Ready, nil
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pollTimeout))
	n, err := c.conn.Read(p)
	return settle(n, err)
}

func (c *deadlineConn) TryWrite(p []byte) (int, Outcome, error) {
	if len(p) == 0 {
		return 0, Ready, nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(pollTimeout))
	n, err := c.conn.Write(p)
	return settle(n, err)
}

func settle(n int, err error) (int, Outcome, error) {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if n > 0 {
			return n, Ready, nil
		}
		return 0, Pending, nil
	}
	return n, Ready, err
}

func (c *deadlineConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *deadlineConn) Close() error {
	return c.conn.Close()
}
