//go:build unix

package transport

import (
	"fmt"
	"golang.org/x/sys/unix"
	"io"
	"net"
	"syscall"
)

type rawConn struct {
	conn net.Conn
	raw  syscall.RawConn
}

// Wrap turns a connection from the net package into a non-blocking Conn.
// Reads and writes are issued directly on the file descriptor,
// which the Go runtime has already put into non-blocking mode.
func Wrap(conn net.Conn) (Conn, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, ErrNotSyscallConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("failed to access file descriptor: %w", err)
	}
	return &rawConn{conn: conn, raw: raw}, nil
}

func (c *rawConn) TryRead(p []byte) (n int, outcome Outcome, err error) {
	if len(p) == 0 {
		return
	}
	var opErr error
	err = c.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), p)
		return true
	})
	if err != nil {
		return 0, Ready, err
	}
	if n < 0 {
		n = 0
	}
	if wouldBlock(opErr) {
		return 0, Pending, nil
	}
	if opErr != nil {
		return 0, Ready, opErr
	}
	if n == 0 {
		return 0, Ready, io.EOF
	}
	return n, Ready, nil
}

func (c *rawConn) TryWrite(p []byte) (n int, outcome Outcome, err error) {
	if len(p) == 0 {
		return
	}
	var opErr error
	err = c.raw.Write(func(fd uintptr) bool {
		n, opErr = unix.Write(int(fd), p)
		return true
	})
	if err != nil {
		return 0, Ready, err
	}
	if n < 0 {
		n = 0
	}
	if wouldBlock(opErr) {
		return 0, Pending, nil
	}
	if opErr != nil {
		return 0, Ready, opErr
	}
	return n, Ready, nil
}

func (c *rawConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *rawConn) Close() error {
	return c.conn.Close()
}

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}
