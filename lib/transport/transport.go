package transport

import (
	"context"
	"errors"
	"net"
	"time"
)

// Outcome tells whether a non-blocking operation made progress.
type Outcome uint8

const (
	// Ready means the operation ran. The byte count tells how far it got.
	Ready Outcome = iota
	// Pending means the socket had no data or no capacity right now.
	// It is the normal result on most ticks and never an error.
	Pending
)

func (o Outcome) String() string {
	if o == Pending {
		return "pending"
	}
	return "ready"
}

// Conn is a stream connection that never blocks on reads and writes.
type Conn interface {
	// TryRead reads whatever is available into p.
	// It returns Pending if nothing is available and io.EOF once the peer closed the stream.
	TryRead(p []byte) (n int, outcome Outcome, err error)
	// TryWrite writes as much of p as the socket accepts right now.
	// It returns Pending if nothing could be written.
	TryWrite(p []byte) (n int, outcome Outcome, err error)
	RemoteAddr() net.Addr
	Close() error
}

var ErrNotSyscallConn = errors.New("connection does not expose a file descriptor")

// Dial connects to address over TCP.
// It blocks for at most timeout and must not be called from a tick.
func Dial(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}

// Listen opens a TCP listener on address whose connections can be wrapped.
// Accepted connections have Nagle's algorithm disabled.
func Listen(address string) (net.Listener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &noDelayListener{listener}, nil
}

type noDelayListener struct {
	net.Listener
}

func (l *noDelayListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}
