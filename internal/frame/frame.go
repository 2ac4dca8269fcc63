// Package frame implements a non-blocking wrapper around a net.Conn that
// exchanges wire.Msg values as a concatenated stream of JSON objects. It
// is asymmetrical by design: reading from a Frame yields decoded wire.Msg
// values, but writing to a Frame takes already-encoded bytes (see
// wire.Envelope) so that a broadcast message is JSON-encoded exactly once
// no matter how many recipients it fans out to.
//
// All operations are non-blocking and suitable for single-threaded,
// tick-driven use: Suck attempts to read whatever is currently available
// without blocking, TryGet attempts to decode one message from whatever
// has accumulated, Enqueue stages outgoing bytes, and Blow attempts to
// write whatever is staged. BlockingGet and BlockingSend are busy-wait
// conveniences built on top of these for use before a connection has been
// handed off to the tick loop (the initial Name handshake).
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/d2718/grel/internal/wire"
)

const defaultBufferSize = 1024

// pollDeadline is how far in the future a non-blocking Suck/Blow sets its
// read/write deadline. It needs to be long enough that a same-host socket
// write that's already buffered in the kernel is observed as readable,
// but short enough that a single Suck/Blow never meaningfully blocks the
// tick loop.
const pollDeadline = time.Millisecond

// Error wraps or signals an error on a Frame's underlying connection. A
// Frame that returns an Error should probably be Shutdown.
type Error struct {
	msg string
}

func newError(context string, err error) *Error {
	return &Error{msg: fmt.Sprintf("%s: %s", context, err)}
}

func (e *Error) Error() string { return "frame: " + e.msg }

// Frame wraps a net.Conn and exchanges wire.Msg objects over it.
type Frame struct {
	conn    net.Conn
	readBuf []byte
	current bytes.Buffer
	sendBuf []byte
}

// New wraps conn in a Frame. If conn is a *net.TCPConn, Nagle's algorithm
// is disabled, matching the wire format's expectation of promptly
// delivered small frames.
func New(conn net.Conn) (*Frame, error) {
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			return nil, newError("unable to set nodelay on underlying socket", err)
		}
	}
	return &Frame{
		conn:    conn,
		readBuf: make([]byte, defaultBufferSize),
	}, nil
}

// Shutdown closes the underlying connection.
func (f *Frame) Shutdown() error {
	if err := f.conn.Close(); err != nil {
		return newError("error shutting down underlying socket", err)
	}
	return nil
}

// SetReadBufferSize changes how many bytes a single Suck attempts to
// read. Setting this to 0 would be pointless and stupid.
func (f *Frame) SetReadBufferSize(n int) { f.readBuf = make([]byte, n) }

// GetReadBufferSize returns how many bytes a Suck attempts to read.
func (f *Frame) GetReadBufferSize() int { return len(f.readBuf) }

// Suck attempts, without blocking, to read data from the underlying
// connection into the internal receive buffer. A returned error is
// probably grounds for Shutdown. A return of 0 means there wasn't any
// data to read right now, not that the connection is dead.
func (f *Frame) Suck() (int, error) {
	f.conn.SetReadDeadline(time.Now().Add(pollDeadline))
	n, err := f.conn.Read(f.readBuf)
	if n > 0 {
		f.current.Write(f.readBuf[:n])
	}
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return n, nil
		}
		if errors.Is(err, io.EOF) {
			return n, newError("error reading from the underlying socket", err)
		}
		return n, newError("error reading from the underlying socket", err)
	}
	return n, nil
}

// TryGet attempts to decode one wire.Msg from the internal receive
// buffer. A returned error means the stream is carrying syntactically
// bad data and should probably be shut down. found is false when there
// isn't yet enough data in the buffer to form a complete message.
func (f *Frame) TryGet() (m wire.Msg, found bool, err error) {
	if f.current.Len() == 0 {
		return nil, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(f.current.Bytes()))
	var raw json.RawMessage
	if decErr := dec.Decode(&raw); decErr != nil {
		if errors.Is(decErr, io.EOF) || errors.Is(decErr, io.ErrUnexpectedEOF) {
			return nil, false, nil
		}
		return nil, false, newError("syntax error in data from underlying socket", decErr)
	}

	consumed := int(dec.InputOffset())
	remainder := f.current.Bytes()[consumed:]
	kept := make([]byte, len(remainder))
	copy(kept, remainder)
	f.current.Reset()
	f.current.Write(kept)

	msg, decErr := wire.Decode(raw)
	if decErr != nil {
		return nil, false, newError("syntax error in data from underlying socket", decErr)
	}
	return msg, true, nil
}

// BlockingGet busy-waits, sucking the underlying connection every tick
// interval, until it has decoded a wire.Msg. A returned error is
// probably grounds for Shutdown. This is only appropriate before a
// connection has been handed off to the non-blocking tick loop (the
// initial Name handshake).
func (f *Frame) BlockingGet(tick time.Duration) (wire.Msg, error) {
	if m, found, err := f.TryGet(); err != nil {
		return nil, err
	} else if found {
		return m, nil
	}
	for {
		n, err := f.Suck()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			time.Sleep(tick)
			continue
		}
		if m, found, err := f.TryGet(); err != nil {
			return nil, err
		} else if found {
			return m, nil
		}
	}
}

// BlockingGetDeadline is like BlockingGet but gives up once deadline has
// elapsed, returning a timeout Error instead of waiting forever. This is
// the shape the initial Name handshake actually needs: a slow or silent
// client must not be allowed to occupy the listener indefinitely.
func (f *Frame) BlockingGetDeadline(tick, deadline time.Duration) (wire.Msg, error) {
	limit := time.Now().Add(deadline)
	if m, found, err := f.TryGet(); err != nil {
		return nil, err
	} else if found {
		return m, nil
	}
	for {
		if time.Now().After(limit) {
			return nil, newError("blocking get", fmt.Errorf("timed out after %s waiting for a message", deadline))
		}
		n, err := f.Suck()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			time.Sleep(tick)
			continue
		}
		if m, found, err := f.TryGet(); err != nil {
			return nil, err
		} else if found {
			return m, nil
		}
	}
}

// Enqueue copies data onto the outgoing send buffer, to be written on
// subsequent calls to Blow. data should already be JSON-encoded (see
// wire.Envelope).
func (f *Frame) Enqueue(data []byte) {
	f.sendBuf = append(f.sendBuf, data...)
}

// Blow attempts, without blocking, to write data staged by Enqueue to the
// underlying connection. It returns the number of bytes left in the send
// buffer, not the number of bytes written, so 0 always means the send
// buffer is empty. A returned error is probably grounds for Shutdown.
func (f *Frame) Blow() (int, error) {
	if len(f.sendBuf) == 0 {
		return 0, nil
	}
	f.conn.SetWriteDeadline(time.Now().Add(pollDeadline))
	n, err := f.conn.Write(f.sendBuf)
	if n > 0 {
		f.sendBuf = f.sendBuf[n:]
	}
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return len(f.sendBuf), nil
		}
		return len(f.sendBuf), newError("error writing to the underlying socket", err)
	}
	return len(f.sendBuf), nil
}

// BlockingSend queues data, then busy-waits blowing it every tick
// interval until the send buffer is empty. Only appropriate before a
// connection has been handed off to the non-blocking tick loop.
func (f *Frame) BlockingSend(data []byte, tick time.Duration) error {
	f.Enqueue(data)
	for {
		n, err := f.Blow()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		time.Sleep(tick)
	}
}

// SendBufferSize returns how many bytes are still queued to be Blown.
func (f *Frame) SendBufferSize() int { return len(f.sendBuf) }

// RecvBufferSize returns how many bytes are sitting in the receive
// buffer waiting to be decoded.
func (f *Frame) RecvBufferSize() int { return f.current.Len() }

// Addr returns the address of the remote endpoint, or "???" if it
// cannot be determined.
func (f *Frame) Addr() string {
	if a := f.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return "???"
}
