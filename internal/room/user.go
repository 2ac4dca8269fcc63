// Package room implements the process-wide user/room state and the
// single-threaded tick loop that drives it: the Room Processor.
package room

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/d2718/grel/internal/frame"
	"github.com/d2718/grel/internal/identity"
	"github.com/d2718/grel/internal/wire"
)

// User is a connected client's server-side state: its Frame Socket,
// identity, byte-quota counter, last-activity timestamp, block list, and
// accumulated non-fatal socket errors.
type User struct {
	sock         *frame.Frame
	id           uint64
	name         string
	idstr        string
	quotaBytes   int
	lastDataTime time.Time
	blocks       []uint64
	errs         []error
}

// NewUser wraps sock as a User with the given id and a placeholder name
// of "user<id>", as assigned before the initial Name handshake resolves.
func NewUser(sock *frame.Frame, id uint64) *User {
	name := defaultName(id)
	return &User{
		sock:         sock,
		id:           id,
		name:         name,
		idstr:        identity.Normalize(name),
		lastDataTime: time.Now(),
	}
}

func defaultName(id uint64) string { return "user" + uitoa(id) }

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (u *User) ID() uint64    { return u.id }
func (u *User) Name() string  { return u.name }
func (u *User) Idstr() string { return u.idstr }

// Addr returns the remote peer address, or "???" if it cannot be
// determined.
func (u *User) Addr() string { return u.sock.Addr() }

// SetName updates the display name and recomputes idstr.
func (u *User) SetName(newName string) {
	u.name = newName
	u.idstr = identity.Normalize(newName)
}

func (u *User) ByteQuota() int { return u.quotaBytes }

// DrainByteQuota performs a saturating subtraction against the quota.
func (u *User) DrainByteQuota(amount int) {
	if amount > u.quotaBytes {
		u.quotaBytes = 0
	} else {
		u.quotaBytes -= amount
	}
}

func (u *User) LastDataTime() time.Time { return u.lastDataTime }

func (u *User) HasErrors() bool { return len(u.errs) > 0 }

// Errors wraps the accumulated socket errors into one error.
func (u *User) Errors() error {
	if len(u.errs) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d underlying socket error(s):", len(u.errs))
	for _, e := range u.errs {
		msg += fmt.Sprintf("\n  * %s", e)
	}
	return errors.New(msg)
}

// Logout best-effort sends a Logout message, flushes, and shuts down the
// socket. Appropriate for both clean logouts and forced logouts due to
// accumulated errors.
func (u *User) Logout(message string) {
	u.DeliverMsg(wire.Logout(message))
	_, _ = u.sock.Blow()
	_ = u.sock.Shutdown()
}

// BlockID adds id to the sorted block list. Returns whether the list
// actually changed.
func (u *User) BlockID(id uint64) bool {
	i := sort.Search(len(u.blocks), func(i int) bool { return u.blocks[i] >= id })
	if i < len(u.blocks) && u.blocks[i] == id {
		return false
	}
	u.blocks = append(u.blocks, 0)
	copy(u.blocks[i+1:], u.blocks[i:])
	u.blocks[i] = id
	return true
}

// UnblockID removes id from the sorted block list. Returns whether id
// was actually present.
func (u *User) UnblockID(id uint64) bool {
	i := sort.Search(len(u.blocks), func(i int) bool { return u.blocks[i] >= id })
	if i >= len(u.blocks) || u.blocks[i] != id {
		return false
	}
	u.blocks = append(u.blocks[:i], u.blocks[i+1:]...)
	return true
}

// Deliver enqueues env's bytes on the socket, unless env's source is a
// blocked user.
func (u *User) Deliver(env wire.Envelope) {
	if id, ok := env.Source.UserID(); ok {
		i := sort.Search(len(u.blocks), func(i int) bool { return u.blocks[i] >= id })
		if i < len(u.blocks) && u.blocks[i] == id {
			return
		}
	}
	u.sock.Enqueue(env.Bytes)
}

// DeliverMsg encodes msg directly into the outbound buffer, regardless
// of origin. Used for server-originated messages to this user only.
func (u *User) DeliverMsg(msg wire.Msg) {
	b, err := wire.Encode(msg)
	if err != nil {
		u.errs = append(u.errs, err)
		return
	}
	u.sock.Enqueue(b)
}

// Nudge attempts one non-blocking write of the outbound buffer. Any
// error is recorded in the accumulator, not returned.
func (u *User) Nudge() {
	if u.sock.SendBufferSize() == 0 {
		return
	}
	if _, err := u.sock.Blow(); err != nil {
		u.errs = append(u.errs, err)
	}
}

// TryGet sucks the socket and attempts to decode one message. On
// success, last_data_time is updated and, if the message counts as
// noisy, the byte quota is incremented by the bytes consumed decoding
// it. Socket errors accumulate rather than propagate.
func (u *User) TryGet() wire.Msg {
	if _, err := u.sock.Suck(); err != nil {
		u.errs = append(u.errs, err)
		return nil
	}

	nBuff := u.sock.RecvBufferSize()
	if nBuff == 0 {
		return nil
	}

	msg, found, err := u.sock.TryGet()
	if err != nil {
		u.errs = append(u.errs, err)
		return nil
	}
	if !found {
		return nil
	}

	u.lastDataTime = time.Now()
	if msg.Counts() {
		u.quotaBytes += nBuff - u.sock.RecvBufferSize()
	}
	return msg
}
