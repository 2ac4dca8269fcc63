package room

import (
	"net"
	"testing"
	"time"

	"github.com/d2718/grel/internal/frame"
	"github.com/d2718/grel/internal/wire"
)

// newTestUser builds a User backed by one end of an in-memory pipe,
// returning the User and a Frame wrapping the other end so a test can
// read back whatever gets Nudged out to it.
func newTestUser(t *testing.T, id uint64, name string) (*User, *frame.Frame) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	fa, err := frame.New(a)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	fb, err := frame.New(b)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	u := NewUser(fa, id)
	u.SetName(name)
	return u, fb
}

func testHandlerConfig() HandlerConfig {
	return HandlerConfig{MaxUserNameLength: 32, MaxRoomNameLength: 32, LobbyName: "Lobby"}
}

func addUser(t *testing.T, s *State, id uint64, name string) (*User, *frame.Frame) {
	t.Helper()
	u, peer := newTestUser(t, id, name)
	s.UsersByID[id] = u
	s.UsersByName[u.Idstr()] = id
	return u, peer
}

// expectDelivered busy-nudges u's socket until peer reads one decoded
// message off it, or fails the test after one second.
func expectDelivered(t *testing.T, u *User, peer *frame.Frame) wire.Msg {
	t.Helper()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			u.Nudge()
			time.Sleep(time.Millisecond)
		}
	}()
	msg, err := peer.BlockingGetDeadline(time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("expected a message to be delivered: %v", err)
	}
	return msg
}

// expectNoDelivery nudges u's socket for a short while and fails the
// test if peer manages to decode anything off it.
func expectNoDelivery(t *testing.T, u *User, peer *frame.Frame) {
	t.Helper()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			u.Nudge()
			time.Sleep(time.Millisecond)
		}
	}()
	if _, err := peer.BlockingGetDeadline(time.Millisecond, 40*time.Millisecond); err == nil {
		t.Fatal("expected no message to be delivered, but one arrived")
	}
}
