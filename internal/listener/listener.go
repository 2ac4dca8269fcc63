// Package listener implements the Listener task: a dedicated goroutine
// that accepts TCP connections, performs the initial Name handshake,
// and hands fully-constructed Users to the Room Processor across a
// single-producer-single-consumer channel.
package listener

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d2718/grel/internal/frame"
	"github.com/d2718/grel/internal/room"
	"github.com/d2718/grel/internal/wire"
)

// firstUserID is the lowest id ever assigned to an accepted user; room
// 0 is permanently reserved for the Lobby, and ids below 100 are kept
// free of user collisions entirely.
const firstUserID uint64 = 100

// negotiatePollTick is how often the handshake busy-waits between
// non-blocking read attempts while waiting for the initial Name
// message. This is independent of BlockTimeout, the overall deadline
// for the handshake to complete.
const negotiatePollTick = 20 * time.Millisecond

// Config holds the Listener task's tunables.
type Config struct {
	Address      string
	BlockTimeout time.Duration // how long the Name handshake may take
	AcceptPerSec int           // accept-rate ceiling; 0 disables throttling
}

// Listener accepts connections on Cfg.Address and, for each one that
// completes the initial handshake, sends a *room.User on Out. Run
// returns only if binding fails; once bound it keeps accepting
// indefinitely.
type Listener struct {
	Cfg Config
	Out chan<- *room.User
	Log *zap.Logger

	nextUserID uint64
}

// New builds a Listener. The caller owns Out and should close it (or
// simply stop reading) once the server is shutting down.
func New(cfg Config, out chan<- *room.User, log *zap.Logger) *Listener {
	return &Listener{Cfg: cfg, Out: out, Log: log, nextUserID: firstUserID}
}

// Run binds Cfg.Address and accepts connections. Accept errors are
// logged at Debug and the loop continues, so after a successful bind Run
// does not return. Intended to run on its own goroutine; the main tick
// loop never calls this directly.
func (l *Listener) Run() error {
	ln, err := net.Listen("tcp", l.Cfg.Address)
	if err != nil {
		return errors.Wrapf(err, "listener: binding %s", l.Cfg.Address)
	}
	defer ln.Close()

	var limiter *rate.Limiter
	if l.Cfg.AcceptPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(l.Cfg.AcceptPerSec), l.Cfg.AcceptPerSec)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			l.Log.Debug("accept error", zap.Error(err))
			continue
		}

		if limiter != nil && !limiter.Allow() {
			l.Log.Debug("accept rate exceeded, dropping connection", zap.String("addr", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		connID := uuid.NewString()
		log := l.Log.With(zap.String("conn_id", connID), zap.String("addr", conn.RemoteAddr().String()))
		log.Debug("accepted connection")

		l.handle(conn, log)
	}
}

func (l *Listener) handle(conn net.Conn, log *zap.Logger) {
	fr, err := frame.New(conn)
	if err != nil {
		log.Debug("error wrapping connection in a Frame", zap.Error(err))
		conn.Close()
		return
	}

	newName, err := l.negotiate(fr)
	if err != nil {
		log.Debug("initial negotiation failed", zap.Error(err))
		return
	}

	u := room.NewUser(fr, l.nextUserID)
	u.SetName(newName)
	l.nextUserID++

	log.Debug("handing off new user", zap.Uint64("user_id", u.ID()), zap.String("name", u.Name()))
	l.Out <- u
}

// negotiate blockingly waits for exactly one Name message. Any protocol
// violation (wrong message type, read error, timeout) sends a Logout
// and closes the connection without incrementing the id counter.
func (l *Listener) negotiate(fr *frame.Frame) (string, error) {
	msg, err := fr.BlockingGetDeadline(negotiatePollTick, l.Cfg.BlockTimeout)
	if err != nil {
		sendLogout(fr, "Error reading initial \"Name\" message.")
		return "", errors.Wrap(err, "negotiate")
	}
	name, ok := msg.(wire.Name)
	if !ok {
		sendLogout(fr, "Protocol error: initial message should be of type \"Name\".")
		return "", errors.Errorf("negotiate: bad initial message %T", msg)
	}
	return string(name), nil
}

func sendLogout(fr *frame.Frame, message string) {
	b, err := wire.Encode(wire.Logout(message))
	if err != nil {
		_ = fr.Shutdown()
		return
	}
	_ = fr.BlockingSend(b, time.Millisecond)
	_ = fr.Shutdown()
}
