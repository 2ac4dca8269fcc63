// Package status exposes a small read-only HTTP endpoint reporting the
// server's current population, separate from the game protocol
// entirely. The tick loop is the sole owner of room.State; this package
// never touches it directly. Instead the tick loop publishes an
// immutable Snapshot once per tick, and the HTTP handlers only ever
// read the most recently published one, so there is nothing here for
// the race detector to find.
package status

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RoomCount describes one room's population for the /status response.
type RoomCount struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Snapshot is the state the tick loop publishes once per tick.
type Snapshot struct {
	StartedAt time.Time
	Users     int
	Rooms     []RoomCount
}

// Publisher holds the most recently published Snapshot. The zero value
// reports zero users and no rooms until the first Publish call.
type Publisher struct {
	v atomic.Pointer[Snapshot]
}

// NewPublisher builds a Publisher with its started-at time fixed at t.
func NewPublisher(t time.Time) *Publisher {
	p := &Publisher{}
	p.v.Store(&Snapshot{StartedAt: t})
	return p
}

// Publish stores s as the snapshot future reads will see. Safe to call
// from the tick loop goroutine once per tick; s.StartedAt is carried
// forward automatically if left zero.
func (p *Publisher) Publish(s Snapshot) {
	if s.StartedAt.IsZero() {
		if prev := p.v.Load(); prev != nil {
			s.StartedAt = prev.StartedAt
		}
	}
	p.v.Store(&s)
}

// Load returns the most recently published Snapshot.
func (p *Publisher) Load() Snapshot {
	if s := p.v.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Server is the Echo application serving the status endpoint.
type Server struct {
	echo *echo.Echo
	pub  *Publisher
	log  *zap.Logger
}

// New constructs a Server reading from pub.
func New(pub *Publisher, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, pub: pub, log: log}
	e.GET("/health", s.handleHealth)
	e.GET("/status", s.handleStatus)
	return s
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

type statusResponse struct {
	StartedAt string      `json:"started_at"`
	Users     int         `json:"users"`
	Rooms     []RoomCount `json:"rooms"`
}

func (s *Server) handleStatus(c echo.Context) error {
	snap := s.pub.Load()
	return c.JSON(http.StatusOK, statusResponse{
		StartedAt: humanize.Time(snap.StartedAt),
		Users:     snap.Users,
		Rooms:     snap.Rooms,
	})
}

// Run starts the status server on addr and blocks until ctx is
// cancelled or the listener fails. An empty addr disables the status
// server entirely: Run returns nil immediately.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutCtx); err != nil {
			s.log.Warn("status server shutdown error", zap.Error(err))
		}
		return nil
	}
}
