package room

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/d2718/grel/internal/identity"
	"github.com/d2718/grel/internal/status"
	"github.com/d2718/grel/internal/wire"
)

// Config holds the subset of server configuration the Room Processor
// consults directly every tick.
type Config struct {
	MinTick           time.Duration
	ByteLimit         int
	BytesPerTick      int
	BlackoutToPing    time.Duration
	BlackoutToKick    time.Duration
	MaxUserNameLength int
	MaxRoomNameLength int
	LobbyName         string
	Welcome           string
}

// Processor is the single-threaded tick loop: for each room it reads
// one pending message per member, dispatches it, delivers the
// resulting envelopes, handles idle timeouts, promotes replacement
// operators, reaps empty rooms, and admits newly accepted users.
type Processor struct {
	State    *State
	Cfg      Config
	Log      *zap.Logger
	Incoming <-chan *User

	// Status, if set, receives one population snapshot per completed
	// Tick for the status HTTP endpoint to read. Nil disables
	// publishing entirely.
	Status *status.Publisher

	nextLocalUserID uint64 // not read; generateFreeName counts up from the new user's own id
}

// NewProcessor builds a Processor around an already-initialized State
// (with the Lobby present) and the channel the listener hands newly
// accepted Users across on.
func NewProcessor(state *State, cfg Config, log *zap.Logger, incoming <-chan *User) *Processor {
	return &Processor{State: state, Cfg: cfg, Log: log, Incoming: incoming}
}

func (p *Processor) handlerConfig() HandlerConfig {
	return HandlerConfig{
		MaxUserNameLength: p.Cfg.MaxUserNameLength,
		MaxRoomNameLength: p.Cfg.MaxRoomNameLength,
		LobbyName:         p.Cfg.LobbyName,
	}
}

// Tick runs one full iteration: every room is processed in the order
// given by a snapshot of room ids at the start of the tick, empty
// non-Lobby rooms are reaped, and newly accepted users are admitted.
// It sleeps out the remainder of MinTick before returning, matching
// the reference main loop's end-of-iteration pacing.
func (p *Processor) Tick(now time.Time) {
	start := now

	roomIDs := make([]uint64, 0, len(p.State.RoomsByID))
	for rid := range p.State.RoomsByID {
		roomIDs = append(roomIDs, rid)
	}

	for _, rid := range roomIDs {
		if err := p.processRoom(rid, now); err != nil {
			p.Log.Warn("processRoom failed", zap.Uint64("room_id", rid), zap.Error(err))
			continue
		}
		if rid != LobbyID {
			if r, ok := p.State.RoomsByID[rid]; ok && len(r.Members()) == 0 {
				delete(p.State.RoomsByID, rid)
				delete(p.State.RoomsByName, r.Idstr())
			}
		}
	}

	p.admitNewUsers()
	p.publishStatus()

	elapsed := time.Since(start)
	if elapsed < p.Cfg.MinTick {
		time.Sleep(p.Cfg.MinTick - elapsed)
	}
}

// processRoom implements Room Processor phases A through E for one
// room.
func (p *Processor) processRoom(rid uint64, now time.Time) error {
	r, ok := p.State.RoomsByID[rid]
	if !ok {
		return fmt.Errorf("room %d doesn't exist", rid)
	}
	memberSnapshot := append([]uint64(nil), r.Members()...)

	ctx := &Context{RoomID: rid, State: p.State, Cfg: p.handlerConfig()}

	var pending []wire.Envelope
	var logouts []uint64

	// Phase A + B: input intake and dispatch.
	for _, uid := range memberSnapshot {
		mu, ok := p.State.UsersByID[uid]
		if !ok {
			p.Log.Debug("processRoom: member not in users_by_id", zap.Uint64("room_id", rid), zap.Uint64("user_id", uid))
			continue
		}

		overQuota := mu.ByteQuota() > p.Cfg.ByteLimit
		mu.DrainByteQuota(p.Cfg.BytesPerTick)
		if overQuota && mu.ByteQuota() <= p.Cfg.ByteLimit {
			mu.DeliverMsg(wire.Err("You may send messages again."))
		}

		msg := mu.TryGet()
		if msg == nil {
			last := mu.LastDataTime()
			switch {
			case now.Sub(last) > p.Cfg.BlackoutToKick:
				logouts = append(logouts, uid)
			case now.Sub(last) > p.Cfg.BlackoutToPing:
				mu.DeliverMsg(wire.Ping{})
			}
			continue
		}

		if overQuota {
			continue
		}
		if mu.ByteQuota() > p.Cfg.ByteLimit {
			mu.DeliverMsg(wire.Err("You have exceeded your data quota and your messages will be ignored for a short time."))
		}

		ctx.UserID = uid
		envs, err := dispatch(ctx, msg)
		if err != nil {
			p.Log.Warn("handler error", zap.Uint64("room_id", rid), zap.Uint64("user_id", uid), zap.Error(err))
			continue
		}
		pending = append(pending, envs...)
	}

	// Phase C: idle logouts.
	for _, uid := range logouts {
		mu, ok := p.State.UsersByID[uid]
		if !ok {
			p.Log.Warn("processRoom: logout target missing from users_by_id", zap.Uint64("room_id", rid), zap.Uint64("user_id", uid))
			continue
		}
		name := mu.Name()
		mu.Logout("Too long since the server received data from the client.")
		delete(p.State.UsersByID, uid)
		delete(p.State.UsersByName, mu.Idstr())
		r.Leave(uid)

		env, err := envelope(fromServer(), toRoom(rid), wire.Misc{
			What: "leave",
			Data: []string{name, "[ disconnected by server ]"},
			Alt:  fmt.Sprintf("%s has been disconnected from the server.", name),
		})
		if err != nil {
			p.Log.Warn("failed to encode idle-kick envelope", zap.Error(err))
			continue
		}
		pending = append(pending, env)
	}

	// Phase D: operator promotion.
	if rid != LobbyID {
		opID := r.Op()
		if !r.HasMember(opID) {
			if members := r.Members(); len(members) > 0 {
				newOp := members[0]
				if u, ok := p.State.UsersByID[newOp]; ok {
					r.SetOp(newOp)
					env, err := envelope(fromServer(), toRoom(rid), wire.Info(fmt.Sprintf("%s is now the Room operator.", u.Name())))
					if err == nil {
						pending = append(pending, env)
					}
				}
			}
		}
	}

	// Phase E: delivery.
	r.DeliverInbox(p.State.UsersByID)
	for _, env := range pending {
		r.Deliver(env, p.State.UsersByID)
	}
	for _, uid := range r.Members() {
		if u, ok := p.State.UsersByID[uid]; ok {
			u.Nudge()
		}
	}

	return nil
}

// dispatch routes a decoded message to its handler.
func dispatch(ctx *Context, msg wire.Msg) ([]wire.Envelope, error) {
	switch m := msg.(type) {
	case wire.Text:
		return HandleText(ctx, m.Lines)
	case wire.Priv:
		return HandlePriv(ctx, m.Who, m.Text)
	case wire.Name:
		return HandleName(ctx, string(m))
	case wire.Join:
		return HandleJoin(ctx, string(m))
	case wire.Block:
		return HandleBlock(ctx, string(m))
	case wire.Unblock:
		return HandleUnblock(ctx, string(m))
	case wire.Logout:
		return HandleLogout(ctx, string(m))
	case wire.Query:
		return HandleQuery(ctx, m.What, m.Arg)
	case wire.Op:
		return HandleOp(ctx, m)
	default:
		// Ping and any other variant require no response.
		return nil, nil
	}
}

// admitNewUsers non-blockingly drains the listener handoff channel,
// validates each new user's name, and places them in the Lobby.
func (p *Processor) admitNewUsers() {
	for {
		var u *User
		select {
		case v, ok := <-p.Incoming:
			if !ok {
				return
			}
			u = v
		default:
			return
		}

		u.DeliverMsg(wire.Info(p.Cfg.Welcome))

		var renameReason string
		switch {
		case u.Idstr() == "":
			renameReason = "Your name does not have enough non-whitespace characters."
		case len(u.Name()) > p.Cfg.MaxUserNameLength:
			renameReason = fmt.Sprintf("Your name cannot be longer than %d bytes.", p.Cfg.MaxUserNameLength)
		default:
			if existingUID, collides := p.State.UsersByName[u.Idstr()]; collides {
				existing := p.State.UsersByID[existingUID]
				existingName := "???"
				if existing != nil {
					existingName = existing.Name()
				}
				renameReason = fmt.Sprintf("Name %q exists.", existingName)
			}
		}

		if renameReason != "" {
			newName := p.generateFreeName(u.ID())
			u.DeliverMsg(wire.Err(renameReason))
			u.DeliverMsg(wire.Misc{
				What: "name",
				Data: []string{u.Name(), newName},
				Alt:  fmt.Sprintf("You are now known as %q.", newName),
			})
			u.SetName(newName)
		}

		env, err := envelope(fromServer(), toRoom(LobbyID), wire.Misc{
			What: "join",
			Data: []string{u.Name(), p.Cfg.LobbyName},
			Alt:  fmt.Sprintf("%s joins %s.", u.Name(), p.Cfg.LobbyName),
		})
		if err == nil {
			lobby := p.State.RoomsByID[LobbyID]
			lobby.Enqueue(env)
			lobby.Join(u.ID())
		}

		p.State.UsersByName[u.Idstr()] = u.ID()
		p.State.UsersByID[u.ID()] = u
	}
}

// publishStatus is a no-op when Status is nil, so tests and any caller
// that doesn't care about the HTTP endpoint pay nothing for it.
func (p *Processor) publishStatus() {
	if p.Status == nil {
		return
	}
	rooms := make([]status.RoomCount, 0, len(p.State.RoomsByID))
	for _, r := range p.State.RoomsByID {
		rooms = append(rooms, status.RoomCount{Name: r.Name(), Members: len(r.Members())})
	}
	p.Status.Publish(status.Snapshot{
		Users: len(p.State.UsersByID),
		Rooms: rooms,
	})
}

// generateFreeName produces "user<n>" for the lowest n >= initCount
// whose idstr doesn't collide with an existing user.
func (p *Processor) generateFreeName(initCount uint64) string {
	n := initCount
	for {
		candidate := defaultName(n)
		if _, collides := p.State.UsersByName[identity.Normalize(candidate)]; !collides {
			return candidate
		}
		n++
	}
}
