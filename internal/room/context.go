package room

import "github.com/pkg/errors"

// State is the process-wide tables the main loop owns exclusively:
// users and rooms indexed both by id and by normalized name.
type State struct {
	UsersByID   map[uint64]*User
	UsersByName map[string]uint64
	RoomsByID   map[uint64]*Room
	RoomsByName map[string]uint64
}

// NewState builds an empty State with the Lobby already present.
func NewState(lobbyName string) *State {
	s := &State{
		UsersByID:   make(map[uint64]*User),
		UsersByName: make(map[string]uint64),
		RoomsByID:   make(map[uint64]*Room),
		RoomsByName: make(map[string]uint64),
	}
	lobby := NewRoom(LobbyID, lobbyName, LobbyID)
	s.RoomsByID[LobbyID] = lobby
	s.RoomsByName[lobby.Idstr()] = LobbyID
	return s
}

// FirstFreeRoomID returns the lowest non-negative room id not currently
// in use.
func (s *State) FirstFreeRoomID() uint64 {
	var n uint64
	for {
		if _, ok := s.RoomsByID[n]; !ok {
			return n
		}
		n++
	}
}

// Context is passed to every message handler: it names the room and
// user currently being dispatched, and carries mutable access to all
// four process-wide tables. Handlers see state as of the start of
// their own dispatch; their mutations are visible to later handlers
// within the same tick, matching the reference implementation's
// single-threaded, sequential dispatch order.
type Context struct {
	RoomID uint64
	UserID uint64
	State  *State
	Cfg    HandlerConfig
}

// HandlerConfig is the subset of server configuration handlers consult
// directly (name-length limits; everything else — quotas, timers — is
// enforced by the processor before dispatch).
type HandlerConfig struct {
	MaxUserNameLength int
	MaxRoomNameLength int
	LobbyName         string
}

// User returns the User the context is currently dispatching for.
func (c *Context) User() (*User, error) {
	return c.userByID(c.UserID)
}

func (c *Context) userByID(uid uint64) (*User, error) {
	u, ok := c.State.UsersByID[uid]
	if !ok {
		return nil, errors.Errorf("context{room: %d, user: %d}: no User %d", c.RoomID, c.UserID, uid)
	}
	return u, nil
}

// Room returns the Room currently being processed.
func (c *Context) Room() (*Room, error) {
	return c.roomByID(c.RoomID)
}

func (c *Context) roomByID(rid uint64) (*Room, error) {
	r, ok := c.State.RoomsByID[rid]
	if !ok {
		return nil, errors.Errorf("context{room: %d, user: %d}: no Room %d", c.RoomID, c.UserID, rid)
	}
	return r, nil
}

// FindUserByIdstr looks up a normalized name in users_by_name.
func (c *Context) FindUserByIdstr(idstr string) (uint64, bool) {
	uid, ok := c.State.UsersByName[idstr]
	return uid, ok
}

// FindRoomByIdstr looks up a normalized name in rooms_by_name.
func (c *Context) FindRoomByIdstr(idstr string) (uint64, bool) {
	rid, ok := c.State.RoomsByName[idstr]
	return rid, ok
}
