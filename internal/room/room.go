package room

import (
	"sort"

	"github.com/d2718/grel/internal/identity"
	"github.com/d2718/grel/internal/wire"
)

// LobbyID is the reserved id of the Lobby room. No user ever has this
// id assigned, so an operator value of LobbyID unambiguously means "no
// operator."
const LobbyID uint64 = 0

// Room is a named chat channel: member list, operator, ban and invite
// lists, closed flag, and an outgoing envelope inbox.
type Room struct {
	id      uint64
	name    string
	idstr   string
	members []uint64
	op      uint64
	closed  bool
	bans    []uint64
	invites []uint64
	inbox   []wire.Envelope
}

// NewRoom creates a room with creatorID as its initial (and, at
// creation, only) operator. The Lobby is created with creatorID ==
// LobbyID, leaving it permanently operator-less.
func NewRoom(id uint64, name string, creatorID uint64) *Room {
	return &Room{
		id:    id,
		name:  name,
		idstr: identity.Normalize(name),
		op:    creatorID,
	}
}

func (r *Room) ID() uint64      { return r.id }
func (r *Room) Name() string    { return r.name }
func (r *Room) Idstr() string   { return r.idstr }
func (r *Room) Members() []uint64 { return r.members }
func (r *Room) Op() uint64      { return r.op }
func (r *Room) Closed() bool    { return r.closed }
func (r *Room) SetClosed(c bool) { r.closed = c }

func (r *Room) SetOp(uid uint64) { r.op = uid }

// Join appends uid to members. Does not check for duplicates; callers
// (the Join handler and new-user admission) are responsible for only
// calling this once per user.
func (r *Room) Join(uid uint64) { r.members = append(r.members, uid) }

// Leave filter-removes uid from members.
func (r *Room) Leave(uid uint64) {
	out := r.members[:0]
	for _, m := range r.members {
		if m != uid {
			out = append(out, m)
		}
	}
	r.members = out
}

// HasMember reports whether uid is currently a member.
func (r *Room) HasMember(uid uint64) bool {
	for _, m := range r.members {
		if m == uid {
			return true
		}
	}
	return false
}

func sortedContains(set []uint64, id uint64) (int, bool) {
	i := sort.Search(len(set), func(i int) bool { return set[i] >= id })
	return i, i < len(set) && set[i] == id
}

func sortedInsert(set []uint64, id uint64) []uint64 {
	i, found := sortedContains(set, id)
	if found {
		return set
	}
	set = append(set, 0)
	copy(set[i+1:], set[i:])
	set[i] = id
	return set
}

func sortedRemove(set []uint64, id uint64) []uint64 {
	i, found := sortedContains(set, id)
	if !found {
		return set
	}
	return append(set[:i], set[i+1:]...)
}

// IsBanned reports whether uid is in the ban set.
func (r *Room) IsBanned(uid uint64) bool {
	_, found := sortedContains(r.bans, uid)
	return found
}

// IsInvited reports whether uid is in the invite set.
func (r *Room) IsInvited(uid uint64) bool {
	_, found := sortedContains(r.invites, uid)
	return found
}

// Ban removes uid from invites and adds it to bans, preserving the
// invariant that the two sets stay disjoint.
func (r *Room) Ban(uid uint64) {
	r.invites = sortedRemove(r.invites, uid)
	r.bans = sortedInsert(r.bans, uid)
}

// Invite removes uid from bans and adds it to invites.
func (r *Room) Invite(uid uint64) {
	r.bans = sortedRemove(r.bans, uid)
	r.invites = sortedInsert(r.invites, uid)
}

// Enqueue appends env to the inbox, to be delivered next time this
// room is processed.
func (r *Room) Enqueue(env wire.Envelope) { r.inbox = append(r.inbox, env) }

// Deliver routes one envelope: to the named user if destination is a
// User endpoint and present, otherwise to every current member.
// Per-recipient blocking is handled inside User.Deliver.
func (r *Room) Deliver(env wire.Envelope, users map[uint64]*User) {
	if uid, ok := env.Dest.UserID(); ok {
		if u, present := users[uid]; present {
			u.Deliver(env)
		}
		return
	}
	for _, uid := range r.members {
		if u, present := users[uid]; present {
			u.Deliver(env)
		}
	}
}

// DeliverInbox drains the inbox, delivering each envelope as Deliver
// would.
func (r *Room) DeliverInbox(users map[uint64]*User) {
	inbox := r.inbox
	r.inbox = nil
	for _, env := range inbox {
		r.Deliver(env, users)
	}
}
