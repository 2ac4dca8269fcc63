package room

import (
	"testing"

	"github.com/d2718/grel/internal/wire"
)

func TestNewRoomSetsCreatorAsOp(t *testing.T) {
	r := NewRoom(3, "Gaming", 42)
	if r.Op() != 42 {
		t.Errorf("Op() = %d, want 42", r.Op())
	}
	if r.Idstr() != "gaming" {
		t.Errorf("Idstr() = %q, want %q", r.Idstr(), "gaming")
	}
}

func TestJoinLeaveHasMember(t *testing.T) {
	r := NewRoom(1, "Gaming", 1)
	r.Join(1)
	r.Join(2)
	if !r.HasMember(2) {
		t.Fatal("HasMember(2) = false after Join(2)")
	}
	r.Leave(1)
	if r.HasMember(1) {
		t.Error("HasMember(1) = true after Leave(1)")
	}
	if !r.HasMember(2) {
		t.Error("Leave(1) should not have removed member 2")
	}
}

// Invariant: bans and invites stay disjoint.
func TestBanAndInviteStayDisjoint(t *testing.T) {
	r := NewRoom(1, "Gaming", 1)
	r.Invite(9)
	if !r.IsInvited(9) {
		t.Fatal("IsInvited(9) should be true after Invite(9)")
	}
	r.Ban(9)
	if r.IsInvited(9) {
		t.Error("Ban should remove the id from invites")
	}
	if !r.IsBanned(9) {
		t.Error("IsBanned(9) should be true after Ban(9)")
	}

	r.Invite(9)
	if r.IsBanned(9) {
		t.Error("Invite should remove the id from bans")
	}
	if !r.IsInvited(9) {
		t.Error("IsInvited(9) should be true after re-Invite")
	}
}

func TestBanIsIdempotent(t *testing.T) {
	r := NewRoom(1, "Gaming", 1)
	r.Ban(5)
	r.Ban(5)
	if len(r.bans) != 1 {
		t.Errorf("bans = %v, want exactly one entry", r.bans)
	}
}

func TestDeliverRoutesToNamedUserWhenPresent(t *testing.T) {
	r := NewRoom(1, "Gaming", 1)
	a, aPeer := newTestUser(t, 1, "alice")
	b, bPeer := newTestUser(t, 2, "bob")
	r.Join(1)
	r.Join(2)
	users := map[uint64]*User{1: a, 2: b}

	env, err := envelope(fromServer(), toUser(2), wire.Info("just for bob"))
	if err != nil {
		t.Fatal(err)
	}
	r.Deliver(env, users)

	expectDelivered(t, b, bPeer)
	expectNoDelivery(t, a, aPeer)
}

func TestDeliverFansOutToAllMembersWhenDestIsRoom(t *testing.T) {
	r := NewRoom(1, "Gaming", 1)
	a, aPeer := newTestUser(t, 1, "alice")
	b, bPeer := newTestUser(t, 2, "bob")
	r.Join(1)
	r.Join(2)
	users := map[uint64]*User{1: a, 2: b}

	env, err := envelope(fromServer(), toRoom(1), wire.Info("room wide"))
	if err != nil {
		t.Fatal(err)
	}
	r.Deliver(env, users)

	expectDelivered(t, a, aPeer)
	expectDelivered(t, b, bPeer)
}

func TestDeliverInboxDrainsOnce(t *testing.T) {
	r := NewRoom(1, "Gaming", 1)
	a, aPeer := newTestUser(t, 1, "alice")
	r.Join(1)
	users := map[uint64]*User{1: a}

	env, err := envelope(fromServer(), toRoom(1), wire.Info("queued"))
	if err != nil {
		t.Fatal(err)
	}
	r.Enqueue(env)
	if len(r.inbox) != 1 {
		t.Fatalf("inbox = %v, want one entry", r.inbox)
	}
	r.DeliverInbox(users)
	if len(r.inbox) != 0 {
		t.Error("DeliverInbox should drain the inbox")
	}
	expectDelivered(t, a, aPeer)
}
