package room

import (
	"testing"

	"github.com/d2718/grel/internal/wire"
)

func TestNewUserGetsPlaceholderNameAndIdstr(t *testing.T) {
	u, _ := newTestUser(t, 7, "user7")
	if u.ID() != 7 {
		t.Errorf("ID() = %d, want 7", u.ID())
	}
	u2 := NewUser(u.sock, 42)
	if u2.Name() != "user42" {
		t.Errorf("Name() = %q, want %q", u2.Name(), "user42")
	}
	if u2.Idstr() != "user42" {
		t.Errorf("Idstr() = %q, want %q", u2.Idstr(), "user42")
	}
}

func TestSetNameRecomputesIdstr(t *testing.T) {
	u, _ := newTestUser(t, 1, "placeholder")
	u.SetName("ALICE  ")
	if u.Name() != "ALICE  " {
		t.Errorf("Name() = %q, want %q", u.Name(), "ALICE  ")
	}
	if u.Idstr() != "alice" {
		t.Errorf("Idstr() = %q, want %q", u.Idstr(), "alice")
	}
}

func TestDrainByteQuotaSaturates(t *testing.T) {
	u, _ := newTestUser(t, 1, "alice")
	u.quotaBytes = 5
	u.DrainByteQuota(100)
	if u.ByteQuota() != 0 {
		t.Errorf("ByteQuota() = %d, want 0 (saturating subtraction)", u.ByteQuota())
	}
}

// Invariant 5: Block(a) then Unblock(a) leaves the block list unchanged.
func TestBlockThenUnblockRestoresBlockList(t *testing.T) {
	u, _ := newTestUser(t, 1, "alice")
	before := append([]uint64(nil), u.blocks...)

	if !u.BlockID(99) {
		t.Fatal("BlockID on a fresh id should report a change")
	}
	if !u.UnblockID(99) {
		t.Fatal("UnblockID of a just-blocked id should report a change")
	}
	if len(u.blocks) != len(before) {
		t.Errorf("block list = %v, want %v", u.blocks, before)
	}
}

func TestBlockIDIsIdempotent(t *testing.T) {
	u, _ := newTestUser(t, 1, "alice")
	if !u.BlockID(5) {
		t.Fatal("first BlockID(5) should report a change")
	}
	if u.BlockID(5) {
		t.Error("second BlockID(5) should report no change")
	}
	if len(u.blocks) != 1 {
		t.Errorf("blocks = %v, want exactly one entry", u.blocks)
	}
}

func TestUnblockIDOfAbsentIDReportsNoChange(t *testing.T) {
	u, _ := newTestUser(t, 1, "alice")
	if u.UnblockID(123) {
		t.Error("UnblockID of an id never blocked should report no change")
	}
}

func TestDeliverFiltersBlockedSource(t *testing.T) {
	u, peer := newTestUser(t, 1, "alice")
	u.BlockID(99)

	env, err := wire.NewEnvelope(wire.EndpointUser(99), wire.EndpointUser(1), wire.Priv{Who: "bob", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	u.Deliver(env)
	expectNoDelivery(t, u, peer)

	env2, err := wire.NewEnvelope(wire.EndpointUser(100), wire.EndpointUser(1), wire.Priv{Who: "carol", Text: "yo"})
	if err != nil {
		t.Fatal(err)
	}
	u.Deliver(env2)
	got := expectDelivered(t, u, peer)
	if p, ok := got.(wire.Priv); !ok || p.Who != "carol" {
		t.Errorf("got %#v, want a Priv from carol", got)
	}
}

func TestTryGetReturnsNilWhenNothingSent(t *testing.T) {
	u, _ := newTestUser(t, 1, "alice")
	if msg := u.TryGet(); msg != nil {
		t.Errorf("TryGet() = %#v, want nil", msg)
	}
}

func TestErrorsReportsAccumulatedErrors(t *testing.T) {
	u, _ := newTestUser(t, 1, "alice")
	if u.HasErrors() {
		t.Fatal("fresh User should have no errors")
	}
	u.errs = append(u.errs, errTest("boom"))
	if !u.HasErrors() {
		t.Error("HasErrors() should report true after an accumulated error")
	}
	if u.Errors() == nil {
		t.Error("Errors() should return a non-nil wrapped error")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
