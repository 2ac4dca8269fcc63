package room

import "testing"

func TestNewStatePrePopulatesLobby(t *testing.T) {
	s := NewState("Lobby")
	r, ok := s.RoomsByID[LobbyID]
	if !ok {
		t.Fatal("NewState should pre-populate the Lobby")
	}
	if r.Name() != "Lobby" {
		t.Errorf("lobby name = %q, want %q", r.Name(), "Lobby")
	}
	if rid, ok := s.RoomsByName["lobby"]; !ok || rid != LobbyID {
		t.Error("rooms_by_name should map the lobby's idstr to LobbyID")
	}
}

func TestFirstFreeRoomIDSkipsInUseIDs(t *testing.T) {
	s := NewState("Lobby")
	s.RoomsByID[1] = NewRoom(1, "a", 1)
	s.RoomsByID[2] = NewRoom(2, "b", 1)
	if got := s.FirstFreeRoomID(); got != 3 {
		t.Errorf("FirstFreeRoomID() = %d, want 3", got)
	}
}

func TestFirstFreeRoomIDFillsAGap(t *testing.T) {
	s := NewState("Lobby")
	s.RoomsByID[2] = NewRoom(2, "b", 1)
	if got := s.FirstFreeRoomID(); got != 1 {
		t.Errorf("FirstFreeRoomID() = %d, want 1", got)
	}
}

func TestContextUserAndRoomErrorsOnMissingID(t *testing.T) {
	s := NewState("Lobby")
	ctx := &Context{RoomID: LobbyID, UserID: 99, State: s, Cfg: testHandlerConfig()}
	if _, err := ctx.User(); err == nil {
		t.Error("User() should error when UserID isn't in UsersByID")
	}

	ctx2 := &Context{RoomID: 77, UserID: 0, State: s, Cfg: testHandlerConfig()}
	if _, err := ctx2.Room(); err == nil {
		t.Error("Room() should error when RoomID isn't in RoomsByID")
	}
}

func TestFindUserAndRoomByIdstr(t *testing.T) {
	s := NewState("Lobby")
	addUser(t, s, 1, "alice")
	ctx := &Context{RoomID: LobbyID, UserID: 1, State: s, Cfg: testHandlerConfig()}

	if uid, ok := ctx.FindUserByIdstr("alice"); !ok || uid != 1 {
		t.Errorf("FindUserByIdstr(\"alice\") = (%d, %v), want (1, true)", uid, ok)
	}
	if rid, ok := ctx.FindRoomByIdstr("lobby"); !ok || rid != LobbyID {
		t.Errorf("FindRoomByIdstr(\"lobby\") = (%d, %v), want (%d, true)", rid, ok, LobbyID)
	}
	if _, ok := ctx.FindUserByIdstr("nobody"); ok {
		t.Error("FindUserByIdstr should report false for an unknown name")
	}
}
