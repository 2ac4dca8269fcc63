package room

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/d2718/grel/internal/identity"
	"github.com/d2718/grel/internal/wire"
)

func toUser(uid uint64) wire.Endpoint  { return wire.EndpointUser(uid) }
func toRoom(rid uint64) wire.Endpoint  { return wire.EndpointRoom(rid) }
func fromServer() wire.Endpoint        { return wire.EndpointServer() }

func envelope(from, to wire.Endpoint, msg wire.Msg) (wire.Envelope, error) {
	return wire.NewEnvelope(from, to, msg)
}

func oneEnvelope(from, to wire.Endpoint, msg wire.Msg) ([]wire.Envelope, error) {
	env, err := envelope(from, to, msg)
	if err != nil {
		return nil, err
	}
	return []wire.Envelope{env}, nil
}

func errToSender(ctx *Context, text string) ([]wire.Envelope, error) {
	return oneEnvelope(fromServer(), toUser(ctx.UserID), wire.Err(text))
}

func infoToSender(ctx *Context, text string) ([]wire.Envelope, error) {
	return oneEnvelope(fromServer(), toUser(ctx.UserID), wire.Info(text))
}

func matchString(prefix string, hash map[string]uint64) []string {
	var v []string
	for k := range hash {
		if strings.HasPrefix(k, prefix) {
			v = append(v, k)
		}
	}
	sort.Strings(v)
	return v
}

func appendCommaDelimited(base *strings.Builder, v []string) {
	for i, x := range v {
		if i > 0 {
			base.WriteString(", ")
		}
		base.WriteString(x)
	}
}

// HandleText implements the Text handler: produce one envelope routing
// the sender's lines to the current room.
func HandleText(ctx *Context, lines []string) ([]wire.Envelope, error) {
	u, err := ctx.User()
	if err != nil {
		return nil, err
	}
	return oneEnvelope(toUser(ctx.UserID), toRoom(ctx.RoomID), wire.Text{Who: u.Name(), Lines: lines})
}

// HandlePriv implements the Priv handler.
func HandlePriv(ctx *Context, who, text string) ([]wire.Envelope, error) {
	u, err := ctx.User()
	if err != nil {
		return nil, err
	}

	toTok := identity.Normalize(who)
	if toTok == "" {
		return errToSender(ctx, "The recipient name must have at least one non-whitespace character.")
	}

	tgtUID, ok := ctx.FindUserByIdstr(toTok)
	if !ok {
		return errToSender(ctx, fmt.Sprintf("There is no user whose name matches %q.", toTok))
	}
	tgtU, err := ctx.userByID(tgtUID)
	if err != nil {
		return nil, err
	}

	echoEnv, err := envelope(fromServer(), toUser(ctx.UserID), wire.Misc{
		What: "priv_echo",
		Data: []string{tgtU.Name(), text},
		Alt:  fmt.Sprintf("$ You @ %s: %s", tgtU.Name(), text),
	})
	if err != nil {
		return nil, err
	}
	toEnv, err := envelope(toUser(ctx.UserID), toUser(tgtUID), wire.Priv{Who: u.Name(), Text: text})
	if err != nil {
		return nil, err
	}
	return []wire.Envelope{echoEnv, toEnv}, nil
}

// HandleName implements the Name (rename) handler.
func HandleName(ctx *Context, candidate string) ([]wire.Envelope, error) {
	newIdstr := identity.Normalize(candidate)
	if newIdstr == "" {
		return errToSender(ctx, "Your name must have more non-whitespace characters.")
	}
	if len(candidate) > ctx.Cfg.MaxUserNameLength {
		return errToSender(ctx, fmt.Sprintf("Your name cannot be longer than %d bytes.", ctx.Cfg.MaxUserNameLength))
	}

	if ouid, collides := ctx.FindUserByIdstr(newIdstr); collides && ouid != ctx.UserID {
		ou, err := ctx.userByID(ouid)
		if err != nil {
			return nil, err
		}
		return errToSender(ctx, fmt.Sprintf("There is already a user named %q.", ou.Name()))
	}

	mu, err := ctx.User()
	if err != nil {
		return nil, err
	}
	oldName := mu.Name()
	oldIdstr := mu.Idstr()

	mu.SetName(candidate)

	env, err := envelope(fromServer(), toRoom(ctx.RoomID), wire.Misc{
		What: "name",
		Data: []string{oldName, candidate},
		Alt:  fmt.Sprintf("%s is now known as %s.", oldName, candidate),
	})
	if err != nil {
		return nil, err
	}

	delete(ctx.State.UsersByName, oldIdstr)
	ctx.State.UsersByName[mu.Idstr()] = ctx.UserID
	return []wire.Envelope{env}, nil
}

// HandleJoin implements the Join handler.
func HandleJoin(ctx *Context, roomName string) ([]wire.Envelope, error) {
	collapsed := identity.Normalize(roomName)
	if collapsed == "" {
		return errToSender(ctx, "A room name must have more non-whitespace characters.")
	}
	if len(roomName) > ctx.Cfg.MaxRoomNameLength {
		return errToSender(ctx, fmt.Sprintf("Room names cannot be longer than %d bytes.", ctx.Cfg.MaxRoomNameLength))
	}

	tgtRID, exists := ctx.FindRoomByIdstr(collapsed)
	if !exists {
		newID := ctx.State.FirstFreeRoomID()
		newRoom := NewRoom(newID, roomName, ctx.UserID)
		ctx.State.RoomsByName[collapsed] = newID
		ctx.State.RoomsByID[newID] = newRoom
		mu, err := ctx.User()
		if err != nil {
			return nil, err
		}
		mu.DeliverMsg(wire.Info(fmt.Sprintf("You create room %q.", roomName)))
		tgtRID = newID
	}

	uname, err := ctx.User()
	if err != nil {
		return nil, err
	}
	userName := uname.Name()
	uid, rid := ctx.UserID, ctx.RoomID

	targR, err := ctx.roomByID(tgtRID)
	if err != nil {
		return nil, err
	}
	if tgtRID == rid {
		return infoToSender(ctx, fmt.Sprintf("You are already in %q.", targR.Name()))
	}
	if targR.IsBanned(uid) {
		return infoToSender(ctx, fmt.Sprintf("You are banned from %q.", targR.Name()))
	}
	if targR.Closed() && !targR.IsInvited(uid) {
		return infoToSender(ctx, fmt.Sprintf("%q is closed.", targR.Name()))
	}

	targR.Join(uid)
	joinEnv, err := envelope(fromServer(), toRoom(tgtRID), wire.Misc{
		What: "join",
		Data: []string{userName, targR.Name()},
		Alt:  fmt.Sprintf("%s joins %s.", userName, targR.Name()),
	})
	if err != nil {
		return nil, err
	}
	targR.Enqueue(joinEnv)

	curR, err := ctx.roomByID(rid)
	if err != nil {
		return nil, err
	}
	leaveEnv, err := envelope(fromServer(), toRoom(rid), wire.Misc{
		What: "leave",
		Data: []string{userName, "[ moved to another room ]"},
		Alt:  fmt.Sprintf("%s moved to another room.", userName),
	})
	if err != nil {
		return nil, err
	}
	curR.Leave(uid)
	return []wire.Envelope{leaveEnv}, nil
}

// HandleBlock implements the Block handler.
func HandleBlock(ctx *Context, userName string) ([]wire.Envelope, error) {
	collapsed := identity.Normalize(userName)
	if collapsed == "" {
		return errToSender(ctx, "That cannot be anyone's user name.")
	}
	ouid, ok := ctx.FindUserByIdstr(collapsed)
	if !ok {
		return infoToSender(ctx, fmt.Sprintf("No users matching the pattern %q.", collapsed))
	}
	if ouid == ctx.UserID {
		return errToSender(ctx, "You shouldn't block yourself.")
	}
	ou, err := ctx.userByID(ouid)
	if err != nil {
		return nil, err
	}
	blockedName := ou.Name()

	mu, err := ctx.User()
	if err != nil {
		return nil, err
	}
	if mu.BlockID(ouid) {
		mu.DeliverMsg(wire.Info(fmt.Sprintf("You are now blocking %s.", blockedName)))
	} else {
		mu.DeliverMsg(wire.Err(fmt.Sprintf("You are already blocking %s.", blockedName)))
	}
	return nil, nil
}

// HandleUnblock implements the Unblock handler.
func HandleUnblock(ctx *Context, userName string) ([]wire.Envelope, error) {
	collapsed := identity.Normalize(userName)
	if collapsed == "" {
		return errToSender(ctx, "That cannot be anyone's user name.")
	}
	ouid, ok := ctx.FindUserByIdstr(collapsed)
	if !ok {
		return infoToSender(ctx, fmt.Sprintf("No users matching the pattern %q.", collapsed))
	}
	if ouid == ctx.UserID {
		return errToSender(ctx, "You couldn't block yourself; you can't unblock yourself.")
	}
	ou, err := ctx.userByID(ouid)
	if err != nil {
		return nil, err
	}
	blockedName := ou.Name()

	mu, err := ctx.User()
	if err != nil {
		return nil, err
	}
	if mu.UnblockID(ouid) {
		mu.DeliverMsg(wire.Info(fmt.Sprintf("You unblock %s.", blockedName)))
	} else {
		mu.DeliverMsg(wire.Err(fmt.Sprintf("You were not blocking %s.", blockedName)))
	}
	return nil, nil
}

// HandleLogout implements the Logout handler: leave the current room,
// remove the user from both tables, and emit a leave-Misc.
func HandleLogout(ctx *Context, salutation string) ([]wire.Envelope, error) {
	mr, err := ctx.roomByID(ctx.RoomID)
	if err != nil {
		return nil, err
	}
	mr.Leave(ctx.UserID)

	mu, ok := ctx.State.UsersByID[ctx.UserID]
	if !ok {
		return nil, errors.Errorf("do_logout(room %d, user %d): no User %d", ctx.RoomID, ctx.UserID, ctx.UserID)
	}
	delete(ctx.State.UsersByID, ctx.UserID)
	delete(ctx.State.UsersByName, mu.Idstr())
	name := mu.Name()
	mu.Logout("You have logged out.")

	env, err := envelope(fromServer(), toRoom(ctx.RoomID), wire.Misc{
		What: "leave",
		Data: []string{name, salutation},
		Alt:  fmt.Sprintf("%s leaves: %s", name, salutation),
	})
	if err != nil {
		return nil, err
	}
	return []wire.Envelope{env}, nil
}

// HandleQuery implements the Query handler's four subcommands.
func HandleQuery(ctx *Context, what, arg string) ([]wire.Envelope, error) {
	switch what {
	case "addr":
		mu, err := ctx.User()
		if err != nil {
			return nil, err
		}
		addr := mu.Addr()
		alt := fmt.Sprintf("Your public address is %s.", addr)
		if addr == "???" {
			alt = "Your public address cannot be determined."
		}
		mu.DeliverMsg(wire.Misc{What: "addr", Data: []string{addr}, Alt: alt})
		return nil, nil

	case "roster":
		r, err := ctx.Room()
		if err != nil {
			return nil, err
		}
		opID := r.Op()
		members := r.Members()
		names := make([]string, 0, len(members))
		for _, uid := range members {
			if uid == opID {
				continue
			}
			if u, ok := ctx.State.UsersByID[uid]; ok {
				names = append(names, u.Name())
			}
		}
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}

		var alt strings.Builder
		if opID == LobbyID {
			fmt.Fprintf(&alt, "%s roster: ", r.Name())
			appendCommaDelimited(&alt, names)
		} else {
			opName := "[ ??? ]"
			if u, ok := ctx.State.UsersByID[opID]; ok {
				opName = u.Name()
			}
			fmt.Fprintf(&alt, "%s roster: %s (operator) ", r.Name(), opName)
			appendCommaDelimited(&alt, names)
			names = append([]string{opName}, names...)
		}

		return oneEnvelope(fromServer(), toUser(ctx.UserID), wire.Misc{What: "roster", Data: names, Alt: alt.String()})

	case "who":
		collapsed := identity.Normalize(arg)
		matches := matchString(collapsed, ctx.State.UsersByName)
		if len(matches) == 0 {
			return infoToSender(ctx, fmt.Sprintf("No users matching the pattern %q.", collapsed))
		}
		var alt strings.Builder
		alt.WriteString("Matching names: ")
		appendCommaDelimited(&alt, matches)
		return oneEnvelope(fromServer(), toUser(ctx.UserID), wire.Misc{What: "who", Data: matches, Alt: alt.String()})

	case "rooms":
		collapsed := identity.Normalize(arg)
		matches := matchString(collapsed, ctx.State.RoomsByName)
		if len(matches) == 0 {
			return infoToSender(ctx, fmt.Sprintf("No Rooms matching the pattern %q.", collapsed))
		}
		var alt strings.Builder
		alt.WriteString("Matching Rooms: ")
		appendCommaDelimited(&alt, matches)
		return oneEnvelope(fromServer(), toUser(ctx.UserID), wire.Misc{What: "rooms", Data: matches, Alt: alt.String()})

	default:
		return errToSender(ctx, fmt.Sprintf("Unknown \"Query\" type: %q.", what))
	}
}

// HandleOp implements the Op handler's five subcommands.
func HandleOp(ctx *Context, op wire.Op) ([]wire.Envelope, error) {
	r, err := ctx.Room()
	if err != nil {
		return nil, err
	}
	if r.Op() != ctx.UserID {
		return errToSender(ctx, "You are not the operator of this Room.")
	}

	uid, rid := ctx.UserID, ctx.RoomID

	switch op.Kind {
	case wire.OpOpen:
		curR, err := ctx.roomByID(rid)
		if err != nil {
			return nil, err
		}
		if !curR.Closed() {
			return infoToSender(ctx, fmt.Sprintf("%s is already open.", curR.Name()))
		}
		curR.SetClosed(false)
		opName, err := opUserName(ctx)
		if err != nil {
			return nil, err
		}
		return oneEnvelope(fromServer(), toRoom(rid), wire.Info(fmt.Sprintf("%s has opened %s.", opName, curR.Name())))

	case wire.OpClose:
		curR, err := ctx.roomByID(rid)
		if err != nil {
			return nil, err
		}
		if curR.Closed() {
			return infoToSender(ctx, fmt.Sprintf("%s is already closed.", curR.Name()))
		}
		curR.SetClosed(true)
		opName, err := opUserName(ctx)
		if err != nil {
			return nil, err
		}
		return oneEnvelope(fromServer(), toRoom(rid), wire.Info(fmt.Sprintf("%s has closed %s.", opName, curR.Name())))

	case wire.OpGive:
		return handleOpGive(ctx, op.Name)

	case wire.OpInvite:
		return handleOpInvite(ctx, op.Name)

	case wire.OpKick:
		return handleOpKick(ctx, op.Name)

	default:
		return nil, errors.Errorf("do_op(room %d, user %d): unknown op kind %v", rid, uid, op.Kind)
	}
}

func opUserName(ctx *Context) (string, error) {
	u, err := ctx.User()
	if err != nil {
		return "", err
	}
	return u.Name(), nil
}

func handleOpGive(ctx *Context, newName string) ([]wire.Envelope, error) {
	collapsed := identity.Normalize(newName)
	if collapsed == "" {
		return errToSender(ctx, "That cannot be anyone's user name.")
	}
	ouid, ok := ctx.FindUserByIdstr(collapsed)
	if !ok {
		return infoToSender(ctx, fmt.Sprintf("No users matching the pattern %q.", collapsed))
	}
	if ouid == ctx.UserID {
		return infoToSender(ctx, "You are already the operator of this room.")
	}
	ou, err := ctx.userByID(ouid)
	if err != nil {
		return nil, err
	}
	ouName := ou.Name()

	curR, err := ctx.Room()
	if err != nil {
		return nil, err
	}
	if !curR.HasMember(ouid) {
		return infoToSender(ctx, fmt.Sprintf("%s must be in the room to transfer ownership.", ouName))
	}
	curR.SetOp(ouid)
	return oneEnvelope(fromServer(), toRoom(ctx.RoomID), wire.Info(fmt.Sprintf("The room operator is now %s.", ouName)))
}

func handleOpInvite(ctx *Context, uname string) ([]wire.Envelope, error) {
	collapsed := identity.Normalize(uname)
	if collapsed == "" {
		return infoToSender(ctx, "That cannot be anyone's user name.")
	}
	ouid, ok := ctx.FindUserByIdstr(collapsed)
	if !ok {
		return infoToSender(ctx, fmt.Sprintf("No users matching the pattern %q.", collapsed))
	}

	curR, err := ctx.Room()
	if err != nil {
		return nil, err
	}
	if ouid == ctx.UserID {
		return infoToSender(ctx, fmt.Sprintf("You are already allowed in %s.", curR.Name()))
	}
	ou, err := ctx.userByID(ouid)
	if err != nil {
		return nil, err
	}
	if curR.IsInvited(ouid) {
		return infoToSender(ctx, fmt.Sprintf("%s has already been invited to %s.", ou.Name(), curR.Name()))
	}
	curR.Invite(ouid)

	var inviterMsg, inviteeMsg string
	if curR.HasMember(ouid) {
		inviterMsg = fmt.Sprintf("%s may now return to %s even when closed.", ou.Name(), curR.Name())
		inviteeMsg = fmt.Sprintf("You have been invited to return to %s even if it closes.", curR.Name())
	} else {
		inviterMsg = fmt.Sprintf("You invite %s to join %s.", ou.Name(), curR.Name())
		inviteeMsg = fmt.Sprintf("You have been invited to join %s.", curR.Name())
	}
	ou.DeliverMsg(wire.Info(inviteeMsg))
	return infoToSender(ctx, inviterMsg)
}

func handleOpKick(ctx *Context, uname string) ([]wire.Envelope, error) {
	collapsed := identity.Normalize(uname)
	if collapsed == "" {
		return infoToSender(ctx, "That cannot be anyone's user name.")
	}
	ouid, ok := ctx.FindUserByIdstr(collapsed)
	if !ok {
		return infoToSender(ctx, fmt.Sprintf("No users matching the pattern %q.", collapsed))
	}
	if ouid == ctx.UserID {
		return infoToSender(ctx, "Bestowing the operator mantle on another and then leaving would be a more orderly transfer of power.")
	}
	ku, err := ctx.userByID(ouid)
	if err != nil {
		return nil, err
	}

	curR, err := ctx.Room()
	if err != nil {
		return nil, err
	}
	if curR.IsBanned(ouid) {
		return infoToSender(ctx, fmt.Sprintf("%s is already banned from %s.", ku.Name(), curR.Name()))
	}

	curR.Ban(ouid)
	inRoom := curR.HasMember(ouid)
	if !inRoom {
		return infoToSender(ctx, fmt.Sprintf("You have banned %s from %s.", ku.Name(), curR.Name()))
	}

	ku.DeliverMsg(wire.Info(fmt.Sprintf("You have been kicked from %s.", curR.Name())))
	curR.Leave(ouid)
	curRoomName := curR.Name()

	lobby, err := ctx.roomByID(LobbyID)
	if err != nil {
		return nil, err
	}
	lobby.Join(ouid)
	toLobby, err := envelope(fromServer(), toRoom(LobbyID), wire.Misc{
		What: "join",
		Data: []string{ku.Name(), lobby.Name()},
		Alt:  fmt.Sprintf("%s joins %s.", ku.Name(), lobby.Name()),
	})
	if err != nil {
		return nil, err
	}
	lobby.Enqueue(toLobby)

	return oneEnvelope(fromServer(), toRoom(ctx.RoomID), wire.Misc{
		What: "kick_other",
		Data: []string{ku.Name(), curRoomName},
		Alt:  fmt.Sprintf("%s has been kicked from %s.", ku.Name(), curRoomName),
	})
}
