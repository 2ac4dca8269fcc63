// Package wire implements the concatenated-JSON tagged-union protocol
// exchanged between client and server: the Text/Ping/Priv/Logout/Name/
// Join/Query/Block/Unblock/Op/Info/Err/Misc message variants, and the
// internal Envelope that carries a pre-encoded message between an
// Endpoint source and destination.
//
// The wire representation mirrors an externally-tagged Rust enum: a
// unit variant encodes as a bare JSON string ("Ping"); any other variant
// encodes as a single-key object ({"Text": {...}}). A Go interface with
// one concrete type per variant stands in for the enum; encoding is
// done once per message and the resulting bytes are reused for every
// recipient of a broadcast (see Envelope), which is the only property
// the two-sided Sender/Receiver split in the reference design exists to
// provide — Go's garbage-collected strings make the split itself
// unnecessary.
package wire

import (
	"encoding/json"
	"fmt"
)

// Msg is implemented by every wire message variant.
type Msg interface {
	tag() string
	// Counts reports whether this variant is charged against a user's
	// byte quota (Text, Priv, Name, Join).
	Counts() bool
}

// --- variant payloads -------------------------------------------------

type Text struct {
	Who   string   `json:"who"`
	Lines []string `json:"lines"`
}

func (Text) tag() string   { return "Text" }
func (Text) Counts() bool  { return true }

type Ping struct{}

func (Ping) tag() string  { return "Ping" }
func (Ping) Counts() bool { return false }

type Priv struct {
	Who  string `json:"who"`
	Text string `json:"text"`
}

func (Priv) tag() string  { return "Priv" }
func (Priv) Counts() bool { return true }

// Logout carries the farewell/disconnect-reason text in both directions.
type Logout string

func (Logout) tag() string  { return "Logout" }
func (Logout) Counts() bool { return false }

// Name is a rename request, client to server.
type Name string

func (Name) tag() string  { return "Name" }
func (Name) Counts() bool { return true }

// Join requests switching to (or creating) a room by name.
type Join string

func (Join) tag() string  { return "Join" }
func (Join) Counts() bool { return true }

type Query struct {
	What string `json:"what"`
	Arg  string `json:"arg"`
}

func (Query) tag() string  { return "Query" }
func (Query) Counts() bool { return false }

type Block string

func (Block) tag() string  { return "Block" }
func (Block) Counts() bool { return false }

type Unblock string

func (Unblock) tag() string  { return "Unblock" }
func (Unblock) Counts() bool { return false }

// OpKind enumerates the Op subcommands a room operator may issue.
type OpKind int

const (
	OpOpen OpKind = iota
	OpClose
	OpKick
	OpInvite
	OpGive
)

func (k OpKind) String() string {
	switch k {
	case OpOpen:
		return "Open"
	case OpClose:
		return "Close"
	case OpKick:
		return "Kick"
	case OpInvite:
		return "Invite"
	case OpGive:
		return "Give"
	default:
		return "?"
	}
}

// Op is a room-operator action. Name is populated for Kick/Invite/Give
// and ignored for Open/Close.
type Op struct {
	Kind OpKind
	Name string
}

func (Op) tag() string  { return "Op" }
func (Op) Counts() bool { return false }

type Info string

func (Info) tag() string  { return "Info" }
func (Info) Counts() bool { return false }

type Err string

func (Err) tag() string  { return "Err" }
func (Err) Counts() bool { return false }

// Misc is a structured server event the client may render specially.
// Data is positional; Alt is a prebuilt human-readable fallback.
type Misc struct {
	What string   `json:"what"`
	Data []string `json:"data"`
	Alt  string   `json:"alt"`
}

func (Misc) tag() string  { return "Misc" }
func (Misc) Counts() bool { return false }

// --- externally-tagged encode/decode ----------------------------------

// taggedEncode marshals a value that is either nil (unit variant,
// encodes as a bare JSON string of the tag) or a struct/string.
func taggedEncode(tag string, payload any) ([]byte, error) {
	if payload == nil {
		return json.Marshal(tag)
	}
	return json.Marshal(map[string]any{tag: payload})
}

// taggedDecode extracts the tag name and raw payload from either a bare
// JSON string (unit variant) or a single-key object.
func taggedDecode(data []byte) (tag string, payload json.RawMessage, isUnit bool, err error) {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		return asString, nil, true, nil
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &asMap); err != nil {
		return "", nil, false, fmt.Errorf("wire: not a tagged value: %w", err)
	}
	if len(asMap) != 1 {
		return "", nil, false, fmt.Errorf("wire: tagged object must have exactly one key, got %d", len(asMap))
	}
	for k, v := range asMap {
		return k, v, false, nil
	}
	panic("unreachable")
}

// Encode produces the wire bytes for one message.
func Encode(m Msg) ([]byte, error) {
	switch v := m.(type) {
	case Text:
		return taggedEncode(v.tag(), v)
	case Ping:
		return taggedEncode(v.tag(), nil)
	case Priv:
		return taggedEncode(v.tag(), v)
	case Logout:
		return taggedEncode(v.tag(), string(v))
	case Name:
		return taggedEncode(v.tag(), string(v))
	case Join:
		return taggedEncode(v.tag(), string(v))
	case Query:
		return taggedEncode(v.tag(), v)
	case Block:
		return taggedEncode(v.tag(), string(v))
	case Unblock:
		return taggedEncode(v.tag(), string(v))
	case Op:
		opPayload, err := encodeOp(v)
		if err != nil {
			return nil, err
		}
		return taggedEncode(v.tag(), json.RawMessage(opPayload))
	case Info:
		return taggedEncode(v.tag(), string(v))
	case Err:
		return taggedEncode(v.tag(), string(v))
	case Misc:
		return taggedEncode(v.tag(), v)
	default:
		return nil, fmt.Errorf("wire: unknown message type %T", m)
	}
}

func encodeOp(op Op) ([]byte, error) {
	switch op.Kind {
	case OpOpen, OpClose:
		return taggedEncode(op.Kind.String(), nil)
	case OpKick, OpInvite, OpGive:
		return taggedEncode(op.Kind.String(), op.Name)
	default:
		return nil, fmt.Errorf("wire: unknown op kind %d", op.Kind)
	}
}

// Decode attempts to decode exactly one message from data. It does not
// consume a stream — callers (the Frame Socket) are responsible for
// locating the boundary of one JSON object before calling this.
func Decode(data []byte) (Msg, error) {
	tag, payload, isUnit, err := taggedDecode(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Text":
		if isUnit {
			return nil, fmt.Errorf("wire: Text requires a payload")
		}
		var t Text
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, err
		}
		return t, nil
	case "Ping":
		return Ping{}, nil
	case "Priv":
		if isUnit {
			return nil, fmt.Errorf("wire: Priv requires a payload")
		}
		var p Priv
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "Logout":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return Logout(s), nil
	case "Name":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return Name(s), nil
	case "Join":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return Join(s), nil
	case "Query":
		var q Query
		if err := json.Unmarshal(payload, &q); err != nil {
			return nil, err
		}
		return q, nil
	case "Block":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return Block(s), nil
	case "Unblock":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return Unblock(s), nil
	case "Op":
		op, err := decodeOp(payload)
		if err != nil {
			return nil, err
		}
		return op, nil
	case "Info":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return Info(s), nil
	case "Err":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, err
		}
		return Err(s), nil
	case "Misc":
		var m Misc
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("wire: unknown message tag %q", tag)
	}
}

func decodeOp(data json.RawMessage) (Op, error) {
	tag, payload, isUnit, err := taggedDecode(data)
	if err != nil {
		return Op{}, err
	}
	switch tag {
	case "Open":
		return Op{Kind: OpOpen}, nil
	case "Close":
		return Op{Kind: OpClose}, nil
	case "Kick", "Invite", "Give":
		if isUnit {
			return Op{}, fmt.Errorf("wire: Op.%s requires a name", tag)
		}
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return Op{}, err
		}
		kind := map[string]OpKind{"Kick": OpKick, "Invite": OpInvite, "Give": OpGive}[tag]
		return Op{Kind: kind, Name: name}, nil
	default:
		return Op{}, fmt.Errorf("wire: unknown op tag %q", tag)
	}
}
