package wire

// EndpointKind discriminates an Endpoint's target kind.
type EndpointKind int

const (
	EndUser EndpointKind = iota
	EndRoom
	EndServer
	EndAll
)

// Endpoint is one of User(id), Room(id), Server, or All. It is never
// serialized to the wire — Envelope is an internal routing record only.
type Endpoint struct {
	Kind EndpointKind
	ID   uint64
}

func EndpointUser(id uint64) Endpoint { return Endpoint{Kind: EndUser, ID: id} }
func EndpointRoom(id uint64) Endpoint { return Endpoint{Kind: EndRoom, ID: id} }
func EndpointServer() Endpoint        { return Endpoint{Kind: EndServer} }
func EndpointAll() Endpoint           { return Endpoint{Kind: EndAll} }

// UserID returns the wrapped user id and whether this Endpoint is a
// User endpoint.
func (e Endpoint) UserID() (uint64, bool) {
	if e.Kind == EndUser {
		return e.ID, true
	}
	return 0, false
}

// Envelope is {source, destination, pre-encoded bytes}. Source is
// consulted by a recipient's block list; destination drives routing.
// The bytes are encoded exactly once regardless of how many recipients
// the envelope fans out to.
type Envelope struct {
	Source Endpoint
	Dest   Endpoint
	Bytes  []byte
}

// NewEnvelope encodes msg once and wraps it with routing metadata.
func NewEnvelope(from, to Endpoint, msg Msg) (Envelope, error) {
	b, err := Encode(msg)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Source: from, Dest: to, Bytes: b}, nil
}
