package wire

// Message types exchanged over the websocket, carried in the Type field of
// ClientMessage and ServerMessage.
const (
	// Client → server.
	MsgAttach = "attach"
	MsgOp     = "op"

	// Server → client.
	MsgHello    = "hello"
	MsgSnapshot = "snapshot"
	MsgEvent    = "event"
	MsgPresence = "presence"
	MsgError    = "error"
)

// ClientMessage is the envelope for every client→server frame.
type ClientMessage struct {
	Type string `json:"type"`

	// Doc names the target document for attach. Ops always address the
	// document the session is attached to.
	Doc string `json:"doc,omitempty"`

	Op *Op `json:"op,omitempty"`
}

// ServerMessage is the envelope for every server→client frame.
type ServerMessage struct {
	Type string `json:"type"`

	// Session is set on hello: the ID assigned to this connection.
	Session string `json:"session,omitempty"`

	// Doc and Objects are set on snapshot: the full state of the attached
	// document, root map first.
	Doc     string        `json:"doc,omitempty"`
	Rev     uint64        `json:"rev,omitempty"`
	Objects []ObjectState `json:"objects,omitempty"`

	Event *Event `json:"event,omitempty"`

	// Presence fields: the full set of live sessions on the document plus
	// the session that just joined or left (at most one of the two).
	Sessions []string `json:"sessions,omitempty"`
	Joined   string   `json:"joined,omitempty"`
	Left     string   `json:"left,omitempty"`

	// Error fields.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
