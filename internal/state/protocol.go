package state

// Event names exchanged between participants and the host.
const (
	EventJoin      = "join"
	EventPartial   = "stroke:partial"
	EventFinal     = "stroke:final"
	EventUndo      = "undo"
	EventRedo      = "redo"
	EventCursor    = "cursor"
	EventPing      = "pingCheck"
	EventPong      = "pongCheck"
	EventFullState = "full_state"
	EventUserList  = "user_list"
	EventOpNew     = "op:new"
)

// Message is one outbound event. Data is encoded as the event's payload:
// FullState, []UserInfo, LogEntry, StrokeMessage or Cursor.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// JoinRequest asks to enter a room.
type JoinRequest struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// StrokeMessage carries a partial or final stroke.
type StrokeMessage struct {
	Stroke Stroke `json:"stroke"`
}

// FullState is sent once to a participant that joined.
type FullState struct {
	SelfID     string     `json:"youId"`
	SelfColor  string     `json:"youColor"`
	Users      []UserInfo `json:"users"`
	Operations []LogEntry `json:"operations"`
}

// Cursor is a pointer position in the fractional frame. UserID is filled
// in by the host when relaying.
type Cursor struct {
	UserID string  `json:"socketId,omitempty"`
	X      float64 `json:"xPct"`
	Y      float64 `json:"yPct"`
}
