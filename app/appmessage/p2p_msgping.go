package appmessage

// MsgPing implements the Message interface and represents a GXC ping
// message. The receiver answers with a MsgPong carrying the same
// timestamp, which lets the sender measure the round trip.
type MsgPing struct {
	baseMessage
	// Timestamp is the sender's clock in unix milliseconds
	Timestamp uint64 `json:"timestamp"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgPing) Command() MessageCommand {
	return CmdPing
}

// NewMsgPing returns a new GXC ping message
func NewMsgPing(timestamp uint64) *MsgPing {
	return &MsgPing{Timestamp: timestamp}
}

// MsgPong implements the Message interface and represents a GXC pong
// message which is used to confirm that a connection is still valid in
// response to a ping message (MsgPing).
type MsgPong struct {
	baseMessage
	Timestamp uint64 `json:"timestamp"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgPong) Command() MessageCommand {
	return CmdPong
}

// NewMsgPong returns a new GXC pong message
func NewMsgPong(timestamp uint64) *MsgPong {
	return &MsgPong{Timestamp: timestamp}
}
