package appmessage

// MsgHandshake implements the Message interface and represents a GXC
// handshake message. Both sides of a connection send one as their first
// message.
type MsgHandshake struct {
	baseMessage
	Version    uint32 `json:"version"`
	NodeID     string `json:"node_id"`
	BestHeight uint64 `json:"best_height"`
	Network    string `json:"network"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgHandshake) Command() MessageCommand {
	return CmdHandshake
}

// NewMsgHandshake returns a new GXC handshake message with the current
// protocol version
func NewMsgHandshake(nodeID string, bestHeight uint64, network string) *MsgHandshake {
	return &MsgHandshake{
		Version:    ProtocolVersion,
		NodeID:     nodeID,
		BestHeight: bestHeight,
		Network:    network,
	}
}
