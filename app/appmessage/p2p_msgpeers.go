package appmessage

// PeerInfo describes a peer in a Peers message
type PeerInfo struct {
	Address    string `json:"address"`
	Port       uint16 `json:"port"`
	NodeID     string `json:"node_id"`
	Version    uint32 `json:"version"`
	BestHeight uint64 `json:"best_height"`
}

// MsgGetPeers implements the Message interface and represents a GXC
// GetPeers message. It is used to request the peers known to the remote
// node.
//
// This message has no payload.
type MsgGetPeers struct {
	baseMessage
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgGetPeers) Command() MessageCommand {
	return CmdGetPeers
}

// NewMsgGetPeers returns a new GXC GetPeers message
func NewMsgGetPeers() *MsgGetPeers {
	return &MsgGetPeers{}
}

// MsgPeers implements the Message interface and represents a GXC Peers
// message. It answers MsgGetPeers.
type MsgPeers struct {
	baseMessage
	Peers []*PeerInfo `json:"peers"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgPeers) Command() MessageCommand {
	return CmdPeers
}

// NewMsgPeers returns a new GXC Peers message
func NewMsgPeers(peers []*PeerInfo) *MsgPeers {
	if peers == nil {
		peers = []*PeerInfo{}
	}
	return &MsgPeers{Peers: peers}
}
