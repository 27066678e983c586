package ping

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
)

// HandlePing answers a ping with a pong carrying the same timestamp
func HandlePing(peer *peerpkg.Peer, message *appmessage.MsgPing) error {
	return peer.Enqueue(appmessage.NewMsgPong(message.Timestamp))
}
