package addressexchange

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
)

// MaxPeersPerMessage is the maximum number of entries sent in a single
// MsgPeers
const MaxPeersPerMessage = 1000

// SendPeersContext is the interface for the context needed for the HandleGetPeers flow.
type SendPeersContext interface {
	Peers() []*peerpkg.Peer
}

// HandleGetPeers answers a peer list request with every other registered
// peer
func HandleGetPeers(context SendPeersContext, peer *peerpkg.Peer) error {
	peers := context.Peers()
	infos := make([]*appmessage.PeerInfo, 0, len(peers))
	for _, registered := range peers {
		if registered == peer {
			continue
		}
		infos = append(infos, registered.Info())
		if len(infos) == MaxPeersPerMessage {
			break
		}
	}
	log.Debugf("Sending %d peers to %s", len(infos), peer)
	return peer.Enqueue(appmessage.NewMsgPeers(infos))
}

// HandlePeers records a received peer list. Addresses are only logged;
// the node does not dial them on its own.
func HandlePeers(peer *peerpkg.Peer, message *appmessage.MsgPeers) error {
	if len(message.Peers) > MaxPeersPerMessage {
		return protocolerrors.Errorf(true, "%s sent %d peers, more than the maximum of %d",
			peer, len(message.Peers), MaxPeersPerMessage)
	}
	log.Debugf("Received %d peers from %s", len(message.Peers), peer)
	for _, info := range message.Peers {
		if info == nil {
			continue
		}
		log.Tracef("Peer %s at %s:%d, best height %d", info.NodeID, info.Address, info.Port, info.BestHeight)
	}
	return nil
}
