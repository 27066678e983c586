package flowcontext

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
	"github.com/pkg/errors"
)

// ErrPeerWithSameIDExists signifies that a peer with the same node id is
// already registered
var ErrPeerWithSameIDExists = errors.New("ready peer with the same ID already exists")

// AddToPeers registers peer under its node id rather than its address. A
// peer announcing the node id of a registered peer is refused.
func (f *FlowContext) AddToPeers(peer *peerpkg.Peer) error {
	f.peersMutex.Lock()
	defer f.peersMutex.Unlock()

	if _, ok := f.peers[peer.NodeID()]; ok {
		return protocolerrors.Wrapf(false, ErrPeerWithSameIDExists, "peer %s", peer.NodeID())
	}
	f.peers[peer.NodeID()] = peer
	f.metrics.SetPeerCount(len(f.peers))
	return nil
}

// RemoveFromPeers deregisters peer
func (f *FlowContext) RemoveFromPeers(peer *peerpkg.Peer) {
	f.peersMutex.Lock()
	defer f.peersMutex.Unlock()

	if registered, ok := f.peers[peer.NodeID()]; ok && registered == peer {
		delete(f.peers, peer.NodeID())
	}
	f.metrics.SetPeerCount(len(f.peers))
}

// Peers returns the registered peers
func (f *FlowContext) Peers() []*peerpkg.Peer {
	f.peersMutex.RLock()
	defer f.peersMutex.RUnlock()

	peers := make([]*peerpkg.Peer, 0, len(f.peers))
	for _, peer := range f.peers {
		peers = append(peers, peer)
	}
	return peers
}

// PeerCount returns the number of registered peers
func (f *FlowContext) PeerCount() int {
	f.peersMutex.RLock()
	defer f.peersMutex.RUnlock()
	return len(f.peers)
}

// Broadcast sends message to every registered peer
func (f *FlowContext) Broadcast(message appmessage.Message) int {
	return f.BroadcastExcept(message, nil)
}

// BroadcastExcept sends message to every registered peer but except, and
// returns the number of peers the message was queued to
func (f *FlowContext) BroadcastExcept(message appmessage.Message, except *peerpkg.Peer) int {
	f.peersMutex.RLock()
	connections := make([]*netadapter.NetConnection, 0, len(f.peers))
	for _, peer := range f.peers {
		if peer == except {
			continue
		}
		connections = append(connections, peer.Connection())
	}
	f.peersMutex.RUnlock()

	return f.netAdapter.Broadcast(connections, message)
}
