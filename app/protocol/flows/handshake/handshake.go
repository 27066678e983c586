package handshake

import (
	"time"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
)

// NegotiateTimeout is how long the remote node has to send its handshake
const NegotiateTimeout = 30 * time.Second

// HandleHandshakeContext is the interface for the context needed for the HandleHandshake flow.
type HandleHandshakeContext interface {
	Config() *config.Config
	BestHeight() uint64
}

// HandleHandshake sends our handshake on netConnection and waits for the
// remote node's. It must run before the connection is started. The
// returned peer is in HandshakeStateConfirmed. On any error the peer is
// discarded and the caller is expected to close the connection.
func HandleHandshake(context HandleHandshakeContext, netConnection *netadapter.NetConnection) (*peerpkg.Peer, error) {
	peer := peerpkg.New(netConnection)
	cfg := context.Config()
	network := cfg.ActiveNetParams.Name

	err := netConnection.Send(appmessage.NewMsgHandshake(cfg.NodeID, context.BestHeight(), network))
	if err != nil {
		peer.SetHandshakeState(peerpkg.HandshakeStateFailed)
		return nil, err
	}
	peer.SetHandshakeState(peerpkg.HandshakeStateSent)

	message, err := netConnection.Receive(NegotiateTimeout)
	if err != nil {
		peer.SetHandshakeState(peerpkg.HandshakeStateFailed)
		return nil, err
	}

	switch message := message.(type) {
	case *appmessage.MsgHandshake:
		err = checkHandshake(cfg, netConnection, message)
		if err != nil {
			peer.SetHandshakeState(peerpkg.HandshakeStateFailed)
			return nil, err
		}
		peer.UpdateFromHandshake(message)

	case *appmessage.MsgError:
		peer.SetHandshakeState(peerpkg.HandshakeStateFailed)
		return nil, protocolerrors.Errorf(false, "%s rejected the handshake: %s", netConnection, message)

	default:
		peer.SetHandshakeState(peerpkg.HandshakeStateFailed)
		return nil, protocolerrors.Errorf(true, "expected %s from %s but got %s",
			appmessage.CmdHandshake, netConnection, message.Command())
	}

	peer.SetHandshakeState(peerpkg.HandshakeStateConfirmed)
	log.Infof("Handshake with %s confirmed (version %d, best height %d)",
		peer, peer.ProtocolVersion(), peer.BestHeight())
	return peer, nil
}

func checkHandshake(cfg *config.Config, netConnection *netadapter.NetConnection,
	message *appmessage.MsgHandshake) error {

	network := cfg.ActiveNetParams.Name
	if message.Network != network {
		rejectErr := netConnection.Send(appmessage.NewMsgError(appmessage.ErrorCodeNetworkMismatch,
			"network mismatch: this node is on "+network))
		if rejectErr != nil {
			log.Debugf("Could not notify %s of the network mismatch: %s", netConnection, rejectErr)
		}
		return protocolerrors.Errorf(false, "network mismatch: we are on %s, %s is on %s",
			network, netConnection, message.Network)
	}
	if message.NodeID == "" {
		return protocolerrors.Errorf(true, "%s sent a handshake without a node id", netConnection)
	}
	if message.NodeID == cfg.NodeID {
		return protocolerrors.Errorf(false, "%s has our own node id %s", netConnection, cfg.NodeID)
	}
	if message.Version < appmessage.ProtocolVersion {
		return protocolerrors.Errorf(false, "%s uses protocol version %d, lower than %d",
			netConnection, message.Version, appmessage.ProtocolVersion)
	}
	return nil
}
