package protocol

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/flows/addressexchange"
	"github.com/gxcnet/gxcpeerd/app/protocol/flows/blockrelay"
	"github.com/gxcnet/gxcpeerd/app/protocol/flows/handshake"
	"github.com/gxcnet/gxcpeerd/app/protocol/flows/ping"
	"github.com/gxcnet/gxcpeerd/app/protocol/flows/transactionrelay"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
	routerpkg "github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter/router"
	"github.com/pkg/errors"
)

// incomingMessageTypes are the messages handled by the dispatch loop.
// Pongs are routed to the peer's pong route instead.
var incomingMessageTypes = []appmessage.MessageCommand{
	appmessage.CmdHandshake,
	appmessage.CmdGetPeers,
	appmessage.CmdPeers,
	appmessage.CmdGetBlocks,
	appmessage.CmdBlocks,
	appmessage.CmdGetBlock,
	appmessage.CmdBlock,
	appmessage.CmdNewBlock,
	appmessage.CmdGetTransaction,
	appmessage.CmdTransaction,
	appmessage.CmdNewTransaction,
	appmessage.CmdPing,
	appmessage.CmdError,
}

func (m *Manager) handleConnection(netConnection *netadapter.NetConnection) error {
	cfg := m.context.Config()
	if !netConnection.IsOutbound() && m.context.PeerCount() >= cfg.MaxPeers {
		log.Infof("Refusing %s: already connected to %d peers", netConnection, cfg.MaxPeers)
		err := netConnection.Send(appmessage.NewMsgError(appmessage.ErrorCodeTooManyPeers, "too many peers"))
		if err != nil {
			log.Debugf("Could not notify %s of the refusal: %s", netConnection, err)
		}
		return errors.Errorf("peer limit of %d reached", cfg.MaxPeers)
	}

	peer, err := handshake.HandleHandshake(m.context, netConnection)
	if err != nil {
		return err
	}

	router := routerpkg.NewRouter()
	pongRoute, err := router.AddIncomingRoute("pong", []appmessage.MessageCommand{appmessage.CmdPong})
	if err != nil {
		return err
	}
	incomingRoute, err := router.AddIncomingRoute("incoming", incomingMessageTypes)
	if err != nil {
		return err
	}
	err = peer.MarkAsReady(router.OutgoingRoute(), pongRoute)
	if err != nil {
		return err
	}

	// The connection is started before the peer is registered, so every
	// registered peer can be broadcast to. A refused peer is disconnected
	// by the caller.
	netConnection.Start(router)
	err = m.context.AddToPeers(peer)
	if err != nil {
		return err
	}
	log.Infof("Registered peer %s (%d peers)", peer, m.context.PeerCount())

	m.startFlows(peer, incomingRoute)

	err = blockrelay.RequestMissingBlocks(m.context, peer)
	if err != nil {
		log.Warnf("Could not request missing blocks from %s: %s", peer, err)
	}
	return nil
}

func (m *Manager) startFlows(peer *peerpkg.Peer, incomingRoute *routerpkg.Route) {
	m.routersWaitGroup.Add(2)

	spawn("Manager.handleIncomingMessages", func() {
		defer m.routersWaitGroup.Done()

		err := m.handleIncomingMessages(peer, incomingRoute)
		m.handleError(err, peer, "handleIncomingMessages")
		peer.Disconnect()
		m.context.RemoveFromPeers(peer)
		log.Infof("Peer %s removed (%d peers)", peer, m.context.PeerCount())
	})

	spawn("Manager.sendPings", func() {
		defer m.routersWaitGroup.Done()

		err := ping.SendPings(m.context, peer, ping.Interval)
		if err != nil {
			m.handleError(err, peer, "SendPings")
			peer.Disconnect()
		}
	})
}

func (m *Manager) handleIncomingMessages(peer *peerpkg.Peer, incomingRoute *routerpkg.Route) error {
	for {
		message, err := incomingRoute.Dequeue()
		if err != nil {
			return err
		}
		m.context.Metrics().MessageReceived(appmessage.MessageCommandToString[message.Command()])

		err = m.handleMessage(peer, message)
		if err != nil {
			return err
		}
	}
}

func (m *Manager) handleMessage(peer *peerpkg.Peer, message appmessage.Message) error {
	switch message := message.(type) {
	case *appmessage.MsgPing:
		return ping.HandlePing(peer, message)

	case *appmessage.MsgPong:
		return errors.Errorf("pong from %s was not routed to its pong route", peer)

	case *appmessage.MsgGetPeers:
		return addressexchange.HandleGetPeers(m.context, peer)

	case *appmessage.MsgPeers:
		return addressexchange.HandlePeers(peer, message)

	case *appmessage.MsgGetBlocks:
		return blockrelay.HandleGetBlocks(m.context, peer, message)

	case *appmessage.MsgBlocks:
		return blockrelay.HandleBlocks(m.context, peer, message.Blocks)

	case *appmessage.MsgGetBlock:
		return blockrelay.HandleGetBlock(m.context, peer, message)

	case *appmessage.MsgBlock:
		if message.Block == nil {
			return protocolerrors.Errorf(true, "%s sent %s without a block", peer, message.Command())
		}
		return blockrelay.HandleBlocks(m.context, peer, []*model.Block{message.Block})

	case *appmessage.MsgNewBlock:
		return blockrelay.HandleNewBlock(m.context, peer, message)

	case *appmessage.MsgGetTransaction:
		return transactionrelay.HandleGetTransaction(m.context, peer, message)

	case *appmessage.MsgTransaction, *appmessage.MsgNewTransaction:
		transactionrelay.HandleTransaction(peer, message)
		return nil

	case *appmessage.MsgHandshake:
		return protocolerrors.Errorf(true, "%s sent a handshake after the handshake was confirmed", peer)

	case *appmessage.MsgError:
		log.Infof("%s reported %s", peer, message)
		return nil

	default:
		return protocolerrors.Errorf(true, "%s sent unexpected %s", peer, message.Command())
	}
}

func (m *Manager) handleError(err error, peer *peerpkg.Peer, flowName string) {
	switch {
	case err == nil, errors.Is(err, routerpkg.ErrRouteClosed):
		log.Debugf("%s with %s stopped", flowName, peer)
	case errors.Is(err, ping.ErrPingTimeout):
		log.Warnf("Disconnecting %s: %s", peer, err)
	case protocolerrors.IsProtocolError(err):
		log.Warnf("Protocol error from %s in %s: %s", peer, flowName, err)
	default:
		log.Errorf("Error in %s with %s: %+v", flowName, peer, err)
	}
}
