package netadapter

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	routerpkg "github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter/router"
	"github.com/pkg/errors"
)

// OnConnectedHandler is a function that is to be called once a new
// NetConnection is established. An error returned by it disconnects the
// connection.
type OnConnectedHandler func(connection *NetConnection) error

// NetAdapter is an abstraction layer over networking. It accepts inbound
// TCP connections, dials outbound ones and hands each of them to the
// OnConnectedHandler, without exposing anything related to networking
// internals.
type NetAdapter struct {
	cfg                *config.Config
	onConnectedHandler OnConnectedHandler
	listener           net.Listener
	stop               uint32
	acceptLoopDone     chan struct{}

	connections     map[*NetConnection]struct{}
	connectionsLock sync.RWMutex
}

// NewNetAdapter creates a new NetAdapter. It does not listen until Start
// is called.
func NewNetAdapter(cfg *config.Config) (*NetAdapter, error) {
	if cfg.Dial == nil {
		return nil, errors.New("config has no dial function")
	}
	adapter := NetAdapter{
		cfg:         cfg,
		connections: make(map[*NetConnection]struct{}),
	}
	return &adapter, nil
}

// SetOnConnectedHandler sets the function called for every new connection
func (na *NetAdapter) SetOnConnectedHandler(onConnectedHandler OnConnectedHandler) {
	na.onConnectedHandler = onConnectedHandler
}

// Start begins listening on the configured address and accepting
// connections
func (na *NetAdapter) Start() error {
	if na.onConnectedHandler == nil {
		return errors.New("onConnectedHandler was not set")
	}

	listener, err := net.Listen("tcp", na.cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", na.cfg.Listen)
	}
	na.listener = listener
	na.acceptLoopDone = make(chan struct{})
	log.Infof("Listening for peers on %s", listener.Addr())

	spawn("NetAdapter.acceptLoop", na.acceptLoop)
	return nil
}

// ListenAddress returns the address the adapter listens on, or nil before
// Start
func (na *NetAdapter) ListenAddress() net.Addr {
	if na.listener == nil {
		return nil
	}
	return na.listener.Addr()
}

func (na *NetAdapter) acceptLoop() {
	defer close(na.acceptLoopDone)

	for {
		conn, err := na.listener.Accept()
		if err != nil {
			if atomic.LoadUint32(&na.stop) != 0 {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Temporary() {
				log.Warnf("Temporary error accepting connection: %s", err)
				continue
			}
			log.Errorf("Stopped accepting connections: %s", err)
			return
		}

		netConnection := na.newConnection(conn, conn.RemoteAddr().String(), false)
		log.Debugf("Accepted connection from %s", netConnection)
		spawn("NetAdapter.handleInboundConnection", func() {
			err := na.onConnectedHandler(netConnection)
			if err != nil {
				log.Infof("Closing inbound connection %s: %s", netConnection, err)
				netConnection.Disconnect()
			}
		})
	}
}

// Stop closes the listener and every open connection
func (na *NetAdapter) Stop() error {
	if atomic.AddUint32(&na.stop, 1) != 1 {
		return errors.New("net adapter stopped more than once")
	}
	if na.listener != nil {
		err := na.listener.Close()
		if err != nil {
			return errors.WithStack(err)
		}
		<-na.acceptLoopDone
	}
	for _, connection := range na.Connections() {
		connection.Disconnect()
	}
	return nil
}

// Connect dials address, through the configured proxy if any, and runs the
// OnConnectedHandler on the new connection. The handler's error is
// returned, in which case the connection is already closed.
func (na *NetAdapter) Connect(address string) error {
	if atomic.LoadUint32(&na.stop) != 0 {
		return errors.New("net adapter is stopped")
	}
	if na.onConnectedHandler == nil {
		return errors.New("onConnectedHandler was not set")
	}

	conn, err := na.cfg.Dial("tcp", address, config.DefaultConnectTimeout)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", address)
	}

	netConnection := na.newConnection(conn, address, true)
	log.Debugf("Connected to %s", netConnection)
	err = na.onConnectedHandler(netConnection)
	if err != nil {
		netConnection.Disconnect()
		return err
	}
	return nil
}

// newConnection tracks conn under address. Outbound connections keep the
// dialed address, since behind a proxy the remote address is the proxy's.
func (na *NetAdapter) newConnection(conn net.Conn, address string, isOutbound bool) *NetConnection {
	netConnection := NewNetConnection(conn, isOutbound)
	netConnection.address = address

	na.connectionsLock.Lock()
	defer na.connectionsLock.Unlock()

	netConnection.SetOnDisconnectedHandler(func() {
		na.connectionsLock.Lock()
		defer na.connectionsLock.Unlock()

		delete(na.connections, netConnection)
	})
	na.connections[netConnection] = struct{}{}
	return netConnection
}

// Connections returns a list of connections currently open
func (na *NetAdapter) Connections() []*NetConnection {
	na.connectionsLock.RLock()
	defer na.connectionsLock.RUnlock()

	netConnections := make([]*NetConnection, 0, len(na.connections))
	for netConnection := range na.connections {
		netConnections = append(netConnections, netConnection)
	}
	return netConnections
}

// ConnectionCount returns the count of the open connections
func (na *NetAdapter) ConnectionCount() int {
	na.connectionsLock.RLock()
	defer na.connectionsLock.RUnlock()

	return len(na.connections)
}

// Broadcast enqueues message to the outgoing route of every given
// started connection. Failures are logged per connection and do not stop
// the broadcast; the number of connections that accepted the message is
// returned.
func (na *NetAdapter) Broadcast(netConnections []*NetConnection, message appmessage.Message) int {
	sent := 0
	for _, netConnection := range netConnections {
		router := netConnection.Router()
		if router == nil {
			continue
		}
		err := router.OutgoingRoute().Enqueue(message)
		if err != nil {
			if errors.Is(err, routerpkg.ErrRouteClosed) {
				log.Debugf("Cannot enqueue message to %s: router is closed", netConnection)
				continue
			}
			log.Warnf("Failed to broadcast %s to %s: %s", message.Command(), netConnection, err)
			continue
		}
		sent++
	}
	return sent
}
