package netadapter

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	routerpkg "github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter/router"
	"github.com/pkg/errors"
)

// writeTimeout bounds a single frame write so that a stalled peer cannot
// hold the connection's write lock forever.
const writeTimeout = 30 * time.Second

// OnDisconnectedHandler is a function that is to be
// called once a NetConnection has been disconnected.
type OnDisconnectedHandler func()

// NetConnection is a peer-to-peer TCP connection. Before Start it can be
// driven synchronously with Send and Receive. After Start its messages
// flow through a router.
type NetConnection struct {
	conn        net.Conn
	reader      *bufio.Reader
	address     string
	isOutbound  bool
	connectedAt time.Time

	writeLock sync.Mutex

	router              atomic.Pointer[routerpkg.Router]
	nextMessageNumber   uint64
	isRouterInitialized uint32

	isConnected           uint32
	disconnectOnce        sync.Once
	onDisconnectedHandler OnDisconnectedHandler
}

// NewNetConnection wraps an established conn. Connections created this way
// are not tracked by any NetAdapter.
func NewNetConnection(conn net.Conn, isOutbound bool) *NetConnection {
	return &NetConnection{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		address:     conn.RemoteAddr().String(),
		isOutbound:  isOutbound,
		connectedAt: time.Now(),
		isConnected: 1,
	}
}

func (c *NetConnection) String() string {
	direction := "inbound"
	if c.isOutbound {
		direction = "outbound"
	}
	return fmt.Sprintf("%s (%s)", c.address, direction)
}

// Address returns the remote host:port of the connection
func (c *NetConnection) Address() string {
	return c.address
}

// IsOutbound returns whether the connection was dialed by this node
func (c *NetConnection) IsOutbound() bool {
	return c.isOutbound
}

// ConnectedAt returns the time the connection was established
func (c *NetConnection) ConnectedAt() time.Time {
	return c.connectedAt
}

// IsConnected returns whether the connection is still open
func (c *NetConnection) IsConnected() bool {
	return atomic.LoadUint32(&c.isConnected) != 0
}

// SetOnDisconnectedHandler sets the handler to be called once, when the
// connection is disconnected.
func (c *NetConnection) SetOnDisconnectedHandler(onDisconnectedHandler OnDisconnectedHandler) {
	c.onDisconnectedHandler = onDisconnectedHandler
}

// Send writes message to the connection
func (c *NetConnection) Send(message appmessage.Message) error {
	if !c.IsConnected() {
		return errors.Errorf("cannot send %s to %s: connection is closed", message.Command(), c)
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err != nil {
		return errors.WithStack(err)
	}
	return WriteMessage(c.conn, message)
}

// Receive reads the next message from the connection, waiting at most
// timeout. It must not be called after Start.
func (c *NetConnection) Receive(timeout time.Duration) (appmessage.Message, error) {
	if atomic.LoadUint32(&c.isRouterInitialized) != 0 {
		return nil, errors.New("Receive cannot be called once the connection is started")
	}

	err := c.conn.SetReadDeadline(time.Now().Add(timeout))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer func() {
		_ = c.conn.SetReadDeadline(time.Time{})
	}()

	message, err := c.readMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errors.Wrapf(routerpkg.ErrTimeout, "%s did not send a message within %s", c, timeout)
		}
		return nil, err
	}
	return message, nil
}

func (c *NetConnection) readMessage() (appmessage.Message, error) {
	message, err := ReadMessage(c.reader)
	if err != nil {
		return nil, err
	}
	c.nextMessageNumber++
	message.SetMessageNumber(c.nextMessageNumber)
	message.SetReceivedAt(time.Now())
	return message, nil
}

// Start hands the connection to router: received messages are enqueued
// to its incoming routes and messages on its outgoing route are sent.
// The connection is disconnected when either direction fails.
func (c *NetConnection) Start(router *routerpkg.Router) {
	if !atomic.CompareAndSwapUint32(&c.isRouterInitialized, 0, 1) {
		panic(errors.Errorf("connection %s was started more than once", c))
	}
	c.router.Store(router)

	spawn("NetConnection.connectionLoops", func() {
		c.connectionLoops()
	})
}

func (c *NetConnection) connectionLoops() {
	// buffered channel because one of the loops might try write after disconnect
	errChan := make(chan error, 2)

	spawn("NetConnection.receiveLoop", func() { errChan <- c.receiveLoop() })
	spawn("NetConnection.sendLoop", func() { errChan <- c.sendLoop() })

	err := <-errChan
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, routerpkg.ErrRouteClosed), !c.IsConnected():
		log.Debugf("Connection to %s closed: %v", c, err)
	case protocolerrors.IsProtocolError(err):
		log.Warnf("Disconnecting %s because of a protocol error: %s", c, err)
	default:
		log.Infof("Disconnecting %s: %s", c, err)
	}
	c.Disconnect()
}

func (c *NetConnection) sendLoop() error {
	for c.IsConnected() {
		message, err := c.Router().OutgoingRoute().Dequeue()
		if err != nil {
			return err
		}
		err = c.Send(message)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *NetConnection) receiveLoop() error {
	for c.IsConnected() {
		message, err := c.readMessage()
		if err != nil {
			return err
		}
		log.Tracef("Received %s from %s", message.Command(), c)
		err = c.Router().EnqueueIncomingMessage(message)
		if err != nil {
			return err
		}
	}
	return nil
}

// Router returns the router the connection was started with, or nil
// before Start
func (c *NetConnection) Router() *routerpkg.Router {
	return c.router.Load()
}

// Disconnect closes the connection and its router, then calls the
// disconnect handler. Calling it more than once is a no-op.
func (c *NetConnection) Disconnect() {
	c.disconnectOnce.Do(func() {
		atomic.StoreUint32(&c.isConnected, 0)

		err := c.conn.Close()
		if err != nil {
			log.Debugf("Error closing connection to %s: %s", c, err)
		}
		if router := c.Router(); router != nil {
			router.Close()
		}
		if c.onDisconnectedHandler != nil {
			c.onDisconnectedHandler()
		}
	})
}
