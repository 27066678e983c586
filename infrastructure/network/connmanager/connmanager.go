package connmanager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
)

const connectionsLoopInterval = 30 * time.Second

// ConnectFunc dials address and completes the handshake with it
type ConnectFunc func(address string) error

// connectionRequest represents a user request (through --addpeer or the
// connect subcommand) to connect to a certain node
type connectionRequest struct {
	address       string
	isPermanent   bool
	nextAttempt   time.Time
	retryDuration time.Duration
}

// ConnectionManager makes sure the requested outbound connections stay
// up. Permanent requests are redialed after a failure or a disconnection.
type ConnectionManager struct {
	netAdapter *netadapter.NetAdapter
	connect    ConnectFunc

	activeRequested        map[string]*connectionRequest
	pendingRequested       map[string]*connectionRequest
	connectionRequestsLock sync.Mutex

	stop          uint32
	stopChan      chan struct{}
	resetLoopChan chan struct{}
	loopInterval  time.Duration
}

// New instantiates a new instance of a ConnectionManager. connect is used
// to dial, and netAdapter to find out which connections are still open.
func New(netAdapter *netadapter.NetAdapter, connect ConnectFunc) *ConnectionManager {
	return newConnectionManager(netAdapter, connect, connectionsLoopInterval)
}

func newConnectionManager(netAdapter *netadapter.NetAdapter, connect ConnectFunc,
	loopInterval time.Duration) *ConnectionManager {

	return &ConnectionManager{
		netAdapter:       netAdapter,
		connect:          connect,
		activeRequested:  map[string]*connectionRequest{},
		pendingRequested: map[string]*connectionRequest{},
		stopChan:         make(chan struct{}),
		resetLoopChan:    make(chan struct{}, 1),
		loopInterval:     loopInterval,
	}
}

// Start begins the operation of the ConnectionManager
func (c *ConnectionManager) Start() {
	spawn("ConnectionManager.connectionsLoop", c.connectionsLoop)
}

// Stop halts the operation of the ConnectionManager. A dial in progress
// is not interrupted. Open connections are left to their owner.
func (c *ConnectionManager) Stop() {
	if !atomic.CompareAndSwapUint32(&c.stop, 0, 1) {
		return
	}
	close(c.stopChan)
}

// AddConnectionRequest adds the given address to list of pending
// connection requests and wakes the connections loop up
func (c *ConnectionManager) AddConnectionRequest(address string, isPermanent bool) {
	c.addConnectionRequest(address, isPermanent)
	c.run()
}

func (c *ConnectionManager) addConnectionRequest(address string, isPermanent bool) {
	c.connectionRequestsLock.Lock()
	defer c.connectionRequestsLock.Unlock()

	if _, ok := c.activeRequested[address]; ok {
		return
	}

	c.pendingRequested[address] = &connectionRequest{
		address:     address,
		isPermanent: isPermanent,
	}
}

// ActiveRequestCount returns the number of requested connections that are
// currently up
func (c *ConnectionManager) ActiveRequestCount() int {
	c.connectionRequestsLock.Lock()
	defer c.connectionRequestsLock.Unlock()

	return len(c.activeRequested)
}

// PendingRequestCount returns the number of requested connections waiting
// to be dialed
func (c *ConnectionManager) PendingRequestCount() int {
	c.connectionRequestsLock.Lock()
	defer c.connectionRequestsLock.Unlock()

	return len(c.pendingRequested)
}

func (c *ConnectionManager) run() {
	select {
	case c.resetLoopChan <- struct{}{}:
	default:
	}
}

func (c *ConnectionManager) initiateConnection(address string) error {
	log.Infof("Connecting to %s", address)
	return c.connect(address)
}

func (c *ConnectionManager) connectionsLoop() {
	ticker := time.NewTicker(c.loopInterval)
	defer ticker.Stop()

	for atomic.LoadUint32(&c.stop) == 0 {
		// The connections list is converted to a set so that requested
		// connections can be found quickly.
		connSet := convertToSet(c.netAdapter.Connections())

		c.checkRequestedConnections(connSet)

		select {
		case <-c.stopChan:
			return
		case <-c.resetLoopChan:
			ticker.Reset(c.loopInterval)
		case <-ticker.C:
		}
	}
}
