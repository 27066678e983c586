package peer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
	routerpkg "github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter/router"
	"github.com/gxcnet/gxcpeerd/util/network"
	"github.com/pkg/errors"
)

// HandshakeState is the progress of the handshake with a peer
type HandshakeState uint32

// The handshake states. A peer is only registered once it reaches
// HandshakeStateConfirmed.
const (
	HandshakeStateConnected HandshakeState = iota
	HandshakeStateSent
	HandshakeStateConfirmed
	HandshakeStateFailed
)

var handshakeStateStrings = map[HandshakeState]string{
	HandshakeStateConnected: "connected",
	HandshakeStateSent:      "handshake sent",
	HandshakeStateConfirmed: "handshake confirmed",
	HandshakeStateFailed:    "handshake failed",
}

func (s HandshakeState) String() string {
	str, ok := handshakeStateStrings[s]
	if !ok {
		return fmt.Sprintf("unknown handshake state %d", uint32(s))
	}
	return str
}

// ErrNotReady is returned by operations that need the peer's routes
// before MarkAsReady was called.
var ErrNotReady = errors.New("peer is not ready yet")

// Peer holds the data of a single remote node
type Peer struct {
	connection     *netadapter.NetConnection
	handshakeState uint32

	ready         uint32
	outgoingRoute *routerpkg.Route
	pongRoute     *routerpkg.Route

	infoLock        sync.RWMutex
	nodeID          string
	protocolVersion uint32
	network         string
	bestHeight      uint64

	// pingLock serializes Ping calls, since they share the pong route
	pingLock             sync.Mutex
	pingStateLock        sync.RWMutex
	pendingPingTimestamp uint64
	lastPingDuration     time.Duration
}

// New returns a new Peer on connection, in the connected state
func New(connection *netadapter.NetConnection) *Peer {
	return &Peer{
		connection:     connection,
		handshakeState: uint32(HandshakeStateConnected),
	}
}

// Connection returns the connection to the peer
func (p *Peer) Connection() *netadapter.NetConnection {
	return p.connection
}

// Address returns the remote host:port of the peer
func (p *Peer) Address() string {
	return p.connection.Address()
}

// IsOutbound returns whether the peer was dialed by this node
func (p *Peer) IsOutbound() bool {
	return p.connection.IsOutbound()
}

// ConnectedAt returns the time the connection was established
func (p *Peer) ConnectedAt() time.Time {
	return p.connection.ConnectedAt()
}

func (p *Peer) String() string {
	nodeID := p.NodeID()
	if nodeID == "" {
		return p.connection.String()
	}
	return fmt.Sprintf("%s %s", nodeID, p.connection)
}

// HandshakeState returns the handshake progress of the peer
func (p *Peer) HandshakeState() HandshakeState {
	return HandshakeState(atomic.LoadUint32(&p.handshakeState))
}

// SetHandshakeState moves the peer to state
func (p *Peer) SetHandshakeState(state HandshakeState) {
	atomic.StoreUint32(&p.handshakeState, uint32(state))
}

// UpdateFromHandshake stores what the peer announced in its handshake
func (p *Peer) UpdateFromHandshake(msg *appmessage.MsgHandshake) {
	p.infoLock.Lock()
	defer p.infoLock.Unlock()

	p.nodeID = msg.NodeID
	p.protocolVersion = msg.Version
	p.network = msg.Network
	p.bestHeight = msg.BestHeight
}

// NodeID returns the node id the peer announced
func (p *Peer) NodeID() string {
	p.infoLock.RLock()
	defer p.infoLock.RUnlock()
	return p.nodeID
}

// ProtocolVersion returns the protocol version the peer announced
func (p *Peer) ProtocolVersion() uint32 {
	p.infoLock.RLock()
	defer p.infoLock.RUnlock()
	return p.protocolVersion
}

// Network returns the network name the peer announced
func (p *Peer) Network() string {
	p.infoLock.RLock()
	defer p.infoLock.RUnlock()
	return p.network
}

// BestHeight returns the highest block height known to the peer
func (p *Peer) BestHeight() uint64 {
	p.infoLock.RLock()
	defer p.infoLock.RUnlock()
	return p.bestHeight
}

// UpdateBestHeight raises the peer's best height to height. Lower heights
// are ignored.
func (p *Peer) UpdateBestHeight(height uint64) {
	p.infoLock.Lock()
	defer p.infoLock.Unlock()
	if height > p.bestHeight {
		p.bestHeight = height
	}
}

// Info returns the peer as it is advertised to other peers
func (p *Peer) Info() *appmessage.PeerInfo {
	host, port, err := network.SplitAddress(p.Address())
	if err != nil {
		log.Debugf("Cannot split the address of %s: %s", p, err)
		host = p.Address()
	}

	p.infoLock.RLock()
	defer p.infoLock.RUnlock()
	return &appmessage.PeerInfo{
		Address:    host,
		Port:       port,
		NodeID:     p.nodeID,
		Version:    p.protocolVersion,
		BestHeight: p.bestHeight,
	}
}

// MarkAsReady attaches the routes of the started connection. The
// handshake must be confirmed.
func (p *Peer) MarkAsReady(outgoingRoute, pongRoute *routerpkg.Route) error {
	if p.HandshakeState() != HandshakeStateConfirmed {
		return errors.Errorf("peer %s cannot become ready in state %s", p, p.HandshakeState())
	}
	if atomic.LoadUint32(&p.ready) != 0 {
		return errors.Errorf("peer %s is already ready", p)
	}
	p.outgoingRoute = outgoingRoute
	p.pongRoute = pongRoute
	atomic.StoreUint32(&p.ready, 1)
	return nil
}

// IsReady returns whether the peer's routes are attached
func (p *Peer) IsReady() bool {
	return atomic.LoadUint32(&p.ready) != 0
}

// Enqueue queues message to be sent to the peer
func (p *Peer) Enqueue(message appmessage.Message) error {
	if !p.IsReady() {
		return ErrNotReady
	}
	return p.outgoingRoute.Enqueue(message)
}

// Ping sends a Ping stamped with the current time and waits up to timeout
// for the matching Pong. It returns the round trip latency. Stale pongs of
// earlier pings are skipped.
func (p *Peer) Ping(timeout time.Duration) (time.Duration, error) {
	if !p.IsReady() {
		return 0, ErrNotReady
	}

	p.pingLock.Lock()
	defer p.pingLock.Unlock()

	sentAt := time.Now()
	timestamp := uint64(sentAt.UnixMilli())
	p.setPingPending(timestamp)
	defer p.setPingIdle()

	err := p.outgoingRoute.Enqueue(appmessage.NewMsgPing(timestamp))
	if err != nil {
		return 0, err
	}

	deadline := sentAt.Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, errors.Wrapf(routerpkg.ErrTimeout, "no pong from %s within %s", p, timeout)
		}
		message, err := p.pongRoute.DequeueWithTimeout(remaining)
		if err != nil {
			return 0, err
		}
		pong, ok := message.(*appmessage.MsgPong)
		if !ok {
			return 0, errors.Errorf("unexpected %s on the pong route of %s", message.Command(), p)
		}
		if pong.Timestamp < timestamp {
			log.Debugf("Skipping stale pong %d from %s", pong.Timestamp, p)
			continue
		}
		if pong.Timestamp != timestamp {
			return 0, protocolerrors.Errorf(true, "pong timestamp %d does not match ping timestamp %d",
				pong.Timestamp, timestamp)
		}

		latency := time.Duration(max(0, time.Now().UnixMilli()-int64(pong.Timestamp))) * time.Millisecond
		p.setLastPingDuration(latency)
		log.Debugf("Pong from %s, latency %s", p, latency)
		return latency, nil
	}
}

func (p *Peer) setPingPending(timestamp uint64) {
	p.pingStateLock.Lock()
	defer p.pingStateLock.Unlock()
	p.pendingPingTimestamp = timestamp
}

func (p *Peer) setPingIdle() {
	p.pingStateLock.Lock()
	defer p.pingStateLock.Unlock()
	p.pendingPingTimestamp = 0
}

func (p *Peer) setLastPingDuration(duration time.Duration) {
	p.pingStateLock.Lock()
	defer p.pingStateLock.Unlock()
	p.lastPingDuration = duration
}

// PendingPing returns the timestamp of the ping awaiting a pong, if any
func (p *Peer) PendingPing() (timestamp uint64, isPending bool) {
	p.pingStateLock.RLock()
	defer p.pingStateLock.RUnlock()
	return p.pendingPingTimestamp, p.pendingPingTimestamp != 0
}

// LastPingDuration returns the latency measured by the last successful ping
func (p *Peer) LastPingDuration() time.Duration {
	p.pingStateLock.RLock()
	defer p.pingStateLock.RUnlock()
	return p.lastPingDuration
}

// Disconnect closes the connection to the peer
func (p *Peer) Disconnect() {
	p.connection.Disconnect()
}
