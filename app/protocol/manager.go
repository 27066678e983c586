package protocol

import (
	"sync"
	"sync/atomic"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/flowcontext"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	"github.com/gxcnet/gxcpeerd/infrastructure/metrics"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
	"github.com/pkg/errors"
)

// Manager manages the p2p protocol
type Manager struct {
	context          *flowcontext.FlowContext
	netAdapter       *netadapter.NetAdapter
	routersWaitGroup sync.WaitGroup
	isClosed         uint32
}

// NewManager creates a new instance of the p2p protocol manager. The
// network profile is cfg.ActiveNetParams. nodeMetrics may be nil.
func NewManager(cfg *config.Config, chainStore *chainstore.ChainStore, netAdapter *netadapter.NetAdapter,
	nodeMetrics *metrics.Metrics) (*Manager, error) {

	context, err := flowcontext.New(cfg, chainStore, netAdapter, nodeMetrics)
	if err != nil {
		return nil, err
	}

	manager := Manager{
		context:    context,
		netAdapter: netAdapter,
	}
	netAdapter.SetOnConnectedHandler(manager.handleConnection)
	return &manager, nil
}

// Start starts listening for inbound peers
func (m *Manager) Start() error {
	return m.netAdapter.Start()
}

// Stop disconnects every peer and waits until all their flows finish
func (m *Manager) Stop() error {
	if !atomic.CompareAndSwapUint32(&m.isClosed, 0, 1) {
		return errors.New("the protocol manager was already stopped")
	}

	m.context.Close()
	err := m.netAdapter.Stop()
	m.routersWaitGroup.Wait()
	return err
}

// ConnectToPeer dials address, performs the handshake and registers the
// peer. The network's default port is used when address has none.
func (m *Manager) ConnectToPeer(address string) error {
	if atomic.LoadUint32(&m.isClosed) != 0 {
		return errors.New("the protocol manager is stopped")
	}
	normalized, err := m.context.Config().ActiveNetParams.NormalizePeerAddress(address)
	if err != nil {
		return err
	}
	log.Infof("Connecting to peer %s", normalized)
	return m.netAdapter.Connect(normalized)
}

// Broadcast sends message to every registered peer. Per-peer failures are
// logged. The number of peers the message was queued to is returned.
func (m *Manager) Broadcast(message appmessage.Message) int {
	return m.context.Broadcast(message)
}

// AnnounceBlock announces block to every registered peer
func (m *Manager) AnnounceBlock(block *model.Block) int {
	return m.context.AnnounceBlock(block)
}

// RequestBlocks asks every registered peer for count blocks from
// startHeight
func (m *Manager) RequestBlocks(startHeight, count uint64) int {
	return m.context.Broadcast(appmessage.NewMsgGetBlocks(startHeight, count))
}

// Peers returns the currently registered peers
func (m *Manager) Peers() []*peerpkg.Peer {
	return m.context.Peers()
}

// PeerCount returns the number of registered peers
func (m *Manager) PeerCount() int {
	return m.context.PeerCount()
}

// BestHeight returns the best chain height known to this node
func (m *Manager) BestHeight() uint64 {
	return m.context.BestHeight()
}

// UpdateBestHeight sets the best chain height announced in handshakes
func (m *Manager) UpdateBestHeight(height uint64) {
	m.context.UpdateBestHeight(height)
}

// SetUpstream sets the node blocks accepted from peers are relayed to
// when the configuration enables relaying
func (m *Manager) SetUpstream(upstream flowcontext.BlockSubmitter) {
	m.context.SetUpstream(upstream)
}

// ListenAddress returns the address peers can connect to, or an empty
// string before Start
func (m *Manager) ListenAddress() string {
	address := m.netAdapter.ListenAddress()
	if address == nil {
		return ""
	}
	return address.String()
}

// Context returns the manager's flow context
func (m *Manager) Context() *flowcontext.FlowContext {
	return m.context
}
