package flowcontext

import (
	"sync"

	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	"github.com/gxcnet/gxcpeerd/infrastructure/metrics"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// seenBlocksCacheSize is the number of recently relayed block hashes
// remembered to stop NewBlock announcements from echoing between peers
const seenBlocksCacheSize = 4096

// BlockSubmitter accepts blocks relayed to the upstream node
type BlockSubmitter interface {
	SubmitBlock(block *model.Block) error
}

// FlowContext holds state that is relevant to more than one flow or one peer, and allows communication between
// different flows that can be associated to different peers.
type FlowContext struct {
	cfg        *config.Config
	chainStore *chainstore.ChainStore
	netAdapter *netadapter.NetAdapter
	metrics    *metrics.Metrics
	upstream   BlockSubmitter

	// peers is keyed by node id, not by address. A node reachable under
	// two addresses, or dialed while it dials us, still gets one session.
	peers      map[string]*peerpkg.Peer
	peersMutex sync.RWMutex

	bestHeight     uint64
	bestHeightLock sync.RWMutex

	seenBlocks *lru.Cache[string, struct{}]

	shutdownChan chan struct{}
	closeOnce    sync.Once
}

// New returns a new instance of FlowContext. The best height starts at
// the height of chainStore.
func New(cfg *config.Config, chainStore *chainstore.ChainStore, netAdapter *netadapter.NetAdapter,
	nodeMetrics *metrics.Metrics) (*FlowContext, error) {

	seenBlocks, err := lru.New[string, struct{}](seenBlocksCacheSize)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &FlowContext{
		cfg:          cfg,
		chainStore:   chainStore,
		netAdapter:   netAdapter,
		metrics:      nodeMetrics,
		peers:        make(map[string]*peerpkg.Peer),
		bestHeight:   chainStore.Height(),
		seenBlocks:   seenBlocks,
		shutdownChan: make(chan struct{}),
	}, nil
}

// Config returns the node configuration
func (f *FlowContext) Config() *config.Config {
	return f.cfg
}

// ChainStore returns the local chain
func (f *FlowContext) ChainStore() *chainstore.ChainStore {
	return f.chainStore
}

// NetAdapter returns the net adapter the peers are connected through
func (f *FlowContext) NetAdapter() *netadapter.NetAdapter {
	return f.netAdapter
}

// Metrics returns the node metrics. It may be nil.
func (f *FlowContext) Metrics() *metrics.Metrics {
	return f.metrics
}

// SetUpstream sets the node that blocks accepted from peers are relayed
// to when the configuration asks for it
func (f *FlowContext) SetUpstream(upstream BlockSubmitter) {
	f.upstream = upstream
}

// ShutdownChan is closed when the context is closed
func (f *FlowContext) ShutdownChan() <-chan struct{} {
	return f.shutdownChan
}

// Close signals every flow to stop
func (f *FlowContext) Close() {
	f.closeOnce.Do(func() {
		close(f.shutdownChan)
	})
}

// BestHeight returns the best chain height known to this node
func (f *FlowContext) BestHeight() uint64 {
	f.bestHeightLock.RLock()
	defer f.bestHeightLock.RUnlock()
	return f.bestHeight
}

// UpdateBestHeight sets the best chain height known to this node
func (f *FlowContext) UpdateBestHeight(height uint64) {
	f.bestHeightLock.Lock()
	defer f.bestHeightLock.Unlock()
	f.bestHeight = height
}
