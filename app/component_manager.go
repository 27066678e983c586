package app

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gxcnet/gxcpeerd/app/protocol"
	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/domain/consensus/ruleerrors"
	"github.com/gxcnet/gxcpeerd/domain/consensus/validator"
	"github.com/gxcnet/gxcpeerd/domain/syncmanager"
	"github.com/gxcnet/gxcpeerd/infrastructure/clock"
	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	infrastructuredatabase "github.com/gxcnet/gxcpeerd/infrastructure/db/database"
	"github.com/gxcnet/gxcpeerd/infrastructure/metrics"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/connmanager"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/rpcclient"
	"github.com/gxcnet/gxcpeerd/util/panics"
	"github.com/pkg/errors"
)

// ComponentManager is a wrapper for all the gxcpeerd services
type ComponentManager struct {
	cfg               *config.Config
	ntpClock          *clock.NTPClock
	chainStore        *chainstore.ChainStore
	syncManager       *syncmanager.SyncManager
	rpcClient         *rpcclient.RPCClient
	protocolManager   *protocol.Manager
	connectionManager *connmanager.ConnectionManager
	metrics           *metrics.Metrics

	backgroundWaitGroup sync.WaitGroup
	started, shutdown   int32
}

// Start launches all the gxcpeerd services.
func (a *ComponentManager) Start() {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting gxcpeerd")

	if a.ntpClock != nil {
		a.ntpClock.Start()
	}

	if a.cfg.MetricsListen != "" {
		err := a.metrics.Start(a.cfg.MetricsListen)
		if err != nil {
			panics.Exit(log, fmt.Sprintf("Error starting the metrics server: %+v", err))
		}
	}

	err := a.protocolManager.Start()
	if err != nil {
		panics.Exit(log, fmt.Sprintf("Error starting the p2p protocol: %+v", err))
	}

	if a.cfg.NoSync {
		a.startOutboundConnections()
		return
	}

	// Outbound peers are dialed once the initial sync is over, so that
	// blocks they deliver cannot race the sync for the same heights.
	a.spawnBackground("ComponentManager.Start-sync", func() {
		defer a.startOutboundConnections()

		if !a.rpcClient.HealthCheck() {
			log.Warnf("Upstream node %s is unreachable, skipping the initial sync", a.cfg.RPCURL)
			return
		}
		a.logUpstreamInfo()
		err := a.Sync()
		switch {
		case err == nil, errors.Is(err, syncmanager.ErrInterrupted):
		case errors.Is(err, ruleerrors.ErrUnexpectedHeight):
			log.Infof("Initial sync from %s stopped at height %d, blocks from peers got there first",
				a.cfg.RPCURL, a.chainStore.Height())
		default:
			log.Warnf("Initial sync from %s failed: %s", a.cfg.RPCURL, err)
		}
	})
}

func (a *ComponentManager) startOutboundConnections() {
	for _, address := range a.outboundAddresses() {
		a.connectionManager.AddConnectionRequest(address, true)
	}
	a.connectionManager.Start()
}

func (a *ComponentManager) logUpstreamInfo() {
	info, err := a.rpcClient.GetInfo()
	if err != nil {
		log.Debugf("Could not get info from the upstream node: %s", err)
		return
	}
	log.Infof("Upstream node %s is on %s at %d blocks", a.cfg.RPCURL, info.Chain, info.Blocks)
}

func (a *ComponentManager) outboundAddresses() []string {
	addresses := a.cfg.AddPeers
	if a.cfg.ConnectAddress == "" {
		return addresses
	}
	for _, address := range addresses {
		if address == a.cfg.ConnectAddress {
			return addresses
		}
	}
	return append(addresses[:len(addresses):len(addresses)], a.cfg.ConnectAddress)
}

func (a *ComponentManager) spawnBackground(name string, f func()) {
	a.backgroundWaitGroup.Add(1)
	spawn(name, func() {
		defer a.backgroundWaitGroup.Done()
		f()
	})
}

// Stop gracefully shuts down all the gxcpeerd services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("gxcpeerd is already in the process of shutting down")
		return
	}

	log.Warnf("gxcpeerd shutting down")

	a.syncManager.Stop()
	a.connectionManager.Stop()

	if atomic.LoadInt32(&a.started) != 0 {
		err := a.protocolManager.Stop()
		if err != nil {
			log.Errorf("Error stopping the p2p protocol: %+v", err)
		}
	}
	a.backgroundWaitGroup.Wait()

	err := a.metrics.Stop()
	if err != nil {
		log.Errorf("Error stopping the metrics server: %+v", err)
	}

	if a.ntpClock != nil {
		a.ntpClock.Stop()
	}
}

// Sync fetches every block the upstream node has beyond the local tip
func (a *ComponentManager) Sync() error {
	err := a.syncManager.SyncFromSource()
	if result := a.syncManager.LastResult(); result != nil {
		a.metrics.BlocksAccepted(metrics.SourceSync, result.Appended)
	}
	if ruleerrors.IsRuleError(err) {
		a.metrics.BlockRejected(metrics.SourceSync)
	}
	return err
}

// ChainStore returns the chain store of this node
func (a *ComponentManager) ChainStore() *chainstore.ChainStore {
	return a.chainStore
}

// ProtocolManager returns the p2p protocol manager of this node
func (a *ComponentManager) ProtocolManager() *protocol.Manager {
	return a.protocolManager
}

// NewComponentManager returns a new ComponentManager instance over db.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config, db infrastructuredatabase.Database) (*ComponentManager, error) {
	nodeMetrics := metrics.New()

	var validatorClock clock.Clock = clock.SystemClock{}
	var ntpClock *clock.NTPClock
	if cfg.NTPServer != "" {
		ntpClock = clock.NewNTPClock(cfg.NTPServer, clock.DefaultNTPSyncInterval)
		validatorClock = ntpClock
		err := nodeMetrics.RegisterClock(ntpClock)
		if err != nil {
			return nil, err
		}
	}

	chainStore, err := chainstore.New(validator.New(cfg.ActiveNetParams, validatorClock), db)
	if err != nil {
		return nil, err
	}

	rpcClient := rpcclient.NewRPCClient(cfg.RPCURL)
	rpcClient.SetTimeout(cfg.RPCTimeout)
	syncManager := syncmanager.New(chainStore, rpcClient)
	syncManager.SetOnProgress(nodeMetrics.SetSyncProgress)

	netAdapter, err := netadapter.NewNetAdapter(cfg)
	if err != nil {
		return nil, err
	}

	protocolManager, err := protocol.NewManager(cfg, chainStore, netAdapter, nodeMetrics)
	if err != nil {
		return nil, err
	}
	protocolManager.SetUpstream(syncManager)
	connectionManager := connmanager.New(netAdapter, protocolManager.ConnectToPeer)

	nodeMetrics.SetChainHeight(chainStore.Height())
	chainStore.SetOnBlockAdded(func(block *model.Block) {
		nodeMetrics.SetChainHeight(block.Height + 1)
		protocolManager.UpdateBestHeight(block.Height + 1)
	})

	return &ComponentManager{
		cfg:               cfg,
		ntpClock:          ntpClock,
		chainStore:        chainStore,
		syncManager:       syncManager,
		rpcClient:         rpcClient,
		protocolManager:   protocolManager,
		connectionManager: connectionManager,
		metrics:           nodeMetrics,
	}, nil
}
