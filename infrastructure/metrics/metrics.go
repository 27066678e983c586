package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pkg/errors"
)

const namespace = "gxcpeerd"

// Block sources used as the "source" label of the block counters
const (
	SourceSync = "sync"
	SourcePeer = "peer"
)

const shutdownTimeout = 5 * time.Second

// Metrics holds the node's prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can be used without metrics.
type Metrics struct {
	registry *prometheus.Registry

	chainHeight      prometheus.Gauge
	peerCount        prometheus.Gauge
	syncProgress     prometheus.Gauge
	blocksAccepted   *prometheus.CounterVec
	blocksRejected   *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec

	server *http.Server
}

// New creates a Metrics with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_height",
			Help:      "Height of the local chain tip",
		}),
		peerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers",
			Help:      "Number of registered peers",
		}),
		syncProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_progress_percent",
			Help:      "Progress of the running upstream synchronization",
		}),
		blocksAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_accepted_total",
			Help:      "Blocks appended to the chain",
		}, []string{"source"}),
		blocksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_rejected_total",
			Help:      "Blocks that failed validation",
		}, []string{"source"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Peer messages received, by type",
		}, []string{"type"}),
	}

	m.registry.MustRegister(m.chainHeight, m.peerCount, m.syncProgress,
		m.blocksAccepted, m.blocksRejected, m.messagesReceived)
	return m
}

// Registry returns the registry all collectors are registered in
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetChainHeight records the height of the local tip
func (m *Metrics) SetChainHeight(height uint64) {
	if m == nil {
		return
	}
	m.chainHeight.Set(float64(height))
}

// SetPeerCount records the number of registered peers
func (m *Metrics) SetPeerCount(count int) {
	if m == nil {
		return
	}
	m.peerCount.Set(float64(count))
}

// SetSyncProgress records the sync progress in percent
func (m *Metrics) SetSyncProgress(percent float64) {
	if m == nil {
		return
	}
	m.syncProgress.Set(percent)
}

// BlockAccepted counts a block appended from source
func (m *Metrics) BlockAccepted(source string) {
	if m == nil {
		return
	}
	m.blocksAccepted.WithLabelValues(source).Inc()
}

// BlocksAccepted counts count blocks appended from source
func (m *Metrics) BlocksAccepted(source string, count uint64) {
	if m == nil {
		return
	}
	m.blocksAccepted.WithLabelValues(source).Add(float64(count))
}

// BlockRejected counts a block from source that failed validation
func (m *Metrics) BlockRejected(source string) {
	if m == nil {
		return
	}
	m.blocksRejected.WithLabelValues(source).Inc()
}

// MessageReceived counts a received peer message of the given type
func (m *Metrics) MessageReceived(messageType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(messageType).Inc()
}

// Handler returns the HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Start serves the metrics on listen under /metrics
func (m *Metrics) Start(listen string) error {
	if m == nil {
		return errors.New("metrics are disabled")
	}
	if m.server != nil {
		return errors.New("metrics server is already running")
	}

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Wrapf(err, "failed to listen for metrics on %s", listen)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	server := m.server
	spawn("Metrics.serve", func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server stopped: %s", err)
		}
	})
	log.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	return nil
}

// Stop shuts the metrics server down, if it was started
func (m *Metrics) Stop() error {
	if m == nil || m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := m.server.Shutdown(ctx)
	m.server = nil
	return errors.WithStack(err)
}
