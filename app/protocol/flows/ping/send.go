package ping

import (
	"time"

	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter/router"
	"github.com/pkg/errors"
)

const (
	// Interval is the time between two pings to the same peer
	Interval = 2 * time.Minute

	// Timeout is how long a peer has to answer a ping
	Timeout = 5 * time.Second
)

// ErrPingTimeout signifies that a ping operation timed out.
var ErrPingTimeout = protocolerrors.New(false, "timeout expired on ping")

// SendPingsContext is the interface for the context needed for the SendPings flow.
type SendPingsContext interface {
	ShutdownChan() <-chan struct{}
}

// SendPings pings peer every interval until shutdown or until a ping
// fails, in which case the error is returned.
func SendPings(context SendPingsContext, peer *peerpkg.Peer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-context.ShutdownChan():
			return nil
		case <-ticker.C:
		}

		latency, err := peer.Ping(Timeout)
		if err != nil {
			if errors.Is(err, router.ErrTimeout) {
				return errors.Wrapf(ErrPingTimeout, "%s", err)
			}
			return err
		}
		log.Tracef("Ping to %s took %s", peer, latency)
	}
}
