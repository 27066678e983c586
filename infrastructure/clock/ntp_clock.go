package clock

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/pkg/errors"
)

const (
	// DefaultNTPSyncInterval is how often a healthy NTPClock re-queries its
	// server.
	DefaultNTPSyncInterval = 10 * time.Minute

	ntpBackoffInitial = 5 * time.Second
	ntpBackoffMax     = 5 * time.Minute
)

type ntpQueryFunc func(server string) (time.Duration, error)

func queryNTPOffset(server string) (time.Duration, error) {
	response, err := ntp.Query(server)
	if err != nil {
		return 0, errors.Wrapf(err, "could not query NTP server %s", server)
	}
	err = response.Validate()
	if err != nil {
		return 0, errors.Wrapf(err, "invalid response from NTP server %s", server)
	}
	return response.ClockOffset, nil
}

// NTPClock is a Clock that corrects the system time with the offset
// reported by an NTP server. The offset is refreshed periodically in the
// background, with an exponential backoff while the server is unreachable.
// Until the first successful query the offset is zero.
type NTPClock struct {
	server       string
	syncInterval time.Duration
	query        ntpQueryFunc

	lock      sync.RWMutex
	offset    time.Duration
	lastSync  time.Time
	lastError error

	quit     chan struct{}
	stopOnce sync.Once
}

// NewNTPClock returns an NTPClock that queries server every syncInterval
func NewNTPClock(server string, syncInterval time.Duration) *NTPClock {
	return newNTPClock(server, syncInterval, queryNTPOffset)
}

func newNTPClock(server string, syncInterval time.Duration, query ntpQueryFunc) *NTPClock {
	if syncInterval <= 0 {
		syncInterval = DefaultNTPSyncInterval
	}
	return &NTPClock{
		server:       server,
		syncInterval: syncInterval,
		query:        query,
		quit:         make(chan struct{}),
	}
}

// Now returns the system time corrected by the last known NTP offset
func (c *NTPClock) Now() time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return time.Now().Add(c.offset)
}

// Offset returns the last known offset, the time of the last successful
// query and the error of the last query, if it failed.
func (c *NTPClock) Offset() (offset time.Duration, lastSync time.Time, lastError error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.offset, c.lastSync, c.lastError
}

// Sync queries the NTP server once and updates the offset on success
func (c *NTPClock) Sync() error {
	offset, err := c.query(c.server)

	c.lock.Lock()
	defer c.lock.Unlock()
	c.lastError = err
	if err != nil {
		return err
	}
	c.offset = offset
	c.lastSync = time.Now()
	return nil
}

// Start performs an initial query and launches the background refresh
// loop. A failed initial query is logged and leaves the offset at zero.
func (c *NTPClock) Start() {
	err := c.Sync()
	if err != nil {
		log.Warnf("Initial NTP sync with %s failed, using the system clock: %s", c.server, err)
	} else {
		offset, _, _ := c.Offset()
		log.Infof("NTP clock synced with %s, offset %s", c.server, offset)
	}
	spawn("NTPClock.syncLoop", c.syncLoop)
}

// Stop terminates the background refresh loop
func (c *NTPClock) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
	})
}

func (c *NTPClock) syncLoop() {
	backoff := time.Duration(0)
	for {
		wait := c.syncInterval
		if backoff > 0 {
			wait = backoff
		}

		select {
		case <-c.quit:
			return
		case <-time.After(wait):
		}

		err := c.Sync()
		if err != nil {
			if backoff == 0 {
				backoff = ntpBackoffInitial
			} else {
				backoff *= 2
			}
			if backoff > ntpBackoffMax {
				backoff = ntpBackoffMax
			}
			log.Debugf("NTP sync with %s failed, retrying in %s: %s", c.server, backoff, err)
			continue
		}
		backoff = 0
	}
}
