package connmanager

import (
	"sync/atomic"
	"time"
)

const (
	minRetryDuration = 30 * time.Second
	maxRetryDuration = 10 * time.Minute
)

func nextRetryDuration(previousDuration time.Duration) time.Duration {
	if previousDuration < minRetryDuration {
		return minRetryDuration
	}
	if previousDuration*2 > maxRetryDuration {
		return maxRetryDuration
	}
	return previousDuration * 2
}

// checkRequestedConnections checks that all activeRequested are still
// active, and initiates connections for pendingRequested.
func (c *ConnectionManager) checkRequestedConnections(connSet connectionSet) {
	c.connectionRequestsLock.Lock()
	defer c.connectionRequestsLock.Unlock()

	now := time.Now()

	for address, connReq := range c.activeRequested {
		connection, ok := connSet.get(address)
		if !ok { // a requested connection was disconnected
			delete(c.activeRequested, address)

			if connReq.isPermanent { // if is one-try - ignore. If permanent - add to pending list to retry
				log.Infof("Requested connection to %s was lost", address)
				connReq.nextAttempt = now
				connReq.retryDuration = 0
				c.pendingRequested[address] = connReq
			}
			continue
		}

		connSet.remove(connection)
	}

	for address, connReq := range c.pendingRequested {
		if atomic.LoadUint32(&c.stop) != 0 {
			return
		}
		if connReq.nextAttempt.After(now) { // ignore connection requests which are still waiting for retry
			continue
		}

		connection, ok := connSet.get(address)
		if ok { // somehow the pending request has already connected - move it to active
			delete(c.pendingRequested, address)
			c.activeRequested[address] = connReq
			connSet.remove(connection)
			continue
		}

		err := c.initiateConnection(connReq.address)
		if err == nil { // if connected successfully - move from pending to active
			delete(c.pendingRequested, address)
			c.activeRequested[address] = connReq
			continue
		}

		log.Infof("Couldn't connect to %s: %s", address, err)
		if !connReq.isPermanent { // if connection request is one try - remove from pending and ignore failure
			delete(c.pendingRequested, address)
			continue
		}

		// if connection request is permanent - keep in pending, and increase retry time
		connReq.retryDuration = nextRetryDuration(connReq.retryDuration)
		connReq.nextAttempt = now.Add(connReq.retryDuration)
		log.Debugf("Retrying connection to %s in %s", address, connReq.retryDuration)
	}
}
