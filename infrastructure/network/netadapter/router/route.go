package router

import (
	"sync"
	"time"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/pkg/errors"
)

// DefaultMaxMessages is the number of messages a route holds unless
// created with another capacity
const DefaultMaxMessages = 1000

var (
	// ErrTimeout is returned when DequeueWithTimeout gets no message in time.
	ErrTimeout = protocolerrors.New(false, "timeout expired")

	// ErrRouteClosed is returned by operations on a closed route.
	ErrRouteClosed = errors.New("route is closed")

	// ErrRouteCapacityReached is returned by Enqueue on a full route.
	ErrRouteCapacityReached = protocolerrors.New(false, "route capacity has been reached")
)

// Route is a bounded queue of messages between a connection and the flows
// of its peer. Enqueue never blocks.
type Route struct {
	name     string
	messages chan appmessage.Message

	// lock guards closed, so Enqueue never sends on a closed channel
	lock   sync.Mutex
	closed bool
}

// NewRoute creates a Route holding up to DefaultMaxMessages messages
func NewRoute(name string) *Route {
	return newRouteWithCapacity(name, DefaultMaxMessages)
}

func newRouteWithCapacity(name string, capacity int) *Route {
	return &Route{
		name:     name,
		messages: make(chan appmessage.Message, capacity),
	}
}

// Enqueue adds message to the route, or fails at once if the route is
// closed or full
func (r *Route) Enqueue(message appmessage.Message) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return errors.Wrapf(ErrRouteClosed, "route '%s' is closed", r.name)
	}
	select {
	case r.messages <- message:
		return nil
	default:
		return errors.Wrapf(ErrRouteCapacityReached, "route '%s' reached capacity of %d",
			r.name, cap(r.messages))
	}
}

// Dequeue waits for the next message of the route
func (r *Route) Dequeue() (appmessage.Message, error) {
	return r.dequeue(nil)
}

// DequeueWithTimeout waits up to timeout for the next message of the
// route
func (r *Route) DequeueWithTimeout(timeout time.Duration) (appmessage.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	message, err := r.dequeue(timer.C)
	if errors.Is(err, ErrTimeout) {
		return nil, errors.Wrapf(err, "route '%s' got no message within %s", r.name, timeout)
	}
	return message, err
}

// dequeue waits for a message until expired fires. A nil expired waits
// forever.
func (r *Route) dequeue(expired <-chan time.Time) (appmessage.Message, error) {
	select {
	case message, isOpen := <-r.messages:
		if !isOpen {
			return nil, errors.Wrapf(ErrRouteClosed, "route '%s' is closed", r.name)
		}
		return message, nil
	case <-expired:
		return nil, ErrTimeout
	}
}

// Close closes the route. Messages already queued can still be dequeued.
// Closing an already closed route does nothing.
func (r *Route) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	close(r.messages)
}
