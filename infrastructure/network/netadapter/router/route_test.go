package router

import (
	"testing"
	"time"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/pkg/errors"
)

func TestRouteCapacity(t *testing.T) {
	route := newRouteWithCapacity("test", 2)
	for i := 0; i < 2; i++ {
		err := route.Enqueue(appmessage.NewMsgPing(uint64(i)))
		if err != nil {
			t.Fatalf("TestRouteCapacity: Enqueue unexpectedly failed: %s", err)
		}
	}
	err := route.Enqueue(appmessage.NewMsgPing(2))
	if !errors.Is(err, ErrRouteCapacityReached) {
		t.Fatalf("TestRouteCapacity: expected ErrRouteCapacityReached, got %v", err)
	}
	if !protocolerrors.IsProtocolError(err) {
		t.Fatalf("TestRouteCapacity: expected a protocol error, got %v", err)
	}
}

func TestRouteDequeueWithTimeout(t *testing.T) {
	route := NewRoute("test")
	_, err := route.DequeueWithTimeout(10 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("TestRouteDequeueWithTimeout: expected ErrTimeout, got %v", err)
	}

	err = route.Enqueue(appmessage.NewMsgPong(5))
	if err != nil {
		t.Fatalf("TestRouteDequeueWithTimeout: Enqueue unexpectedly failed: %s", err)
	}
	message, err := route.DequeueWithTimeout(time.Second)
	if err != nil {
		t.Fatalf("TestRouteDequeueWithTimeout: DequeueWithTimeout unexpectedly failed: %s", err)
	}
	if message.(*appmessage.MsgPong).Timestamp != 5 {
		t.Fatalf("TestRouteDequeueWithTimeout: got unexpected message %v", message)
	}
}

func TestRouteClose(t *testing.T) {
	route := NewRoute("test")
	route.Close()
	route.Close()

	err := route.Enqueue(appmessage.NewMsgGetPeers())
	if !errors.Is(err, ErrRouteClosed) {
		t.Fatalf("TestRouteClose: expected ErrRouteClosed on Enqueue, got %v", err)
	}
	_, err = route.Dequeue()
	if !errors.Is(err, ErrRouteClosed) {
		t.Fatalf("TestRouteClose: expected ErrRouteClosed on Dequeue, got %v", err)
	}
}

func TestRouterRoutesByCommand(t *testing.T) {
	router := NewRouter()
	pongRoute, err := router.AddIncomingRoute("pong", []appmessage.MessageCommand{appmessage.CmdPong})
	if err != nil {
		t.Fatalf("TestRouterRoutesByCommand: AddIncomingRoute unexpectedly failed: %s", err)
	}
	otherRoute, err := router.AddIncomingRoute("other",
		[]appmessage.MessageCommand{appmessage.CmdPing, appmessage.CmdGetPeers})
	if err != nil {
		t.Fatalf("TestRouterRoutesByCommand: AddIncomingRoute unexpectedly failed: %s", err)
	}
	_, err = router.AddIncomingRoute("duplicate", []appmessage.MessageCommand{appmessage.CmdPing})
	if err == nil {
		t.Fatalf("TestRouterRoutesByCommand: expected adding a duplicate route to fail")
	}

	for _, message := range []appmessage.Message{
		appmessage.NewMsgPing(1), appmessage.NewMsgPong(1), appmessage.NewMsgGetPeers(),
	} {
		err := router.EnqueueIncomingMessage(message)
		if err != nil {
			t.Fatalf("TestRouterRoutesByCommand: EnqueueIncomingMessage unexpectedly failed: %s", err)
		}
	}
	err = router.EnqueueIncomingMessage(appmessage.NewMsgGetBlocks(0, 1))
	if !protocolerrors.IsProtocolError(err) {
		t.Fatalf("TestRouterRoutesByCommand: expected a protocol error for an unrouted message, got %v", err)
	}

	message, err := pongRoute.DequeueWithTimeout(time.Second)
	if err != nil || message.Command() != appmessage.CmdPong {
		t.Fatalf("TestRouterRoutesByCommand: got %v from the pong route, err %v", message, err)
	}
	first, _ := otherRoute.DequeueWithTimeout(time.Second)
	second, _ := otherRoute.DequeueWithTimeout(time.Second)
	if first.Command() != appmessage.CmdPing || second.Command() != appmessage.CmdGetPeers {
		t.Fatalf("TestRouterRoutesByCommand: got %s, %s from the other route", first.Command(), second.Command())
	}

	err = router.RemoveRoute([]appmessage.MessageCommand{appmessage.CmdPong})
	if err != nil {
		t.Fatalf("TestRouterRoutesByCommand: RemoveRoute unexpectedly failed: %s", err)
	}
	router.Close()
	_, err = otherRoute.Dequeue()
	if !errors.Is(err, ErrRouteClosed) {
		t.Fatalf("TestRouterRoutesByCommand: expected routes to be closed with the router, got %v", err)
	}
}

func TestRouteCloseKeepsQueuedMessages(t *testing.T) {
	route := NewRoute("test")
	err := route.Enqueue(appmessage.NewMsgPing(7))
	if err != nil {
		t.Fatalf("TestRouteCloseKeepsQueuedMessages: Enqueue unexpectedly failed: %s", err)
	}
	route.Close()

	message, err := route.Dequeue()
	if err != nil {
		t.Fatalf("TestRouteCloseKeepsQueuedMessages: Dequeue of the queued message unexpectedly failed: %s", err)
	}
	if message.(*appmessage.MsgPing).Timestamp != 7 {
		t.Fatalf("TestRouteCloseKeepsQueuedMessages: got unexpected message %v", message)
	}
	_, err = route.DequeueWithTimeout(time.Second)
	if !errors.Is(err, ErrRouteClosed) {
		t.Fatalf("TestRouteCloseKeepsQueuedMessages: expected ErrRouteClosed once drained, got %v", err)
	}
}
