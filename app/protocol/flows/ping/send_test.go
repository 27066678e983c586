package ping

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
	routerpkg "github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter/router"
)

type fakeContext struct {
	shutdownChan chan struct{}
}

func (f *fakeContext) ShutdownChan() <-chan struct{} {
	return f.shutdownChan
}

func newReadyPeer(t *testing.T) (*peerpkg.Peer, net.Conn) {
	remote, local := net.Pipe()
	connection := netadapter.NewNetConnection(local, true)
	peer := peerpkg.New(connection)
	peer.UpdateFromHandshake(appmessage.NewMsgHandshake("remote-node", 0, "testnet"))
	peer.SetHandshakeState(peerpkg.HandshakeStateConfirmed)

	router := routerpkg.NewRouter()
	pongRoute, err := router.AddIncomingRoute("pong", []appmessage.MessageCommand{appmessage.CmdPong})
	if err != nil {
		t.Fatalf("AddIncomingRoute unexpectedly failed: %s", err)
	}
	connection.Start(router)
	err = peer.MarkAsReady(router.OutgoingRoute(), pongRoute)
	if err != nil {
		t.Fatalf("MarkAsReady unexpectedly failed: %s", err)
	}
	t.Cleanup(func() {
		peer.Disconnect()
		remote.Close()
	})
	return peer, remote
}

// answerPings answers the first goodPongs pings correctly and every later
// one with a mismatching timestamp
func answerPings(remote net.Conn, goodPongs int32, answered *int32) {
	go func() {
		for {
			message, err := netadapter.ReadMessage(remote)
			if err != nil {
				return
			}
			ping, ok := message.(*appmessage.MsgPing)
			if !ok {
				return
			}
			timestamp := ping.Timestamp
			if atomic.AddInt32(answered, 1) > goodPongs {
				timestamp += 1000
			}
			err = netadapter.WriteMessage(remote, appmessage.NewMsgPong(timestamp))
			if err != nil {
				return
			}
		}
	}()
}

func TestSendPings(t *testing.T) {
	peer, remote := newReadyPeer(t)
	answered := int32(0)
	answerPings(remote, 2, &answered)

	context := &fakeContext{shutdownChan: make(chan struct{})}
	err := SendPings(context, peer, 10*time.Millisecond)
	if !protocolerrors.IsProtocolError(err) {
		t.Fatalf("TestSendPings: expected a protocol error after a bad pong but got %v", err)
	}
	if atomic.LoadInt32(&answered) != 3 {
		t.Fatalf("TestSendPings: expected 3 pings but the remote answered %d", atomic.LoadInt32(&answered))
	}
	if peer.LastPingDuration() < 0 {
		t.Fatalf("TestSendPings: negative ping duration %s", peer.LastPingDuration())
	}
}

func TestSendPingsShutdown(t *testing.T) {
	peer, remote := newReadyPeer(t)
	answered := int32(0)
	answerPings(remote, 1000, &answered)

	context := &fakeContext{shutdownChan: make(chan struct{})}
	errChan := make(chan error, 1)
	go func() {
		errChan <- SendPings(context, peer, 10*time.Millisecond)
	}()

	time.Sleep(50 * time.Millisecond)
	close(context.shutdownChan)

	select {
	case err := <-errChan:
		if err != nil {
			t.Fatalf("TestSendPingsShutdown: expected no error on shutdown but got %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("TestSendPingsShutdown: SendPings did not return after shutdown")
	}
}
