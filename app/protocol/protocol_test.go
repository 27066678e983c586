package protocol

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/domain/consensus/utils/testutils"
	"github.com/gxcnet/gxcpeerd/domain/consensus/validator"
	"github.com/gxcnet/gxcpeerd/domain/dagconfig"
	"github.com/gxcnet/gxcpeerd/infrastructure/clock"
	"github.com/gxcnet/gxcpeerd/infrastructure/config"
	"github.com/gxcnet/gxcpeerd/infrastructure/metrics"
	"github.com/gxcnet/gxcpeerd/infrastructure/network/netadapter"
)

const (
	testTimeout    = 5 * time.Second
	testDifficulty = 1
)

type testNode struct {
	manager *Manager
	store   *chainstore.ChainStore
	cfg     *config.Config
}

func newTestNode(t *testing.T, testName string, chain []*model.Block, maxPeers int) *testNode {
	cfg := config.DefaultConfig()
	cfg.ActiveNetParams = &dagconfig.TestnetParams
	cfg.Listen = "127.0.0.1:0"
	cfg.MaxPeers = maxPeers

	store, err := chainstore.New(validator.New(cfg.ActiveNetParams, clock.SystemClock{}), nil)
	if err != nil {
		t.Fatalf("%s: chainstore.New unexpectedly failed: %s", testName, err)
	}
	for _, block := range chain {
		err := store.AddBlock(block)
		if err != nil {
			t.Fatalf("%s: AddBlock of block %d unexpectedly failed: %+v", testName, block.Height, err)
		}
	}

	adapter, err := netadapter.NewNetAdapter(cfg)
	if err != nil {
		t.Fatalf("%s: NewNetAdapter unexpectedly failed: %s", testName, err)
	}
	manager, err := NewManager(cfg, store, adapter, metrics.New())
	if err != nil {
		t.Fatalf("%s: NewManager unexpectedly failed: %s", testName, err)
	}
	err = manager.Start()
	if err != nil {
		t.Fatalf("%s: Start unexpectedly failed: %s", testName, err)
	}
	t.Cleanup(func() {
		_ = manager.Stop()
	})
	return &testNode{manager: manager, store: store, cfg: cfg}
}

func waitFor(t *testing.T, testName string, description string, condition func() bool) {
	deadline := time.Now().Add(testTimeout)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("%s: %s did not happen within %s", testName, description, testTimeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// rawPeer speaks the wire protocol directly, to observe exactly what a
// node answers
type rawPeer struct {
	t        *testing.T
	testName string
	conn     net.Conn
	reader   *bufio.Reader
}

func dialRaw(t *testing.T, testName string, address string) *rawPeer {
	conn, err := net.DialTimeout("tcp", address, testTimeout)
	if err != nil {
		t.Fatalf("%s: dial unexpectedly failed: %s", testName, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &rawPeer{t: t, testName: testName, conn: conn, reader: bufio.NewReader(conn)}
}

// handshakeRaw dials address and completes a handshake on network
func handshakeRaw(t *testing.T, testName string, address string, network string) *rawPeer {
	raw := dialRaw(t, testName, address)
	raw.send(appmessage.NewMsgHandshake("raw-peer-"+testName, 0, network))
	message := raw.receive()
	if _, ok := message.(*appmessage.MsgHandshake); !ok {
		t.Fatalf("%s: expected a handshake but got %s", testName, message.Command())
	}
	return raw
}

func (r *rawPeer) send(message appmessage.Message) {
	err := netadapter.WriteMessage(r.conn, message)
	if err != nil {
		r.t.Fatalf("%s: sending %s unexpectedly failed: %s", r.testName, message.Command(), err)
	}
}

func (r *rawPeer) receive() appmessage.Message {
	message, err := r.tryReceive()
	if err != nil {
		r.t.Fatalf("%s: receiving unexpectedly failed: %s", r.testName, err)
	}
	return message
}

func (r *rawPeer) tryReceive() (appmessage.Message, error) {
	err := r.conn.SetReadDeadline(time.Now().Add(testTimeout))
	if err != nil {
		return nil, err
	}
	return netadapter.ReadMessage(r.reader)
}

func TestManagerSyncsFromPeerOnConnect(t *testing.T) {
	chain := testutils.BuildChain(5, testDifficulty)
	nodeA := newTestNode(t, "TestManagerSyncsFromPeerOnConnect", chain, 10)
	nodeB := newTestNode(t, "TestManagerSyncsFromPeerOnConnect", nil, 10)

	err := nodeB.manager.ConnectToPeer(nodeA.manager.ListenAddress())
	if err != nil {
		t.Fatalf("TestManagerSyncsFromPeerOnConnect: ConnectToPeer unexpectedly failed: %s", err)
	}

	waitFor(t, "TestManagerSyncsFromPeerOnConnect", "registration on both sides", func() bool {
		return nodeA.manager.PeerCount() == 1 && nodeB.manager.PeerCount() == 1
	})
	waitFor(t, "TestManagerSyncsFromPeerOnConnect", "catching up to the peer", func() bool {
		return nodeB.store.Height() == 5
	})
	if nodeB.manager.BestHeight() != 5 {
		t.Fatalf("TestManagerSyncsFromPeerOnConnect: expected best height 5 but got %d", nodeB.manager.BestHeight())
	}
	for height, expected := range chain {
		block, err := nodeB.store.Block(uint64(height))
		if err != nil {
			t.Fatalf("TestManagerSyncsFromPeerOnConnect: Block(%d) unexpectedly failed: %s", height, err)
		}
		if !block.Equal(expected) {
			t.Fatalf("TestManagerSyncsFromPeerOnConnect: block %d differs: %s", height, spew.Sdump(block))
		}
	}

	peer := nodeB.manager.Peers()[0]
	if peer.NodeID() != nodeA.cfg.NodeID || !peer.IsOutbound() {
		t.Fatalf("TestManagerSyncsFromPeerOnConnect: unexpected peer %s", peer)
	}
}

func TestManagerRelaysNewBlocks(t *testing.T) {
	chain := testutils.BuildChain(4, testDifficulty)
	base := chain[:3]
	nodeA := newTestNode(t, "TestManagerRelaysNewBlocks", base, 10)
	nodeB := newTestNode(t, "TestManagerRelaysNewBlocks", base, 10)
	nodeC := newTestNode(t, "TestManagerRelaysNewBlocks", base, 10)

	for _, node := range []*testNode{nodeB, nodeC} {
		err := node.manager.ConnectToPeer(nodeA.manager.ListenAddress())
		if err != nil {
			t.Fatalf("TestManagerRelaysNewBlocks: ConnectToPeer unexpectedly failed: %s", err)
		}
	}
	waitFor(t, "TestManagerRelaysNewBlocks", "registration of both peers", func() bool {
		return nodeA.manager.PeerCount() == 2
	})

	newBlock := chain[3]
	err := nodeB.store.AddBlock(newBlock)
	if err != nil {
		t.Fatalf("TestManagerRelaysNewBlocks: AddBlock unexpectedly failed: %s", err)
	}
	if sent := nodeB.manager.AnnounceBlock(newBlock); sent != 1 {
		t.Fatalf("TestManagerRelaysNewBlocks: expected the announcement to reach 1 peer, got %d", sent)
	}

	waitFor(t, "TestManagerRelaysNewBlocks", "relay through the middle node", func() bool {
		return nodeA.store.Height() == 4 && nodeC.store.Height() == 4
	})
	if nodeA.manager.BestHeight() != 4 {
		t.Fatalf("TestManagerRelaysNewBlocks: expected best height 4 but got %d", nodeA.manager.BestHeight())
	}
}

func TestManagerAnswersRequests(t *testing.T) {
	chain := testutils.BuildChain(3, testDifficulty)
	node := newTestNode(t, "TestManagerAnswersRequests", chain, 10)
	raw := handshakeRaw(t, "TestManagerAnswersRequests", node.manager.ListenAddress(), "testnet")
	waitFor(t, "TestManagerAnswersRequests", "registration", func() bool {
		return node.manager.PeerCount() == 1
	})

	raw.send(appmessage.NewMsgPing(12345))
	if pong, ok := raw.receive().(*appmessage.MsgPong); !ok || pong.Timestamp != 12345 {
		t.Fatalf("TestManagerAnswersRequests: expected a pong with timestamp 12345")
	}

	raw.send(appmessage.NewMsgGetPeers())
	peers, ok := raw.receive().(*appmessage.MsgPeers)
	if !ok || len(peers.Peers) != 0 {
		t.Fatalf("TestManagerAnswersRequests: expected an empty peer list since the requester is excluded")
	}

	raw.send(appmessage.NewMsgGetBlocks(1, 1000))
	blocks, ok := raw.receive().(*appmessage.MsgBlocks)
	if !ok || len(blocks.Blocks) != 2 || !blocks.Blocks[0].Equal(chain[1]) || !blocks.Blocks[1].Equal(chain[2]) {
		t.Fatalf("TestManagerAnswersRequests: unexpected answer to GetBlocks")
	}

	raw.send(appmessage.NewMsgGetBlocks(10, 5))
	blocks, ok = raw.receive().(*appmessage.MsgBlocks)
	if !ok || len(blocks.Blocks) != 0 {
		t.Fatalf("TestManagerAnswersRequests: expected no blocks beyond the tip")
	}

	raw.send(appmessage.NewMsgGetBlock(chain[2].Hash))
	block, ok := raw.receive().(*appmessage.MsgBlock)
	if !ok || !block.Block.Equal(chain[2]) {
		t.Fatalf("TestManagerAnswersRequests: unexpected answer to GetBlock")
	}

	raw.send(appmessage.NewMsgGetBlock("unknown"))
	msgError, ok := raw.receive().(*appmessage.MsgError)
	if !ok || msgError.Code != appmessage.ErrorCodeNotFound {
		t.Fatalf("TestManagerAnswersRequests: expected error 404 for an unknown block")
	}

	coinbase := chain[1].Transactions[0]
	raw.send(appmessage.NewMsgGetTransaction(coinbase.Hash))
	tx, ok := raw.receive().(*appmessage.MsgTransaction)
	if !ok || !tx.Tx.Equal(coinbase) {
		t.Fatalf("TestManagerAnswersRequests: unexpected answer to GetTransaction")
	}

	raw.send(appmessage.NewMsgGetTransaction("unknown"))
	msgError, ok = raw.receive().(*appmessage.MsgError)
	if !ok || msgError.Code != appmessage.ErrorCodeNotFound {
		t.Fatalf("TestManagerAnswersRequests: expected error 404 for an unknown transaction")
	}
}

func TestManagerIgnoresBadBlocks(t *testing.T) {
	chain := testutils.BuildChain(3, testDifficulty)
	node := newTestNode(t, "TestManagerIgnoresBadBlocks", chain[:2], 10)
	raw := handshakeRaw(t, "TestManagerIgnoresBadBlocks", node.manager.ListenAddress(), "testnet")

	invalid := chain[2].Clone()
	invalid.MerkleRoot = "bad"
	raw.send(appmessage.NewMsgNewBlock(invalid))
	raw.send(appmessage.NewMsgNewBlock(chain[0]))
	raw.send(appmessage.NewMsgTransaction(testutils.TransferTransaction("tx", 1, 0.1)))
	raw.send(appmessage.NewMsgError(appmessage.ErrorCodeBadRequest, "whatever"))

	// The peer is still connected after all of the above
	raw.send(appmessage.NewMsgPing(1))
	if _, ok := raw.receive().(*appmessage.MsgPong); !ok {
		t.Fatalf("TestManagerIgnoresBadBlocks: expected a pong after the ignored messages")
	}
	if node.store.Height() != 2 {
		t.Fatalf("TestManagerIgnoresBadBlocks: expected height 2 but got %d", node.store.Height())
	}

	raw.send(appmessage.NewMsgNewBlock(chain[2]))
	waitFor(t, "TestManagerIgnoresBadBlocks", "the valid block to be accepted", func() bool {
		return node.store.Height() == 3
	})
}

func TestManagerSurvivesNullTransactions(t *testing.T) {
	chain := testutils.BuildChain(2, testDifficulty)
	node := newTestNode(t, "TestManagerSurvivesNullTransactions", chain[:1], 10)
	raw := handshakeRaw(t, "TestManagerSurvivesNullTransactions", node.manager.ListenAddress(), "testnet")

	withNull := chain[1].Clone()
	withNull.Transactions = append(withNull.Transactions, nil)
	raw.send(appmessage.NewMsgNewBlock(withNull))
	raw.send(appmessage.NewMsgBlocks([]*model.Block{withNull}))

	raw.send(appmessage.NewMsgPing(1))
	if _, ok := raw.receive().(*appmessage.MsgPong); !ok {
		t.Fatalf("TestManagerSurvivesNullTransactions: expected a pong after the blocks with null transactions")
	}
	if node.store.Height() != 1 {
		t.Fatalf("TestManagerSurvivesNullTransactions: expected height 1 but got %d", node.store.Height())
	}

	raw.send(appmessage.NewMsgNewBlock(chain[1]))
	waitFor(t, "TestManagerSurvivesNullTransactions", "the valid block to be accepted", func() bool {
		return node.store.Height() == 2
	})
}

func TestManagerDisconnectsOnRepeatedHandshake(t *testing.T) {
	node := newTestNode(t, "TestManagerDisconnectsOnRepeatedHandshake", nil, 10)
	raw := handshakeRaw(t, "TestManagerDisconnectsOnRepeatedHandshake", node.manager.ListenAddress(), "testnet")
	waitFor(t, "TestManagerDisconnectsOnRepeatedHandshake", "registration", func() bool {
		return node.manager.PeerCount() == 1
	})

	raw.send(appmessage.NewMsgHandshake("raw-peer", 0, "testnet"))
	_, err := raw.tryReceive()
	if err == nil {
		t.Fatalf("TestManagerDisconnectsOnRepeatedHandshake: expected the connection to be closed")
	}
	waitFor(t, "TestManagerDisconnectsOnRepeatedHandshake", "deregistration", func() bool {
		return node.manager.PeerCount() == 0
	})
}

func TestManagerRejectsOtherNetworks(t *testing.T) {
	node := newTestNode(t, "TestManagerRejectsOtherNetworks", nil, 10)
	raw := dialRaw(t, "TestManagerRejectsOtherNetworks", node.manager.ListenAddress())

	raw.send(appmessage.NewMsgHandshake("raw-peer", 0, "mainnet"))
	if _, ok := raw.receive().(*appmessage.MsgHandshake); !ok {
		t.Fatalf("TestManagerRejectsOtherNetworks: expected the node's handshake first")
	}
	msgError, ok := raw.receive().(*appmessage.MsgError)
	if !ok || msgError.Code != appmessage.ErrorCodeNetworkMismatch {
		t.Fatalf("TestManagerRejectsOtherNetworks: expected error 409")
	}
	if node.manager.PeerCount() != 0 {
		t.Fatalf("TestManagerRejectsOtherNetworks: a peer of another network was registered")
	}
}

func TestManagerMaxPeers(t *testing.T) {
	node := newTestNode(t, "TestManagerMaxPeers", nil, 1)
	handshakeRaw(t, "TestManagerMaxPeers", node.manager.ListenAddress(), "testnet")
	waitFor(t, "TestManagerMaxPeers", "registration", func() bool {
		return node.manager.PeerCount() == 1
	})

	refused := dialRaw(t, "TestManagerMaxPeers", node.manager.ListenAddress())
	msgError, ok := refused.receive().(*appmessage.MsgError)
	if !ok || msgError.Code != appmessage.ErrorCodeTooManyPeers {
		t.Fatalf("TestManagerMaxPeers: expected error 503")
	}
	if _, err := refused.tryReceive(); err == nil {
		t.Fatalf("TestManagerMaxPeers: expected the refused connection to be closed")
	}
	if node.manager.PeerCount() != 1 {
		t.Fatalf("TestManagerMaxPeers: expected 1 peer but got %d", node.manager.PeerCount())
	}
}

func TestManagerBroadcast(t *testing.T) {
	node := newTestNode(t, "TestManagerBroadcast", nil, 10)
	raws := []*rawPeer{
		handshakeRaw(t, "TestManagerBroadcast", node.manager.ListenAddress(), "testnet"),
		handshakeRaw(t, "TestManagerBroadcast-2", node.manager.ListenAddress(), "testnet"),
	}
	waitFor(t, "TestManagerBroadcast", "registration", func() bool {
		return node.manager.PeerCount() == 2
	})

	if sent := node.manager.RequestBlocks(7, 3); sent != 2 {
		t.Fatalf("TestManagerBroadcast: expected RequestBlocks to reach 2 peers, got %d", sent)
	}
	for _, raw := range raws {
		getBlocks, ok := raw.receive().(*appmessage.MsgGetBlocks)
		if !ok || getBlocks.StartHeight != 7 || getBlocks.Count != 3 {
			t.Fatalf("TestManagerBroadcast: unexpected broadcast message")
		}
	}

	raws[0].send(appmessage.NewMsgGetPeers())
	peers, ok := raws[0].receive().(*appmessage.MsgPeers)
	if !ok || len(peers.Peers) != 1 || peers.Peers[0].NodeID != "raw-peer-TestManagerBroadcast-2" {
		t.Fatalf("TestManagerBroadcast: expected the other raw peer in the peer list, got %s", spew.Sdump(peers))
	}

	node.manager.UpdateBestHeight(40)
	node.manager.UpdateBestHeight(30)
	if node.manager.BestHeight() != 30 {
		t.Fatalf("TestManagerBroadcast: expected the last written best height 30 but got %d",
			node.manager.BestHeight())
	}
}

func TestManagerStop(t *testing.T) {
	node := newTestNode(t, "TestManagerStop", nil, 10)
	raw := handshakeRaw(t, "TestManagerStop", node.manager.ListenAddress(), "testnet")
	waitFor(t, "TestManagerStop", "registration", func() bool {
		return node.manager.PeerCount() == 1
	})

	err := node.manager.Stop()
	if err != nil {
		t.Fatalf("TestManagerStop: Stop unexpectedly failed: %s", err)
	}
	if _, err := raw.tryReceive(); err == nil {
		t.Fatalf("TestManagerStop: expected the peer to be disconnected")
	}
	if node.manager.PeerCount() != 0 {
		t.Fatalf("TestManagerStop: expected no peers after Stop")
	}
	if err := node.manager.Stop(); err == nil {
		t.Fatalf("TestManagerStop: expected a second Stop to fail")
	}
	if err := node.manager.ConnectToPeer("127.0.0.1:1"); err == nil {
		t.Fatalf("TestManagerStop: expected ConnectToPeer to fail after Stop")
	}
}
