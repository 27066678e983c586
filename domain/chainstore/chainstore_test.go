package chainstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/domain/consensus/ruleerrors"
	"github.com/gxcnet/gxcpeerd/domain/consensus/utils/testutils"
	"github.com/gxcnet/gxcpeerd/domain/consensus/validator"
	"github.com/gxcnet/gxcpeerd/domain/dagconfig"
	"github.com/gxcnet/gxcpeerd/infrastructure/clock"
	"github.com/gxcnet/gxcpeerd/infrastructure/db/database/ldb"
	"github.com/pkg/errors"
)

func newTestValidator() *validator.Validator {
	return validator.New(&dagconfig.TestnetParams, clock.SystemClock{})
}

func newTestStore(t *testing.T, testName string) *ChainStore {
	store, err := New(newTestValidator(), nil)
	if err != nil {
		t.Fatalf("%s: New unexpectedly failed: %s", testName, err)
	}
	return store
}

func addChain(t *testing.T, testName string, store *ChainStore, chain []*model.Block) {
	for _, block := range chain {
		err := store.AddBlock(block)
		if err != nil {
			t.Fatalf("%s: AddBlock of block %d unexpectedly failed: %+v", testName, block.Height, err)
		}
	}
}

func TestAddBlockInOrder(t *testing.T) {
	store := newTestStore(t, "TestAddBlockInOrder")

	_, err := store.LatestBlock()
	if !errors.Is(err, ErrChainEmpty) {
		t.Fatalf("TestAddBlockInOrder: expected ErrChainEmpty but got %v", err)
	}

	chain := testutils.BuildChain(4, 1)
	addChain(t, "TestAddBlockInOrder", store, chain)

	if store.Height() != 4 {
		t.Fatalf("TestAddBlockInOrder: expected height 4 but got %d", store.Height())
	}
	latest, err := store.LatestBlock()
	if err != nil {
		t.Fatalf("TestAddBlockInOrder: LatestBlock unexpectedly failed: %s", err)
	}
	if !latest.Equal(chain[3]) {
		t.Fatalf("TestAddBlockInOrder: unexpected latest block %s", latest)
	}
	for i, expected := range chain {
		block, err := store.Block(uint64(i))
		if err != nil {
			t.Fatalf("TestAddBlockInOrder: Block(%d) unexpectedly failed: %s", i, err)
		}
		if block.Hash != expected.Hash {
			t.Fatalf("TestAddBlockInOrder: unexpected block at height %d", i)
		}
	}
	_, err = store.Block(4)
	if !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("TestAddBlockInOrder: expected ErrBlockNotFound but got %v", err)
	}
}

func TestAddBlockRejectsWrongHeight(t *testing.T) {
	store := newTestStore(t, "TestAddBlockRejectsWrongHeight")
	chain := testutils.BuildChain(4, 1)
	addChain(t, "TestAddBlockRejectsWrongHeight", store, chain[:2])

	// A gap
	err := store.AddBlock(chain[3])
	if !errors.Is(err, ruleerrors.ErrUnexpectedHeight) {
		t.Fatalf("TestAddBlockRejectsWrongHeight: expected ErrUnexpectedHeight for a gap but got %v", err)
	}

	// A duplicate
	err = store.AddBlock(chain[1])
	if !errors.Is(err, ruleerrors.ErrUnexpectedHeight) {
		t.Fatalf("TestAddBlockRejectsWrongHeight: expected ErrUnexpectedHeight for a duplicate but got %v", err)
	}

	if store.Height() != 2 {
		t.Fatalf("TestAddBlockRejectsWrongHeight: rejected blocks changed the height to %d", store.Height())
	}

	err = store.AddBlock(chain[2])
	if err != nil {
		t.Fatalf("TestAddBlockRejectsWrongHeight: the next block was unexpectedly rejected: %+v", err)
	}
}

func TestAddBlockRejectsBrokenLinkage(t *testing.T) {
	store := newTestStore(t, "TestAddBlockRejectsBrokenLinkage")
	genesis := testutils.MineBlock(nil, 1)
	addChain(t, "TestAddBlockRejectsBrokenLinkage", store, []*model.Block{genesis})

	otherGenesis := testutils.MineBlock(nil, 2)
	orphan := testutils.MineBlock(otherGenesis, 1)

	err := store.AddBlock(orphan)
	if !errors.Is(err, ruleerrors.ErrPreviousHashMismatch) {
		t.Fatalf("TestAddBlockRejectsBrokenLinkage: expected ErrPreviousHashMismatch but got %v", err)
	}
}

func TestAddBlockRejectsNullTransaction(t *testing.T) {
	store := newTestStore(t, "TestAddBlockRejectsNullTransaction")
	genesis := testutils.MineBlock(nil, 1)
	genesis.Transactions = append(genesis.Transactions, nil)

	data, err := appmessage.Encode(appmessage.NewMsgNewBlock(genesis))
	if err != nil {
		t.Fatalf("TestAddBlockRejectsNullTransaction: Encode unexpectedly failed: %s", err)
	}
	message, err := appmessage.Decode(data)
	if err != nil {
		t.Fatalf("TestAddBlockRejectsNullTransaction: Decode unexpectedly failed: %s", err)
	}
	decoded := message.(*appmessage.MsgNewBlock).Block
	if decoded.Transactions[1] != nil {
		t.Fatalf("TestAddBlockRejectsNullTransaction: expected the decoded transaction to be null")
	}

	err = store.AddBlock(decoded)
	if !errors.Is(err, ruleerrors.ErrMissingTransaction) {
		t.Fatalf("TestAddBlockRejectsNullTransaction: expected ErrMissingTransaction but got %v", err)
	}
	if store.Height() != 0 {
		t.Fatalf("TestAddBlockRejectsNullTransaction: the rejected block changed the height to %d", store.Height())
	}
}

func TestAddBlockConcurrently(t *testing.T) {
	store := newTestStore(t, "TestAddBlockConcurrently")
	chain := testutils.BuildChain(2, 1)
	addChain(t, "TestAddBlockConcurrently", store, chain[:1])

	const workers = 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			results <- store.AddBlock(chain[1])
		}()
	}

	accepted := 0
	for i := 0; i < workers; i++ {
		select {
		case err := <-results:
			if err == nil {
				accepted++
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("TestAddBlockConcurrently: timed out waiting for AddBlock")
		}
	}
	if accepted != 1 {
		t.Fatalf("TestAddBlockConcurrently: expected exactly one append but got %d", accepted)
	}
	if store.Height() != 2 {
		t.Fatalf("TestAddBlockConcurrently: unexpected height %d", store.Height())
	}
}

func TestLookups(t *testing.T) {
	store := newTestStore(t, "TestLookups")
	genesis := testutils.MineBlock(nil, 1)
	transfer := testutils.TransferTransaction("lookup", 3, 0.1)
	second := testutils.MineBlock(genesis, 1, transfer)
	addChain(t, "TestLookups", store, []*model.Block{genesis, second})

	block, err := store.BlockByHash(second.Hash)
	if err != nil {
		t.Fatalf("TestLookups: BlockByHash unexpectedly failed: %s", err)
	}
	if block.Height != 1 {
		t.Fatalf("TestLookups: BlockByHash returned block %d", block.Height)
	}
	_, err = store.BlockByHash("nope")
	if !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("TestLookups: expected ErrBlockNotFound but got %v", err)
	}

	tx, height, err := store.TransactionByHash(transfer.Hash)
	if err != nil {
		t.Fatalf("TestLookups: TransactionByHash unexpectedly failed: %s", err)
	}
	if height != 1 || tx.Amount != 3 {
		t.Fatalf("TestLookups: TransactionByHash returned %s at height %d", tx, height)
	}
	_, _, err = store.TransactionByHash("nope")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("TestLookups: expected ErrTransactionNotFound but got %v", err)
	}

	blocks := store.BlocksRange(1, 10)
	if len(blocks) != 1 || blocks[0].Height != 1 {
		t.Fatalf("TestLookups: unexpected BlocksRange result of length %d", len(blocks))
	}
	if len(store.BlocksRange(5, 10)) != 0 {
		t.Fatalf("TestLookups: BlocksRange beyond the tip is not empty")
	}

	stats := store.Stats()
	if stats.BlockCount != 2 || stats.TotalTransactions != 3 || stats.AverageDifficulty != 1 {
		t.Fatalf("TestLookups: unexpected stats %+v", stats)
	}
	if stats.LatestHash != second.Hash {
		t.Fatalf("TestLookups: unexpected latest hash %s", stats.LatestHash)
	}
}

func TestAddBlockKeepsOwnCopy(t *testing.T) {
	store := newTestStore(t, "TestAddBlockKeepsOwnCopy")
	genesis := testutils.MineBlock(nil, 1)
	addChain(t, "TestAddBlockKeepsOwnCopy", store, []*model.Block{genesis})

	genesis.Transactions[0].Amount = 1000
	err := store.VerifyChain()
	if err != nil {
		t.Fatalf("TestAddBlockKeepsOwnCopy: modifying the caller's block affected the store: %+v", err)
	}
}

func TestVerifyChain(t *testing.T) {
	store := newTestStore(t, "TestVerifyChain")
	chain := testutils.BuildChain(5, 1)
	addChain(t, "TestVerifyChain", store, chain)

	err := store.VerifyChain()
	if err != nil {
		t.Fatalf("TestVerifyChain: VerifyChain unexpectedly failed: %+v", err)
	}

	// Corrupt a stored block in place
	store.blocks[3].Nonce++
	err = store.VerifyChain()
	if !errors.Is(err, ruleerrors.ErrBadWorkReceipt) {
		t.Fatalf("TestVerifyChain: expected ErrBadWorkReceipt but got %v", err)
	}
}

func TestOnBlockAdded(t *testing.T) {
	store := newTestStore(t, "TestOnBlockAdded")
	var added []uint64
	store.SetOnBlockAdded(func(block *model.Block) {
		added = append(added, block.Height)
		// The hook runs outside of the store lock
		_ = store.Height()
	})
	addChain(t, "TestOnBlockAdded", store, testutils.BuildChain(3, 1))

	if len(added) != 3 || added[2] != 2 {
		t.Fatalf("TestOnBlockAdded: unexpected hook calls %v", added)
	}
}

func TestPersistence(t *testing.T) {
	db, err := ldb.NewInMemoryLevelDB()
	if err != nil {
		t.Fatalf("TestPersistence: NewInMemoryLevelDB unexpectedly failed: %s", err)
	}
	defer db.Close()

	store, err := New(newTestValidator(), db)
	if err != nil {
		t.Fatalf("TestPersistence: New unexpectedly failed: %s", err)
	}
	chain := testutils.BuildChain(3, 1)
	addChain(t, "TestPersistence", store, chain)

	reloaded, err := New(newTestValidator(), db)
	if err != nil {
		t.Fatalf("TestPersistence: reloading unexpectedly failed: %+v", err)
	}
	if reloaded.Height() != 3 {
		t.Fatalf("TestPersistence: expected 3 reloaded blocks but got %d", reloaded.Height())
	}
	err = reloaded.VerifyChain()
	if err != nil {
		t.Fatalf("TestPersistence: reloaded chain failed verification: %+v", err)
	}

	err = reloaded.AddBlock(testutils.MineBlock(chain[2], 1))
	if err != nil {
		t.Fatalf("TestPersistence: extending the reloaded chain unexpectedly failed: %+v", err)
	}
}

func TestPersistenceDiscardsDamagedTail(t *testing.T) {
	chain := testutils.BuildChain(5, 1)
	tests := []struct {
		name   string
		damage func(t *testing.T, db *ldb.LevelDB)
	}{
		{
			name: "undecodable block",
			damage: func(t *testing.T, db *ldb.LevelDB) {
				err := db.Put(blockKey(2), []byte("{"))
				if err != nil {
					t.Fatalf("Put unexpectedly failed: %s", err)
				}
			},
		},
		{
			name: "tampered block",
			damage: func(t *testing.T, db *ldb.LevelDB) {
				tampered := chain[2].Clone()
				tampered.Nonce++
				serialized, err := json.Marshal(tampered)
				if err != nil {
					t.Fatalf("Marshal unexpectedly failed: %s", err)
				}
				err = db.Put(blockKey(2), serialized)
				if err != nil {
					t.Fatalf("Put unexpectedly failed: %s", err)
				}
			},
		},
		{
			name: "missing block",
			damage: func(t *testing.T, db *ldb.LevelDB) {
				err := db.Delete(blockKey(2))
				if err != nil {
					t.Fatalf("Delete unexpectedly failed: %s", err)
				}
			},
		},
	}

	for _, test := range tests {
		db, err := ldb.NewInMemoryLevelDB()
		if err != nil {
			t.Fatalf("TestPersistenceDiscardsDamagedTail: NewInMemoryLevelDB unexpectedly failed: %s", err)
		}
		store, err := New(newTestValidator(), db)
		if err != nil {
			t.Fatalf("TestPersistenceDiscardsDamagedTail: New unexpectedly failed: %s", err)
		}
		addChain(t, "TestPersistenceDiscardsDamagedTail", store, chain)
		test.damage(t, db)

		reloaded, err := New(newTestValidator(), db)
		if err != nil {
			t.Fatalf("TestPersistenceDiscardsDamagedTail: %s: reloading unexpectedly failed: %+v", test.name, err)
		}
		if reloaded.Height() != 2 {
			t.Fatalf("TestPersistenceDiscardsDamagedTail: %s: expected height 2 but got %d",
				test.name, reloaded.Height())
		}
		for height := uint64(2); height < 5; height++ {
			exists, err := db.Has(blockKey(height))
			if err != nil {
				t.Fatalf("TestPersistenceDiscardsDamagedTail: %s: Has unexpectedly failed: %s", test.name, err)
			}
			if exists {
				t.Fatalf("TestPersistenceDiscardsDamagedTail: %s: block %d was not discarded", test.name, height)
			}
		}
		blockCount, err := readBlockCount(db)
		if err != nil || blockCount != 2 {
			t.Fatalf("TestPersistenceDiscardsDamagedTail: %s: expected a stored block count of 2 but got %d (%v)",
				test.name, blockCount, err)
		}

		// The discarded heights can be synced again
		addChain(t, "TestPersistenceDiscardsDamagedTail", reloaded, chain[2:])
		reloadedAgain, err := New(newTestValidator(), db)
		if err != nil || reloadedAgain.Height() != 5 {
			t.Fatalf("TestPersistenceDiscardsDamagedTail: %s: expected 5 blocks after resyncing (%v)", test.name, err)
		}
		db.Close()
	}
}

func TestPersistBlockRefusesOutOfSequence(t *testing.T) {
	db, err := ldb.NewInMemoryLevelDB()
	if err != nil {
		t.Fatalf("TestPersistBlockRefusesOutOfSequence: NewInMemoryLevelDB unexpectedly failed: %s", err)
	}
	defer db.Close()
	chain := testutils.BuildChain(3, 1)

	err = persistBlock(db, chain[0])
	if err != nil {
		t.Fatalf("TestPersistBlockRefusesOutOfSequence: persistBlock unexpectedly failed: %+v", err)
	}
	err = persistBlock(db, chain[0])
	if err == nil {
		t.Fatalf("TestPersistBlockRefusesOutOfSequence: expected persisting block 0 twice to fail")
	}
	err = persistBlock(db, chain[2])
	if err == nil {
		t.Fatalf("TestPersistBlockRefusesOutOfSequence: expected persisting block 2 after block 0 to fail")
	}

	// A leftover block at the next height is not overwritten
	err = db.Put(blockKey(1), []byte("leftover"))
	if err != nil {
		t.Fatalf("TestPersistBlockRefusesOutOfSequence: Put unexpectedly failed: %s", err)
	}
	err = persistBlock(db, chain[1])
	if err == nil {
		t.Fatalf("TestPersistBlockRefusesOutOfSequence: expected the leftover block to be refused")
	}
}
