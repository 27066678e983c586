package chainstore

import (
	"sync"

	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/domain/consensus/ruleerrors"
	"github.com/gxcnet/gxcpeerd/domain/consensus/validator"
	"github.com/gxcnet/gxcpeerd/infrastructure/db/database"
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
	"github.com/pkg/errors"
)

// Stats is an aggregate summary of the stored chain
type Stats struct {
	BlockCount        uint64
	TotalTransactions uint64
	AverageDifficulty float64
	LatestHash        string
}

type transactionLocation struct {
	height uint64
	index  int
}

// ChainStore is the ordered, gapless sequence of accepted blocks. Blocks
// are only ever appended at the next height, after full validation.
type ChainStore struct {
	validator *validator.Validator
	db        database.Database

	lock         sync.RWMutex
	blocks       []*model.Block
	hashIndex    map[string]uint64
	txIndex      map[string]transactionLocation
	totalTxCount uint64

	onBlockAdded func(block *model.Block)
}

// New creates a ChainStore validating with v. When db is not nil, the
// blocks it holds are loaded, and every accepted block is written to it
// before it becomes visible.
func New(v *validator.Validator, db database.Database) (*ChainStore, error) {
	store := &ChainStore{
		validator: v,
		db:        db,
		hashIndex: make(map[string]uint64),
		txIndex:   make(map[string]transactionLocation),
	}

	if db != nil {
		err := store.loadFromDatabase()
		if err != nil {
			return nil, err
		}
	}
	return store, nil
}

// loadFromDatabase reloads blocks this node already validated and
// persisted. They are only quick-validated and linkage checked. The
// stored chain is cut at the first block failing these checks, so that a
// damaged tail is synced again instead of keeping the node down.
func (cs *ChainStore) loadFromDatabase() error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "ChainStore.loadFromDatabase")
	defer onEnd()

	blocks, blockCount, err := loadBlocks(cs.db)
	if err != nil {
		return err
	}

	for _, block := range blocks {
		err := cs.validator.QuickValidate(block)
		if err == nil {
			err = cs.checkNextInSequence(block)
		}
		if err != nil {
			log.Warnf("Stored block %d is unusable, discarding it and every block after it: %s",
				block.Height, err)
			break
		}
		cs.appendBlock(block)
	}

	height := uint64(len(cs.blocks))
	if height != uint64(len(blocks)) || height != blockCount {
		err := truncateBlocks(cs.db, height)
		if err != nil {
			return err
		}
	}

	if height > 0 {
		log.Infof("Loaded %d blocks from the database", height)
	}
	return nil
}

// checkNextInSequence checks that block directly follows the current tip.
// It must be called with the lock held.
func (cs *ChainStore) checkNextInSequence(block *model.Block) error {
	expectedHeight := uint64(len(cs.blocks))
	if block.Height != expectedHeight {
		return errors.Wrapf(ruleerrors.ErrUnexpectedHeight, "block %d offered while the next "+
			"height is %d", block.Height, expectedHeight)
	}
	if expectedHeight > 0 && block.PreviousHash != cs.blocks[expectedHeight-1].Hash {
		return errors.Wrapf(ruleerrors.ErrPreviousHashMismatch, "block %d does not point to "+
			"block %d", block.Height, expectedHeight-1)
	}
	return nil
}

// appendBlock must be called with the lock held
func (cs *ChainStore) appendBlock(block *model.Block) {
	cs.blocks = append(cs.blocks, block)
	cs.hashIndex[block.Hash] = block.Height
	for i, tx := range block.Transactions {
		cs.txIndex[tx.Hash] = transactionLocation{height: block.Height, index: i}
	}
	cs.totalTxCount += uint64(len(block.Transactions))
}

// SetOnBlockAdded sets a function to be called after every block appended
// by AddBlock. It is called outside of the store lock.
func (cs *ChainStore) SetOnBlockAdded(onBlockAdded func(block *model.Block)) {
	cs.lock.Lock()
	defer cs.lock.Unlock()
	cs.onBlockAdded = onBlockAdded
}

// Height returns the number of blocks in the chain
func (cs *ChainStore) Height() uint64 {
	cs.lock.RLock()
	defer cs.lock.RUnlock()
	return uint64(len(cs.blocks))
}

// Block returns the block at the given height
func (cs *ChainStore) Block(height uint64) (*model.Block, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	if height >= uint64(len(cs.blocks)) {
		return nil, errors.Wrapf(ErrBlockNotFound, "height %d", height)
	}
	return cs.blocks[height], nil
}

// LatestBlock returns the last block of the chain
func (cs *ChainStore) LatestBlock() (*model.Block, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	if len(cs.blocks) == 0 {
		return nil, errors.WithStack(ErrChainEmpty)
	}
	return cs.blocks[len(cs.blocks)-1], nil
}

// BlockByHash returns the block with the given hash
func (cs *ChainStore) BlockByHash(hash string) (*model.Block, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	height, ok := cs.hashIndex[hash]
	if !ok {
		return nil, errors.Wrapf(ErrBlockNotFound, "hash %s", hash)
	}
	return cs.blocks[height], nil
}

// BlocksRange returns up to count blocks starting at startHeight. The
// result is empty when startHeight is beyond the tip.
func (cs *ChainStore) BlocksRange(startHeight, count uint64) []*model.Block {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	length := uint64(len(cs.blocks))
	if startHeight >= length || count == 0 {
		return []*model.Block{}
	}
	endHeight := length
	if count < length-startHeight {
		endHeight = startHeight + count
	}

	blocks := make([]*model.Block, endHeight-startHeight)
	copy(blocks, cs.blocks[startHeight:endHeight])
	return blocks
}

// TransactionByHash returns the transaction with the given hash and the
// height of the block containing it
func (cs *ChainStore) TransactionByHash(hash string) (*model.Transaction, uint64, error) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	location, ok := cs.txIndex[hash]
	if !ok {
		return nil, 0, errors.Wrapf(ErrTransactionNotFound, "hash %s", hash)
	}
	return cs.blocks[location.height].Transactions[location.index], location.height, nil
}

// AddBlock validates block against the current tip and appends it. The
// block must be at exactly the next height. The store keeps its own copy
// of the block.
func (cs *ChainStore) AddBlock(block *model.Block) error {
	block = block.Clone()

	onBlockAdded, err := cs.addBlock(block)
	if err != nil {
		return err
	}

	log.Debugf("Accepted block %d (%s) with %d transactions", block.Height, block.Hash,
		len(block.Transactions))
	if onBlockAdded != nil {
		onBlockAdded(block)
	}
	return nil
}

func (cs *ChainStore) addBlock(block *model.Block) (onBlockAdded func(*model.Block), err error) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	var previous *model.Block
	if block.Height > 0 && block.Height <= uint64(len(cs.blocks)) {
		previous = cs.blocks[block.Height-1]
	}

	err = cs.validator.Validate(block, previous)
	if err != nil {
		return nil, err
	}

	expectedHeight := uint64(len(cs.blocks))
	if block.Height != expectedHeight {
		return nil, errors.Wrapf(ruleerrors.ErrUnexpectedHeight, "block %d offered while the next "+
			"height is %d", block.Height, expectedHeight)
	}

	if cs.db != nil {
		err = persistBlock(cs.db, block)
		if err != nil {
			return nil, err
		}
	}

	cs.appendBlock(block)
	return cs.onBlockAdded, nil
}

// VerifyChain fully re-validates every stored block against its
// predecessor, in height order. The returned error names the first
// offending height.
func (cs *ChainStore) VerifyChain() error {
	onEnd := logger.LogAndMeasureExecutionTime(log, "ChainStore.VerifyChain")
	defer onEnd()

	cs.lock.RLock()
	defer cs.lock.RUnlock()

	var previous *model.Block
	for i, block := range cs.blocks {
		if block.Height != uint64(i) {
			return errors.Wrapf(ruleerrors.ErrUnexpectedHeight, "block stored at height %d "+
				"declares height %d", i, block.Height)
		}
		err := cs.validator.Validate(block, previous)
		if err != nil {
			return errors.Wrapf(err, "chain verification failed at height %d", i)
		}
		previous = block
	}
	return nil
}

// Stats returns an aggregate summary of the chain
func (cs *ChainStore) Stats() *Stats {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	stats := &Stats{
		BlockCount:        uint64(len(cs.blocks)),
		TotalTransactions: cs.totalTxCount,
	}
	if len(cs.blocks) == 0 {
		return stats
	}

	totalDifficulty := 0.0
	for _, block := range cs.blocks {
		totalDifficulty += block.Difficulty
	}
	stats.AverageDifficulty = totalDifficulty / float64(len(cs.blocks))
	stats.LatestHash = cs.blocks[len(cs.blocks)-1].Hash
	return stats
}
