package syncmanager

import (
	"sync"
	"sync/atomic"

	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/infrastructure/logger"
	"github.com/pkg/errors"
)

// BatchSize is the number of blocks fetched between two progress reports
const BatchSize = 100

// ErrInterrupted is returned by SyncFromSource when Stop is called while
// it runs
var ErrInterrupted = errors.New("sync interrupted")

// Source is a trusted upstream node the chain is synced from
type Source interface {
	GetBlockCount() (uint64, error)
	GetBlock(height uint64) (*model.Block, error)
	SubmitBlock(block *model.Block) error
}

// Result describes the last sync run
type Result struct {
	StartHeight  uint64
	TargetHeight uint64
	Batches      []uint64
	Appended     uint64
}

// SyncManager appends blocks fetched from a Source to a ChainStore
type SyncManager struct {
	store  *chainstore.ChainStore
	source Source

	// syncLock serializes sync runs
	syncLock sync.Mutex

	resultLock sync.Mutex
	lastResult *Result

	onProgress func(percent float64)
	stopped    uint32
}

// New creates a SyncManager
func New(store *chainstore.ChainStore, source Source) *SyncManager {
	return &SyncManager{
		store:  store,
		source: source,
	}
}

// SetOnProgress sets a function called with the percentage of the target
// height reached after every batch
func (sm *SyncManager) SetOnProgress(onProgress func(percent float64)) {
	sm.onProgress = onProgress
}

// LastResult returns the result of the last sync run, or nil if no sync
// has run yet
func (sm *SyncManager) LastResult() *Result {
	sm.resultLock.Lock()
	defer sm.resultLock.Unlock()
	return sm.lastResult
}

func (sm *SyncManager) setLastResult(result *Result) {
	sm.resultLock.Lock()
	defer sm.resultLock.Unlock()
	copied := *result
	copied.Batches = append([]uint64(nil), result.Batches...)
	sm.lastResult = &copied
}

// SyncFromSource fetches every block the source has beyond the local tip
// and appends them in height order. The first fetch or validation error
// aborts the sync. Blocks appended before the error are kept.
func (sm *SyncManager) SyncFromSource() error {
	sm.syncLock.Lock()
	defer sm.syncLock.Unlock()

	onEnd := logger.LogAndMeasureExecutionTime(log, "SyncManager.SyncFromSource")
	defer onEnd()

	targetHeight, err := sm.source.GetBlockCount()
	if err != nil {
		return errors.Wrap(err, "could not get the block count from the source")
	}

	startHeight := sm.store.Height()
	result := &Result{StartHeight: startHeight, TargetHeight: targetHeight}
	defer sm.setLastResult(result)

	if targetHeight <= startHeight {
		log.Infof("Already synced: local height %d, source height %d", startHeight, targetHeight)
		return nil
	}

	log.Infof("Syncing from height %d to %d", startHeight, targetHeight)
	for batchStart := startHeight; batchStart < targetHeight; batchStart += BatchSize {
		batchEnd := batchStart + BatchSize
		if batchEnd > targetHeight {
			batchEnd = targetHeight
		}
		result.Batches = append(result.Batches, batchEnd-batchStart)

		for height := batchStart; height < batchEnd; height++ {
			if atomic.LoadUint32(&sm.stopped) != 0 {
				log.Infof("Sync interrupted at height %d", height)
				return errors.WithStack(ErrInterrupted)
			}
			err := sm.syncBlock(height)
			if err != nil {
				return err
			}
			result.Appended++
		}

		progress := float64(batchEnd) / float64(targetHeight) * 100
		log.Infof("Sync progress: %.2f%% (%d/%d)", progress, batchEnd, targetHeight)
		if sm.onProgress != nil {
			sm.onProgress(progress)
		}
	}

	log.Infof("Sync complete at height %d", targetHeight)
	return nil
}

// Stop makes a running SyncFromSource, and every later one, return
// ErrInterrupted before fetching its next block
func (sm *SyncManager) Stop() {
	atomic.StoreUint32(&sm.stopped, 1)
}

func (sm *SyncManager) syncBlock(height uint64) error {
	block, err := sm.source.GetBlock(height)
	if err != nil {
		return errors.Wrapf(err, "could not fetch block %d from the source", height)
	}
	if block.Height != height {
		return errors.Errorf("the source returned block %d when asked for block %d", block.Height, height)
	}

	err = sm.store.AddBlock(block)
	if err != nil {
		return errors.Wrapf(err, "could not add block %d", height)
	}
	return nil
}

// SubmitBlock relays a block to the source
func (sm *SyncManager) SubmitBlock(block *model.Block) error {
	err := sm.source.SubmitBlock(block)
	if err != nil {
		return errors.Wrapf(err, "could not submit block %d to the source", block.Height)
	}
	log.Debugf("Submitted block %d (%s) to the source", block.Height, block.Hash)
	return nil
}
