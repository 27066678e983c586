package chainstore

import (
	"encoding/binary"
	"encoding/json"

	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/infrastructure/db/database"
	"github.com/pkg/errors"
)

var (
	blocksBucket  = database.MakeBucket([]byte("blocks"))
	blockCountKey = database.MakeBucket([]byte("chain")).Key([]byte("block-count"))
)

func blockKey(height uint64) *database.Key {
	return blocksBucket.Key(serializeHeight(height))
}

func serializeHeight(height uint64) []byte {
	var heightBytes [8]byte
	binary.BigEndian.PutUint64(heightBytes[:], height)
	return heightBytes[:]
}

// readBlockCount returns the number of blocks the database claims to hold.
// A database that never stored a block holds none.
func readBlockCount(accessor database.DataAccessor) (uint64, error) {
	exists, err := accessor.Has(blockCountKey)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	serialized, err := accessor.Get(blockCountKey)
	if err != nil {
		return 0, err
	}
	if len(serialized) != 8 {
		return 0, errors.Errorf("stored block count has %d bytes instead of 8", len(serialized))
	}
	return binary.BigEndian.Uint64(serialized), nil
}

// persistBlock writes block and the new block count in one transaction.
// block must be at exactly the stored block count.
func persistBlock(db database.Database, block *model.Block) error {
	serialized, err := json.Marshal(block)
	if err != nil {
		return errors.Wrapf(err, "could not serialize block %d", block.Height)
	}

	dbTx, err := db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	blockCount, err := readBlockCount(dbTx)
	if err != nil {
		return err
	}
	if block.Height != blockCount {
		return errors.Errorf("cannot persist block %d while the database holds %d blocks",
			block.Height, blockCount)
	}
	key := blockKey(block.Height)
	exists, err := dbTx.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("block %d is already stored", block.Height)
	}

	err = dbTx.Put(key, serialized)
	if err != nil {
		return errors.Wrapf(err, "could not persist block %d", block.Height)
	}
	err = dbTx.Put(blockCountKey, serializeHeight(block.Height+1))
	if err != nil {
		return err
	}
	return dbTx.Commit()
}

// loadBlocks returns the persisted blocks in key order, together with the
// stored block count. Loading stops at the first block that cannot be
// deserialized.
func loadBlocks(db database.Database) (blocks []*model.Block, blockCount uint64, err error) {
	blockCount, err = readBlockCount(db)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := db.Cursor(blocksBucket)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close()

	for ok := cursor.First(); ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, 0, err
		}
		serialized, err := cursor.Value()
		if err != nil {
			return nil, 0, err
		}

		block := &model.Block{}
		err = json.Unmarshal(serialized, block)
		if err != nil {
			log.Warnf("Could not deserialize the block stored under %s: %s", key, err)
			break
		}
		blocks = append(blocks, block)
	}
	return blocks, blockCount, nil
}

// truncateBlocks deletes every stored block from fromHeight on and sets
// the stored block count to fromHeight.
func truncateBlocks(db database.Database, fromHeight uint64) error {
	dbTx, err := db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.RollbackUnlessClosed()

	staleKeys, err := blockKeysFrom(dbTx, fromHeight)
	if err != nil {
		return err
	}
	for _, key := range staleKeys {
		err := dbTx.Delete(key)
		if err != nil {
			return err
		}
	}
	err = dbTx.Put(blockCountKey, serializeHeight(fromHeight))
	if err != nil {
		return err
	}

	log.Infof("Discarded %d stored blocks from height %d", len(staleKeys), fromHeight)
	return dbTx.Commit()
}

// blockKeysFrom returns the keys of the stored blocks at fromHeight and
// above. Stored heights are normally gapless, so seeking to fromHeight
// finds them. A gap falls back to a scan of the whole bucket.
func blockKeysFrom(dbTx database.Transaction, fromHeight uint64) ([]*database.Key, error) {
	cursor, err := dbTx.Cursor(blocksBucket)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	ok := true
	err = cursor.Seek(blockKey(fromHeight))
	if err != nil {
		if !database.IsNotFoundError(err) {
			return nil, err
		}
		ok = cursor.First()
	}

	var keys []*database.Key
	for ; ok; ok = cursor.Next() {
		key, err := cursor.Key()
		if err != nil {
			return nil, err
		}
		suffix := key.Suffix()
		if len(suffix) == 8 && binary.BigEndian.Uint64(suffix) < fromHeight {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}
