package blockrelay

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/pkg/errors"
)

// BlockRequestsContext is the interface for the context needed for the
// block request flows.
type BlockRequestsContext interface {
	ChainStore() *chainstore.ChainStore
}

// HandleGetBlocks answers a request for a range of blocks with up to
// appmessage.MaxBlocksPerMessage blocks. A range beyond the tip is
// answered with no blocks.
func HandleGetBlocks(context BlockRequestsContext, peer *peerpkg.Peer, message *appmessage.MsgGetBlocks) error {
	count := min(message.Count, uint64(appmessage.MaxBlocksPerMessage))
	blocks := context.ChainStore().BlocksRange(message.StartHeight, count)
	log.Debugf("Sending %d blocks from height %d to %s", len(blocks), message.StartHeight, peer)
	return peer.Enqueue(appmessage.NewMsgBlocks(blocks))
}

// HandleGetBlock answers a request for a block by hash, or with an error
// message if the block is unknown
func HandleGetBlock(context BlockRequestsContext, peer *peerpkg.Peer, message *appmessage.MsgGetBlock) error {
	block, err := context.ChainStore().BlockByHash(message.Hash)
	if err != nil {
		if errors.Is(err, chainstore.ErrBlockNotFound) {
			log.Debugf("%s requested unknown block %s", peer, message.Hash)
			return peer.Enqueue(appmessage.NewMsgError(appmessage.ErrorCodeNotFound,
				"block "+message.Hash+" not found"))
		}
		return err
	}
	return peer.Enqueue(appmessage.NewMsgBlock(block))
}
