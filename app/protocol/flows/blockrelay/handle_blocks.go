package blockrelay

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/domain/consensus/ruleerrors"
)

// HandleBlocks appends blocks received in answer to a block request, in
// the order they were sent. Blocks the chain already has are skipped.
// Processing stops at the first block that does not extend the chain.
// When anything was appended and the peer is still ahead, or the whole
// batch was full, the next batch is requested from it.
func HandleBlocks(context RelayContext, peer *peerpkg.Peer, blocks []*model.Block) error {
	appended := 0
	for _, block := range blocks {
		if block == nil {
			return protocolerrors.Errorf(true, "%s sent a null block", peer)
		}

		localHeight := context.ChainStore().Height()
		if block.Height < localHeight {
			continue
		}
		if block.Height > localHeight {
			log.Debugf("%s sent block %d while the next height is %d", peer, block.Height, localHeight)
			break
		}

		err := context.AddBlock(block)
		if err != nil {
			if ruleerrors.IsRuleError(err) {
				log.Warnf("Rejected block %d (%s) from %s: %s", block.Height, block.Hash, peer, err)
				return nil
			}
			return err
		}
		peer.UpdateBestHeight(block.Height + 1)
		appended++
	}

	if appended == 0 {
		return nil
	}
	localHeight := context.ChainStore().Height()
	log.Infof("Appended %d blocks from %s, chain height is %d", appended, peer, localHeight)
	if len(blocks) == appmessage.MaxBlocksPerMessage && appended == len(blocks) {
		// A full batch may be followed by more than the peer's known best height
		return requestBlocksUpTo(peer, localHeight, localHeight+appmessage.MaxBlocksPerMessage-1)
	}
	return RequestMissingBlocks(context, peer)
}

// RequestMissingBlocks asks peer for the blocks between the local height
// and the peer's best height, up to appmessage.MaxBlocksPerMessage of
// them. Nothing is sent when the peer is not ahead.
func RequestMissingBlocks(context RelayContext, peer *peerpkg.Peer) error {
	localHeight := context.ChainStore().Height()
	peerHeight := peer.BestHeight()
	if peerHeight <= localHeight {
		return nil
	}

	count := min(peerHeight-localHeight, uint64(appmessage.MaxBlocksPerMessage))
	log.Debugf("Requesting %d blocks from height %d from %s", count, localHeight, peer)
	return peer.Enqueue(appmessage.NewMsgGetBlocks(localHeight, count))
}

// requestBlocksUpTo asks peer for the blocks from localHeight through
// lastHeight, up to appmessage.MaxBlocksPerMessage of them. lastHeight
// comes from an unvalidated announcement, so it is not recorded as the
// peer's best height.
func requestBlocksUpTo(peer *peerpkg.Peer, localHeight, lastHeight uint64) error {
	if lastHeight < localHeight {
		return nil
	}
	count := uint64(appmessage.MaxBlocksPerMessage)
	if lastHeight-localHeight < count {
		count = lastHeight - localHeight + 1
	}
	log.Debugf("Requesting %d blocks from height %d from %s", count, localHeight, peer)
	return peer.Enqueue(appmessage.NewMsgGetBlocks(localHeight, count))
}
