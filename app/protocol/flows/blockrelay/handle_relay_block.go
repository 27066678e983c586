package blockrelay

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/app/protocol/protocolerrors"
	"github.com/gxcnet/gxcpeerd/domain/consensus/ruleerrors"
)

// HandleNewBlock appends an announced block to the chain and announces it
// to every other peer. Known blocks are ignored. A block beyond the next
// height makes the announcing peer be asked for the missing blocks.
// Blocks breaking a consensus rule are logged and dropped without
// disconnecting the peer. The peer's best height only follows accepted
// blocks.
func HandleNewBlock(context RelayContext, peer *peerpkg.Peer, message *appmessage.MsgNewBlock) error {
	block := message.Block
	if block == nil {
		return protocolerrors.Errorf(true, "%s sent %s without a block", peer, message.Command())
	}

	if context.IsBlockSeen(block.Hash) {
		log.Tracef("Ignoring known block %s from %s", block.Hash, peer)
		return nil
	}

	localHeight := context.ChainStore().Height()
	switch {
	case block.Height < localHeight:
		log.Debugf("Ignoring block %d from %s: the chain is already at height %d",
			block.Height, peer, localHeight)
		context.MarkBlockSeen(block.Hash)
		return nil

	case block.Height > localHeight:
		log.Infof("%s announced block %d while the next height is %d, requesting the missing blocks",
			peer, block.Height, localHeight)
		return requestBlocksUpTo(peer, localHeight, block.Height)
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
	log.Infof("Accepted block %d (%s) from %s", block.Height, block.Hash, peer)
	relayed := context.BroadcastExcept(appmessage.NewMsgNewBlock(block), peer)
	log.Debugf("Relayed block %d to %d peers", block.Height, relayed)
	return nil
}
