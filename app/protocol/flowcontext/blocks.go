package flowcontext

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/infrastructure/metrics"
)

// IsBlockSeen returns whether a block with hash was recently accepted or
// announced
func (f *FlowContext) IsBlockSeen(hash string) bool {
	return f.seenBlocks.Contains(hash)
}

// MarkBlockSeen remembers hash as recently accepted or announced
func (f *FlowContext) MarkBlockSeen(hash string) {
	f.seenBlocks.Add(hash, struct{}{})
}

// AddBlock appends a block received from a peer to the chain, then
// updates the best height and relays the block upstream if configured.
func (f *FlowContext) AddBlock(block *model.Block) error {
	err := f.chainStore.AddBlock(block)
	if err != nil {
		f.metrics.BlockRejected(metrics.SourcePeer)
		return err
	}
	f.metrics.BlockAccepted(metrics.SourcePeer)
	f.MarkBlockSeen(block.Hash)
	f.UpdateBestHeight(f.chainStore.Height())

	if f.upstream != nil && f.cfg.RelayUpstream {
		upstream := f.upstream
		relayed := block.Clone()
		spawn("FlowContext.relayUpstream", func() {
			err := upstream.SubmitBlock(relayed)
			if err != nil {
				log.Warnf("Could not relay block %d upstream: %s", relayed.Height, err)
			}
		})
	}
	return nil
}

// AnnounceBlock marks block as seen and announces it to every registered
// peer
func (f *FlowContext) AnnounceBlock(block *model.Block) int {
	f.MarkBlockSeen(block.Hash)
	return f.Broadcast(appmessage.NewMsgNewBlock(block))
}
