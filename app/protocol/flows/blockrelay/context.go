package blockrelay

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
)

// RelayContext is the interface for the context needed for the block relay flows.
type RelayContext interface {
	ChainStore() *chainstore.ChainStore
	AddBlock(block *model.Block) error
	IsBlockSeen(hash string) bool
	MarkBlockSeen(hash string)
	BroadcastExcept(message appmessage.Message, except *peerpkg.Peer) int
}
