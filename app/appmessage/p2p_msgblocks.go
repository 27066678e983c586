package appmessage

import "github.com/gxcnet/gxcpeerd/domain/consensus/model"

// MaxBlocksPerMessage is the maximum number of blocks sent in a single
// MsgBlocks. Larger requests are truncated.
const MaxBlocksPerMessage = 500

// MsgGetBlocks implements the Message interface and represents a GXC
// GetBlocks message. It requests count blocks starting at StartHeight.
type MsgGetBlocks struct {
	baseMessage
	StartHeight uint64 `json:"start_height"`
	Count       uint64 `json:"count"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgGetBlocks) Command() MessageCommand {
	return CmdGetBlocks
}

// NewMsgGetBlocks returns a new GXC GetBlocks message
func NewMsgGetBlocks(startHeight, count uint64) *MsgGetBlocks {
	return &MsgGetBlocks{StartHeight: startHeight, Count: count}
}

// MsgBlocks implements the Message interface and represents a GXC Blocks
// message. It answers MsgGetBlocks with blocks in increasing height order.
type MsgBlocks struct {
	baseMessage
	Blocks []*model.Block `json:"blocks"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgBlocks) Command() MessageCommand {
	return CmdBlocks
}

// NewMsgBlocks returns a new GXC Blocks message
func NewMsgBlocks(blocks []*model.Block) *MsgBlocks {
	if blocks == nil {
		blocks = []*model.Block{}
	}
	return &MsgBlocks{Blocks: blocks}
}

// MsgGetBlock implements the Message interface and represents a GXC
// GetBlock message. It requests a single block by hash.
type MsgGetBlock struct {
	baseMessage
	Hash string `json:"hash"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgGetBlock) Command() MessageCommand {
	return CmdGetBlock
}

// NewMsgGetBlock returns a new GXC GetBlock message
func NewMsgGetBlock(hash string) *MsgGetBlock {
	return &MsgGetBlock{Hash: hash}
}

// MsgBlock implements the Message interface and represents a GXC Block
// message. It answers MsgGetBlock.
type MsgBlock struct {
	baseMessage
	Block *model.Block `json:"block"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgBlock) Command() MessageCommand {
	return CmdBlock
}

// NewMsgBlock returns a new GXC Block message
func NewMsgBlock(block *model.Block) *MsgBlock {
	return &MsgBlock{Block: block}
}

// MsgNewBlock implements the Message interface and represents a GXC
// NewBlock message. It announces a block that was just accepted.
type MsgNewBlock struct {
	baseMessage
	Block *model.Block `json:"block"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgNewBlock) Command() MessageCommand {
	return CmdNewBlock
}

// NewMsgNewBlock returns a new GXC NewBlock message
func NewMsgNewBlock(block *model.Block) *MsgNewBlock {
	return &MsgNewBlock{Block: block}
}
