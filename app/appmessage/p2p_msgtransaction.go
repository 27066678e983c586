package appmessage

import "github.com/gxcnet/gxcpeerd/domain/consensus/model"

// MsgGetTransaction implements the Message interface and represents a GXC
// GetTransaction message. It requests a transaction by hash.
type MsgGetTransaction struct {
	baseMessage
	Hash string `json:"hash"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgGetTransaction) Command() MessageCommand {
	return CmdGetTransaction
}

// NewMsgGetTransaction returns a new GXC GetTransaction message
func NewMsgGetTransaction(hash string) *MsgGetTransaction {
	return &MsgGetTransaction{Hash: hash}
}

// MsgTransaction implements the Message interface and represents a GXC
// Transaction message. It answers MsgGetTransaction.
type MsgTransaction struct {
	baseMessage
	Tx *model.Transaction `json:"tx"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgTransaction) Command() MessageCommand {
	return CmdTransaction
}

// NewMsgTransaction returns a new GXC Transaction message
func NewMsgTransaction(tx *model.Transaction) *MsgTransaction {
	return &MsgTransaction{Tx: tx}
}

// MsgNewTransaction implements the Message interface and represents a GXC
// NewTransaction message. It announces an unconfirmed transaction.
type MsgNewTransaction struct {
	baseMessage
	Tx *model.Transaction `json:"tx"`
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgNewTransaction) Command() MessageCommand {
	return CmdNewTransaction
}

// NewMsgNewTransaction returns a new GXC NewTransaction message
func NewMsgNewTransaction(tx *model.Transaction) *MsgNewTransaction {
	return &MsgNewTransaction{Tx: tx}
}
