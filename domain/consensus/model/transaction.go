package model

import "fmt"

// Transaction represents a transaction inside a block. The node does not
// verify signatures, it only checks amounts and coinbase placement.
type Transaction struct {
	Hash       string  `json:"hash"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Amount     float64 `json:"amount"`
	Fee        float64 `json:"fee"`
	Timestamp  uint64  `json:"timestamp"`
	Signature  string  `json:"signature"`
	IsCoinbase bool    `json:"is_coinbase"`
}

// If this doesn't compile, it means the type definition has been changed, so it's
// an indication to update Equal and Clone accordingly.
var _ = Transaction{"", "", "", 0, 0, 0, "", false}

// Clone returns a clone of Transaction
func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return nil
	}
	clone := *tx
	return &clone
}

// Equal returns whether tx equals to other
func (tx *Transaction) Equal(other *Transaction) bool {
	if tx == nil || other == nil {
		return tx == other
	}
	return *tx == *other
}

func (tx *Transaction) String() string {
	if tx.IsCoinbase {
		return fmt.Sprintf("coinbase %s (%s -> %s, %v)", tx.Hash, tx.From, tx.To, tx.Amount)
	}
	return fmt.Sprintf("tx %s (%s -> %s, %v, fee %v)", tx.Hash, tx.From, tx.To, tx.Amount, tx.Fee)
}
