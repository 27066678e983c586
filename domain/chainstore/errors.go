package chainstore

import "github.com/pkg/errors"

var (
	// ErrBlockNotFound indicates that no block exists at the requested
	// height or with the requested hash.
	ErrBlockNotFound = errors.New("block not found")

	// ErrChainEmpty indicates that the chain has no blocks yet.
	ErrChainEmpty = errors.New("chain is empty")

	// ErrTransactionNotFound indicates that no stored block contains the
	// requested transaction.
	ErrTransactionNotFound = errors.New("transaction not found")
)
