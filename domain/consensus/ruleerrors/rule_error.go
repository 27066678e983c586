package ruleerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrInvalidPoW indicates that the block hash does not have enough
	// leading zeros for its difficulty.
	ErrInvalidPoW = newRuleError("ErrInvalidPoW")

	// ErrBadWorkReceipt indicates the recomputed work receipt does not
	// match the one carried by the block.
	ErrBadWorkReceipt = newRuleError("ErrBadWorkReceipt")

	// ErrBadMerkleRoot indicates the calculated merkle root does not match
	// the expected value.
	ErrBadMerkleRoot = newRuleError("ErrBadMerkleRoot")

	// ErrBadCoinbase indicates the first transaction is missing, is not a
	// coinbase, or does not pay the expected block reward.
	ErrBadCoinbase = newRuleError("ErrBadCoinbase")

	// ErrDifficultyTooLow indicates the block difficulty is below the
	// network minimum.
	ErrDifficultyTooLow = newRuleError("ErrDifficultyTooLow")

	//ErrTimeTooMuchInTheFuture indicates that the block timestamp is too much in the future.
	ErrTimeTooMuchInTheFuture = newRuleError("ErrTimeTooMuchInTheFuture")

	// ErrPreviousHashMismatch indicates the block does not point to the
	// hash of the block before it.
	ErrPreviousHashMismatch = newRuleError("ErrPreviousHashMismatch")

	// ErrUnexpectedHeight indicates the block height is not the height of
	// the block before it plus one.
	ErrUnexpectedHeight = newRuleError("ErrUnexpectedHeight")

	// ErrTimeTooOld indicates the block timestamp is not strictly after the
	// timestamp of the block before it.
	ErrTimeTooOld = newRuleError("ErrTimeTooOld")

	// ErrUnexpectedGenesis indicates a block that is not at height 0 was
	// offered as the first block of the chain.
	ErrUnexpectedGenesis = newRuleError("ErrUnexpectedGenesis")

	// ErrFirstTxNotCoinbase indicates the first transaction in a block
	// is not a coinbase transaction.
	ErrFirstTxNotCoinbase = newRuleError("ErrFirstTxNotCoinbase")

	// ErrMultipleCoinbases indicates a block contains more than one
	// coinbase transaction.
	ErrMultipleCoinbases = newRuleError("ErrMultipleCoinbases")

	// ErrBadTxAmount indicates a transaction amount is zero or negative.
	ErrBadTxAmount = newRuleError("ErrBadTxAmount")

	// ErrNegativeFee indicates a transaction fee is negative.
	ErrNegativeFee = newRuleError("ErrNegativeFee")

	// ErrMissingTransaction indicates the transaction list of a block has
	// a null entry.
	ErrMissingTransaction = newRuleError("ErrMissingTransaction")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many validation
// rules. The caller can use type assertions to determine if a failure was
// specifically due to a rule violation.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// ErrInvalidTransactionInBlock indicates a transaction of a block broke
// one of the transaction rules.
type ErrInvalidTransactionInBlock struct {
	Index  int
	TxHash string
	Err    error
}

func (e ErrInvalidTransactionInBlock) Error() string {
	return fmt.Sprintf("transaction %d (%s): %s", e.Index, e.TxHash, e.Err)
}

// Unwrap satisfies the errors.Unwrap interface
func (e ErrInvalidTransactionInBlock) Unwrap() error {
	return e.Err
}

// NewErrInvalidTransactionInBlock creates a new ErrInvalidTransactionInBlock
// error wrapped in a RuleError
func NewErrInvalidTransactionInBlock(index int, txHash string, err error) error {
	return errors.WithStack(RuleError{
		message: "ErrInvalidTransactionInBlock",
		inner:   ErrInvalidTransactionInBlock{Index: index, TxHash: txHash, Err: err},
	})
}

// IsRuleError returns whether err is, or wraps, a RuleError
func IsRuleError(err error) bool {
	return errors.As(err, &RuleError{})
}
