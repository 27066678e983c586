package validator

import (
	"time"

	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/domain/consensus/ruleerrors"
	"github.com/gxcnet/gxcpeerd/domain/dagconfig"
	"github.com/gxcnet/gxcpeerd/infrastructure/clock"
	"github.com/pkg/errors"
)

// Validator checks blocks against the consensus rules of a network
type Validator struct {
	minDifficulty      float64
	maxFutureBlockTime time.Duration
	clock              clock.Clock
}

// New creates a Validator for the given network. The clock is used for the
// future timestamp rule.
func New(params *dagconfig.Params, clock clock.Clock) *Validator {
	return &Validator{
		minDifficulty:      params.MinDifficulty,
		maxFutureBlockTime: params.MaxFutureBlockTime,
		clock:              clock,
	}
}

// MinDifficulty returns the lowest difficulty accepted by the validator
func (v *Validator) MinDifficulty() float64 {
	return v.minDifficulty
}

// Validate runs every consensus rule against block. previous is the block
// directly before it, or nil when block is the first block of the chain.
// Rules are checked in a fixed order and the first violation is returned.
func (v *Validator) Validate(block, previous *model.Block) error {
	err := checkNoMissingTransactions(block)
	if err != nil {
		return err
	}

	err = v.checkProofOfWork(block)
	if err != nil {
		return err
	}

	err = checkWorkReceipt(block)
	if err != nil {
		return err
	}

	if !block.VerifyMerkleRoot() {
		return errors.Wrapf(ruleerrors.ErrBadMerkleRoot, "block %d merkle root %s is not the "+
			"calculated %s", block.Height, block.MerkleRoot, block.CalculateMerkleRoot())
	}

	if !block.VerifyCoinbase() {
		return errors.Wrapf(ruleerrors.ErrBadCoinbase, "block %d does not start with a coinbase "+
			"paying %v", block.Height, model.CalculateBlockReward(block.Height))
	}

	err = v.checkDifficulty(block)
	if err != nil {
		return err
	}

	err = v.checkTimestampNotInFuture(block)
	if err != nil {
		return err
	}

	if previous != nil {
		err = checkLinkage(block, previous)
		if err != nil {
			return err
		}
	}

	err = checkTransactions(block)
	if err != nil {
		return err
	}

	log.Tracef("Block %d (%s) passed validation", block.Height, block.Hash)
	return nil
}

// QuickValidate checks only the rules that do not depend on the rest of the
// chain or on the transactions' contents: no null transaction entries,
// proof of work, work receipt and minimum difficulty.
func (v *Validator) QuickValidate(block *model.Block) error {
	err := checkNoMissingTransactions(block)
	if err != nil {
		return err
	}

	err = v.checkProofOfWork(block)
	if err != nil {
		return err
	}

	err = checkWorkReceipt(block)
	if err != nil {
		return err
	}

	return v.checkDifficulty(block)
}

// checkNoMissingTransactions must run before anything hashes or reads the
// transactions.
func checkNoMissingTransactions(block *model.Block) error {
	for i, tx := range block.Transactions {
		if tx == nil {
			return errors.Wrapf(ruleerrors.ErrMissingTransaction, "block %d transaction %d is null",
				block.Height, i)
		}
	}
	return nil
}

func (v *Validator) checkProofOfWork(block *model.Block) error {
	if !block.VerifyProofOfWork() {
		return errors.Wrapf(ruleerrors.ErrInvalidPoW, "block %d hash %s does not have %d leading zeros",
			block.Height, block.Hash, block.RequiredLeadingZeros())
	}
	return nil
}

func checkWorkReceipt(block *model.Block) error {
	if !block.VerifyWorkReceipt() {
		return errors.Wrapf(ruleerrors.ErrBadWorkReceipt, "block %d work receipt %s is not the "+
			"calculated %s", block.Height, block.WorkReceipt, block.ComputeWorkReceipt())
	}
	return nil
}

func (v *Validator) checkDifficulty(block *model.Block) error {
	if block.Difficulty < v.minDifficulty {
		return errors.Wrapf(ruleerrors.ErrDifficultyTooLow, "block %d difficulty %v is below the "+
			"minimum of %v", block.Height, block.Difficulty, v.minDifficulty)
	}
	return nil
}

func (v *Validator) checkTimestampNotInFuture(block *model.Block) error {
	now := v.clock.Now().Unix()
	maxTimestamp := now + int64(v.maxFutureBlockTime/time.Second)
	if maxTimestamp >= 0 && block.Timestamp > uint64(maxTimestamp) {
		return errors.Wrapf(ruleerrors.ErrTimeTooMuchInTheFuture, "block %d timestamp %d is too far "+
			"in the future, the maximum allowed is %d", block.Height, block.Timestamp, maxTimestamp)
	}
	return nil
}

func checkLinkage(block, previous *model.Block) error {
	if block.PreviousHash != previous.Hash {
		return errors.Wrapf(ruleerrors.ErrPreviousHashMismatch, "block %d points to %s but the hash of "+
			"block %d is %s", block.Height, block.PreviousHash, previous.Height, previous.Hash)
	}
	if block.Height != previous.Height+1 {
		return errors.Wrapf(ruleerrors.ErrUnexpectedHeight, "block %d follows block %d",
			block.Height, previous.Height)
	}
	if block.Timestamp <= previous.Timestamp {
		return errors.Wrapf(ruleerrors.ErrTimeTooOld, "block %d timestamp %d is not after the "+
			"previous block timestamp %d", block.Height, block.Timestamp, previous.Timestamp)
	}
	return nil
}

func checkTransactions(block *model.Block) error {
	for i, tx := range block.Transactions {
		err := checkTransaction(i, tx)
		if err != nil {
			return errors.Wrapf(ruleerrors.NewErrInvalidTransactionInBlock(i, tx.Hash, err),
				"block %d", block.Height)
		}
	}
	return nil
}

func checkTransaction(index int, tx *model.Transaction) error {
	if index == 0 {
		if !tx.IsCoinbase {
			return ruleerrors.ErrFirstTxNotCoinbase
		}
		return nil
	}

	if tx.IsCoinbase {
		return ruleerrors.ErrMultipleCoinbases
	}
	if tx.Amount <= 0 {
		return errors.Wrapf(ruleerrors.ErrBadTxAmount, "amount %v", tx.Amount)
	}
	if tx.Fee < 0 {
		return errors.Wrapf(ruleerrors.ErrNegativeFee, "fee %v", tx.Fee)
	}
	return nil
}
