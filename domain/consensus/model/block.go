package model

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gxcnet/gxcpeerd/domain/consensus/utils/hashes"
)

// Block represents a block of the chain. Once a block is appended to the
// chain store it must not be modified.
type Block struct {
	Height       uint64         `json:"height"`
	Hash         string         `json:"hash"`
	PreviousHash string         `json:"previous_hash"`
	MerkleRoot   string         `json:"merkle_root"`
	Timestamp    uint64         `json:"timestamp"`
	Nonce        uint64         `json:"nonce"`
	Difficulty   float64        `json:"difficulty"`
	Miner        string         `json:"miner"`
	WorkReceipt  string         `json:"work_receipt"`
	Transactions []*Transaction `json:"transactions"`
}

// If this doesn't compile, it means the type definition has been changed, so it's
// an indication to update Equal and Clone accordingly.
var _ = Block{0, "", "", "", 0, 0, 0, "", "", []*Transaction{}}

// Clone returns a deep clone of Block
func (block *Block) Clone() *Block {
	if block == nil {
		return nil
	}
	clone := *block
	if block.Transactions != nil {
		clone.Transactions = make([]*Transaction, len(block.Transactions))
		for i, tx := range block.Transactions {
			clone.Transactions[i] = tx.Clone()
		}
	}
	return &clone
}

// Equal returns whether block equals to other
func (block *Block) Equal(other *Block) bool {
	if block == nil || other == nil {
		return block == other
	}
	if block.Height != other.Height ||
		block.Hash != other.Hash ||
		block.PreviousHash != other.PreviousHash ||
		block.MerkleRoot != other.MerkleRoot ||
		block.Timestamp != other.Timestamp ||
		block.Nonce != other.Nonce ||
		block.Difficulty != other.Difficulty ||
		block.Miner != other.Miner ||
		block.WorkReceipt != other.WorkReceipt {
		return false
	}
	if len(block.Transactions) != len(other.Transactions) {
		return false
	}
	for i, tx := range block.Transactions {
		if !tx.Equal(other.Transactions[i]) {
			return false
		}
	}
	return true
}

func (block *Block) String() string {
	return fmt.Sprintf("block %d (%s)", block.Height, block.Hash)
}

// FormatDifficulty returns the textual form of difficulty used inside the
// work receipt preimage: the shortest decimal representation, without a
// trailing ".0" for whole numbers.
func FormatDifficulty(difficulty float64) string {
	return strconv.FormatFloat(difficulty, 'f', -1, 64)
}

// ComputeWorkReceipt returns the digest binding the header fields of the
// block: previous hash, merkle root, nonce, miner, difficulty and
// timestamp, concatenated in that order.
//
// The preimage has no dedicated miner public key, the miner identity
// string stands in for it.
func (block *Block) ComputeWorkReceipt() string {
	return hashes.HashStringsHex(
		block.PreviousHash,
		block.MerkleRoot,
		strconv.FormatUint(block.Nonce, 10),
		block.Miner,
		FormatDifficulty(block.Difficulty),
		strconv.FormatUint(block.Timestamp, 10),
	)
}

// VerifyWorkReceipt returns whether the stored work receipt matches the
// recomputed one.
func (block *Block) VerifyWorkReceipt() bool {
	return block.ComputeWorkReceipt() == block.WorkReceipt
}

// RequiredLeadingZeros returns the number of leading zero hex digits the
// block hash must have to satisfy its difficulty.
func (block *Block) RequiredLeadingZeros() int {
	if block.Difficulty <= 0 || math.IsNaN(block.Difficulty) {
		return 0
	}
	if block.Difficulty >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(block.Difficulty))
}

// VerifyProofOfWork returns whether the block hash has at least
// floor(difficulty) leading '0' hex digits.
func (block *Block) VerifyProofOfWork() bool {
	return hashes.LeadingZeroDigits(block.Hash) >= block.RequiredLeadingZeros()
}

// CalculateMerkleRoot returns the merkle root of the block's transactions.
func (block *Block) CalculateMerkleRoot() string {
	return CalculateMerkleRoot(block.Transactions)
}

// VerifyMerkleRoot returns whether the stored merkle root matches the
// recomputed one.
func (block *Block) VerifyMerkleRoot() bool {
	return block.CalculateMerkleRoot() == block.MerkleRoot
}

// Coinbase returns the first transaction of the block, or nil if there are
// no transactions.
func (block *Block) Coinbase() *Transaction {
	if len(block.Transactions) == 0 {
		return nil
	}
	return block.Transactions[0]
}

// VerifyCoinbase returns whether the first transaction is a coinbase paying
// exactly the reward for the block's height.
func (block *Block) VerifyCoinbase() bool {
	coinbase := block.Coinbase()
	if coinbase == nil || !coinbase.IsCoinbase {
		return false
	}
	expectedReward := CalculateBlockReward(block.Height)
	return math.Abs(coinbase.Amount-expectedReward) < RewardTolerance
}
