package testutils

import (
	"fmt"
	"testing"

	"github.com/gxcnet/gxcpeerd/domain/consensus/model"
	"github.com/gxcnet/gxcpeerd/domain/consensus/utils/hashes"
	"github.com/gxcnet/gxcpeerd/domain/dagconfig"
)

// GenesisTimestamp is the timestamp of the first block built by BuildChain
const GenesisTimestamp = 1700000000

// BlockInterval is the number of seconds between consecutive blocks built
// by BuildChain
const BlockInterval = 60

// ForAllNets runs the passed testFunc with all available networks
func ForAllNets(t *testing.T, testFunc func(*testing.T, *dagconfig.Params)) {
	allParams := []dagconfig.Params{
		dagconfig.TestnetParams,
		dagconfig.DevnetParams,
	}

	for _, params := range allParams {
		params := params
		t.Run(params.Name, func(t *testing.T) {
			t.Parallel()
			testFunc(t, &params)
		})
	}
}

// CoinbaseTransaction returns a coinbase paying the correct reward for height
func CoinbaseTransaction(height uint64, miner string) *model.Transaction {
	return &model.Transaction{
		Hash:       hashes.HashStringsHex("coinbase", fmt.Sprint(height), miner),
		From:       "coinbase",
		To:         miner,
		Amount:     model.CalculateBlockReward(height),
		Timestamp:  GenesisTimestamp + height*BlockInterval,
		IsCoinbase: true,
	}
}

// TransferTransaction returns a regular transaction with the given amount
// and fee
func TransferTransaction(seed string, amount, fee float64) *model.Transaction {
	return &model.Transaction{
		Hash:      hashes.HashStringsHex("transfer", seed),
		From:      "alice",
		To:        "bob",
		Amount:    amount,
		Fee:       fee,
		Timestamp: GenesisTimestamp,
		Signature: "signature",
	}
}

// MineBlock returns a block following previous (or a genesis block when
// previous is nil) that satisfies every consensus rule for difficulty.
// The block hash is the first work receipt with enough leading zeros.
func MineBlock(previous *model.Block, difficulty float64, extraTransactions ...*model.Transaction) *model.Block {
	block := &model.Block{
		Height:       0,
		PreviousHash: hashes.ZeroHashString,
		Timestamp:    GenesisTimestamp,
		Difficulty:   difficulty,
		Miner:        "test-miner",
	}
	if previous != nil {
		block.Height = previous.Height + 1
		block.PreviousHash = previous.Hash
		block.Timestamp = previous.Timestamp + BlockInterval
	}

	block.Transactions = append([]*model.Transaction{CoinbaseTransaction(block.Height, block.Miner)},
		extraTransactions...)
	Seal(block)
	return block
}

// Seal recomputes the merkle root, then searches a nonce whose work
// receipt satisfies the block difficulty and uses it as the block hash.
// Call it after modifying a block built by MineBlock.
func Seal(block *model.Block) {
	block.MerkleRoot = block.CalculateMerkleRoot()
	for nonce := uint64(0); ; nonce++ {
		block.Nonce = nonce
		receipt := block.ComputeWorkReceipt()
		if hashes.LeadingZeroDigits(receipt) >= block.RequiredLeadingZeros() {
			block.WorkReceipt = receipt
			block.Hash = receipt
			return
		}
	}
}

// BuildChain returns a valid chain of length blocks starting at genesis
func BuildChain(length int, difficulty float64) []*model.Block {
	chain := make([]*model.Block, 0, length)
	var previous *model.Block
	for i := 0; i < length; i++ {
		block := MineBlock(previous, difficulty)
		chain = append(chain, block)
		previous = block
	}
	return chain
}
