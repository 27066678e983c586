package model

import "github.com/gxcnet/gxcpeerd/domain/consensus/utils/hashes"

// CalculateMerkleRoot returns the merkle root of the given transactions.
// Each level hashes the concatenation of adjacent hex hashes, and an odd
// last hash is paired with itself, so a single transaction yields
// hash(tx || tx). No transactions yield ZeroHashString.
func CalculateMerkleRoot(transactions []*Transaction) string {
	if len(transactions) == 0 {
		return hashes.ZeroHashString
	}

	level := make([]string, len(transactions))
	for i, tx := range transactions {
		level[i] = tx.Hash
	}
	return merkleRootFromHashes(level)
}

func merkleRootFromHashes(level []string) string {
	for {
		nextLevel := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			nextLevel = append(nextLevel, hashes.HashStringsHex(left, right))
		}
		if len(nextLevel) == 1 {
			return nextLevel[0]
		}
		level = nextLevel
	}
}
