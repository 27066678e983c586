package model

const (
	// InitialBlockReward is the coinbase amount of the blocks before the
	// first halving.
	InitialBlockReward = 50.0

	// HalvingInterval is the number of blocks between two halvings of the
	// block reward.
	HalvingInterval = 1_051_200

	// MinimumBlockReward is the floor of the block reward. Rewards never
	// reach zero.
	MinimumBlockReward = 0.00000001

	// RewardTolerance is the allowed absolute difference between a coinbase
	// amount and the expected reward.
	RewardTolerance = 0.00000001
)

// CalculateBlockReward returns the coinbase amount expected for a block at
// the given height.
func CalculateBlockReward(height uint64) float64 {
	halvings := height / HalvingInterval

	reward := InitialBlockReward
	for i := uint64(0); i < halvings && reward >= MinimumBlockReward; i++ {
		reward /= 2
	}

	if reward < MinimumBlockReward {
		reward = MinimumBlockReward
	}
	return reward
}
