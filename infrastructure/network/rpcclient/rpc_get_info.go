package rpcclient

// BlockchainInfo is the result of getinfo
type BlockchainInfo struct {
	Chain                string  `json:"chain"`
	Blocks               uint64  `json:"blocks"`
	Headers              uint64  `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	Difficulty           float64 `json:"difficulty"`
	MedianTime           uint64  `json:"mediantime"`
	VerificationProgress float64 `json:"verificationprogress"`
	ChainWork            string  `json:"chainwork"`
}

// GetInfo sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) GetInfo() (*BlockchainInfo, error) {
	info := &BlockchainInfo{}
	err := c.call("getinfo", info)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// HealthCheck returns whether the RPC server answers getblockcount
func (c *RPCClient) HealthCheck() bool {
	_, err := c.GetBlockCount()
	if err != nil {
		log.Warnf("Health check of %s failed: %s", c.rpcURL, err)
		return false
	}
	return true
}
