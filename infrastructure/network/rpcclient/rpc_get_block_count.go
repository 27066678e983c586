package rpcclient

// GetBlockCount sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) GetBlockCount() (uint64, error) {
	var blockCount uint64
	err := c.call("getblockcount", &blockCount)
	if err != nil {
		return 0, err
	}
	return blockCount, nil
}
