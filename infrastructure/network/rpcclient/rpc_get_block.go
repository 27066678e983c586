package rpcclient

import "github.com/gxcnet/gxcpeerd/domain/consensus/model"

// GetBlock sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) GetBlock(height uint64) (*model.Block, error) {
	block := &model.Block{}
	err := c.call("getblock", block, height)
	if err != nil {
		return nil, err
	}
	return block, nil
}

// GetBlockByHash sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) GetBlockByHash(hash string) (*model.Block, error) {
	block := &model.Block{}
	err := c.call("getblock", block, hash)
	if err != nil {
		return nil, err
	}
	return block, nil
}
