package rpcclient

import "github.com/gxcnet/gxcpeerd/domain/consensus/model"

// SubmitBlock sends an RPC request respective to the function's name and returns the RPC server's response
func (c *RPCClient) SubmitBlock(block *model.Block) error {
	return c.call("submitblock", nil, block)
}
