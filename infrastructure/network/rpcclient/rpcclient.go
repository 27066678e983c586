package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// maxResponseSize bounds the size of a JSON-RPC response body
const maxResponseSize = 32 * 1024 * 1024

// ErrRPC is an error in the RPC protocol
var ErrRPC = errors.New("rpc error")

// RPCError is an error object returned by the RPC server
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     uint64          `json:"id"`
}

// RPCClient is a JSON-RPC 2.0 client of an upstream GXC node
type RPCClient struct {
	rpcURL     string
	httpClient *http.Client
	nextID     uint64
}

// NewRPCClient creates a new RPC client of the node at rpcURL
func NewRPCClient(rpcURL string) *RPCClient {
	return &RPCClient{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SetTimeout sets the timeout by which to wait for RPC responses
func (c *RPCClient) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Address returns the URL of the RPC server
func (c *RPCClient) Address() string {
	return c.rpcURL
}

// call sends a request for method with params and decodes its result into
// result
func (c *RPCClient) call(method string, result interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	id := atomic.AddUint64(&c.nextID, 1)
	requestBytes, err := json.Marshal(&request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return errors.Wrapf(err, "error serializing the %s request", method)
	}

	log.Tracef("RPC call %s (id %d)", method, id)
	httpResponse, err := c.httpClient.Post(c.rpcURL, "application/json", bytes.NewReader(requestBytes))
	if err != nil {
		return errors.Wrapf(err, "error sending the %s request to %s", method, c.rpcURL)
	}
	defer httpResponse.Body.Close()

	responseBytes, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxResponseSize))
	if err != nil {
		return errors.Wrapf(err, "error reading the %s response", method)
	}

	var rpcResponse response
	err = json.Unmarshal(responseBytes, &rpcResponse)
	if err != nil {
		return errors.Wrapf(err, "error parsing the %s response (HTTP status %s)", method, httpResponse.Status)
	}
	if rpcResponse.Error != nil {
		return errors.Wrapf(ErrRPC, "%s: %s", method, rpcResponse.Error)
	}
	if result == nil {
		return nil
	}
	if len(rpcResponse.Result) == 0 || bytes.Equal(rpcResponse.Result, []byte("null")) {
		return errors.Wrapf(ErrRPC, "%s: response is missing a result", method)
	}

	err = json.Unmarshal(rpcResponse.Result, result)
	if err != nil {
		return errors.Wrapf(err, "error parsing the %s result", method)
	}
	return nil
}
