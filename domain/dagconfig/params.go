// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dagconfig

import (
	"time"

	"github.com/gxcnet/gxcpeerd/util/network"
	"github.com/pkg/errors"
)

const (
	// defaultMaxFutureBlockTime is how far ahead of the local clock a block
	// timestamp may be.
	defaultMaxFutureBlockTime = 2 * time.Hour
)

// Params defines a GXC network by its parameters. These parameters are used
// to differentiate networks and to configure the consensus rules that depend
// on the network.
type Params struct {
	// Name defines a human-readable identifier for the network. It is also
	// exchanged in the handshake, so peers of different networks never
	// register each other.
	Name string

	// RPCPort defines the default port of the upstream JSON-RPC node.
	RPCPort string

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// MinDifficulty is the lowest difficulty a block may declare.
	MinDifficulty float64

	// MaxFutureBlockTime is the maximum offset a block timestamp is allowed
	// to be ahead of the local clock.
	MaxFutureBlockTime time.Duration

	// DefaultBootstrapPeers are dialed on start when no --addpeer is given.
	DefaultBootstrapPeers []string
}

// NormalizeRPCServerAddress returns addr with the current network default
// RPC port appended if there is not already a port specified.
func (p *Params) NormalizeRPCServerAddress(addr string) (string, error) {
	return network.NormalizeAddress(addr, p.RPCPort)
}

// NormalizePeerAddress returns addr with the current network default
// peer-to-peer port appended if there is not already a port specified.
func (p *Params) NormalizePeerAddress(addr string) (string, error) {
	return network.NormalizeAddress(addr, p.DefaultPort)
}

// MainnetParams defines the network parameters for the main GXC network.
var MainnetParams = Params{
	Name:                  "mainnet",
	RPCPort:               "8332",
	DefaultPort:           "18333",
	MinDifficulty:         1000,
	MaxFutureBlockTime:    defaultMaxFutureBlockTime,
	DefaultBootstrapPeers: []string{"localhost:18333"},
}

// TestnetParams defines the network parameters for the test GXC network.
var TestnetParams = Params{
	Name:                  "testnet",
	RPCPort:               "18332",
	DefaultPort:           "18444",
	MinDifficulty:         1,
	MaxFutureBlockTime:    defaultMaxFutureBlockTime,
	DefaultBootstrapPeers: []string{"localhost:18333"},
}

// DevnetParams defines the network parameters for a local development
// network. Any difficulty is accepted, which makes it convenient for
// hand-made chains.
var DevnetParams = Params{
	Name:                  "devnet",
	RPCPort:               "28332",
	DefaultPort:           "28444",
	MinDifficulty:         0,
	MaxFutureBlockTime:    defaultMaxFutureBlockTime,
	DefaultBootstrapPeers: []string{},
}

var (
	// ErrDuplicateNet describes an error where the parameters for a GXC
	// network could not be set due to the network already being a standard
	// network or previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate GXC network")

	// ErrUnknownNet describes an error where a network name does not match
	// any registered network.
	ErrUnknownNet = errors.New("unknown GXC network")
)

var registeredNets = make(map[string]*Params)

// Register registers the network parameters for a GXC network. This may
// error with ErrDuplicateNet if the network is already registered (either
// due to a previous Register call, or the network being one of the default
// networks).
func Register(params *Params) error {
	if _, ok := registeredNets[params.Name]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Name] = params
	return nil
}

// ParamsByName returns the registered network with the given name
func ParamsByName(name string) (*Params, error) {
	params, ok := registeredNets[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNet, "network %q", name)
	}
	return params, nil
}

// mustRegister performs the same function as Register except it panics if there
// is an error. This should only be called from package init functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

func init() {
	// Register all default networks when the package is initialized.
	mustRegister(&MainnetParams)
	mustRegister(&TestnetParams)
	mustRegister(&DevnetParams)
}
