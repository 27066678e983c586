package config

import (
	"fmt"
	"os"

	"github.com/gxcnet/gxcpeerd/domain/dagconfig"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Testnet bool   `long:"testnet" description:"Use the test network"`
	Devnet  bool   `long:"devnet" description:"Use the development test network"`
	Network string `long:"network" description:"Select the network by name {mainnet, testnet, devnet}"`

	ActiveNetParams *dagconfig.Params
}

// ResolveNetwork parses the network command line argument and sets NetParams accordingly.
// It returns error if more than one network was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// Default net is main net
	networkFlags.ActiveNetParams = &dagconfig.MainnetParams

	// Multiple networks can't be selected simultaneously. Count the number
	// of network flags passed and assign the active network params while
	// we're at it.
	numNets := 0
	if networkFlags.Testnet {
		numNets++
		networkFlags.ActiveNetParams = &dagconfig.TestnetParams
	}
	if networkFlags.Devnet {
		numNets++
		networkFlags.ActiveNetParams = &dagconfig.DevnetParams
	}
	if networkFlags.Network != "" {
		params, err := dagconfig.ParamsByName(networkFlags.Network)
		if err != nil {
			return err
		}
		if numNets == 1 && params != networkFlags.ActiveNetParams {
			numNets++
		} else if numNets == 0 {
			numNets++
		}
		networkFlags.ActiveNetParams = params
	}
	if numNets > 1 {
		message := "Multiple networks parameters (testnet, devnet, network) cannot be used " +
			"together. Please choose only one network"
		err := errors.Errorf(message)
		if parser != nil {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
		}
		return err
	}

	return nil
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *dagconfig.Params {
	return networkFlags.ActiveNetParams
}
