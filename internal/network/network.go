// Package network selects the Bitcoin network an invocation talks to and
// resolves where and how to reach its node.
//
// The network is chosen first and passed by value to everything that follows.
// Mainnet and testnet differ in address encoding, RPC port and data directory
// layout, so nothing may connect before the selection is made.
package network

import (
	"github.com/btcsuite/btcd/chaincfg"
)

const (
	Mainnet = "mainnet"
	Testnet = "testnet"
)

// Network is an immutable parameter set for one Bitcoin network.
type Network struct {
	Name string
	// Params is handed to the RPC client so addresses it decodes are checked
	// against the right network.
	Params *chaincfg.Params
	// RPCPort is the node's default JSON-RPC port.
	RPCPort int
	// DataSubdir is where the node keeps per-network files below its data
	// directory, including the auth cookie.
	DataSubdir string
	// ConfSection is the bitcoin.conf section holding network-only options.
	ConfSection string
	// Chain is the value getblockchaininfo reports for this network.
	Chain string
}

var (
	mainnet = Network{
		Name:        Mainnet,
		Params:      &chaincfg.MainNetParams,
		RPCPort:     8332,
		DataSubdir:  "",
		ConfSection: "main",
		Chain:       "main",
	}
	testnet = Network{
		Name:        Testnet,
		Params:      &chaincfg.TestNet3Params,
		RPCPort:     18332,
		DataSubdir:  "testnet3",
		ConfSection: "test",
		Chain:       "test",
	}
)

// Select returns the parameter set for testnet or mainnet.
func Select(useTestnet bool) Network {
	if useTestnet {
		return testnet
	}
	return mainnet
}
