// Package node adapts btcd's rpcclient to the wallet operations btcops needs.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/sirupsen/logrus"

	"github.com/ggonzalez94/btcops/internal/amount"
	"github.com/ggonzalez94/btcops/internal/network"
)

// errCodeInWarmup is returned by bitcoind while it is still loading.
const errCodeInWarmup = btcjson.RPCErrorCode(-28)

type Client struct {
	rpc *rpcclient.Client
	net network.Network
	log logrus.FieldLogger
}

// Connect builds an RPC client bound to n and checks that the node answers,
// accepts the credentials and runs on the same network.
func Connect(ctx context.Context, n network.Network, ep network.Endpoint, log logrus.FieldLogger) (*Client, error) {
	cfg := &rpcclient.ConnConfig{
		Host:         ep.Host,
		User:         ep.User,
		Pass:         ep.Pass,
		CookiePath:   ep.CookiePath,
		Params:       n.Params.Name,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	// Notifications are not available in HTTP POST mode.
	rpc, err := rpcclient.New(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("create rpc client: %w", err)
	}
	c := &Client{
		rpc: rpc,
		net: n,
		log: log.WithFields(logrus.Fields{"network": n.Name, "node": ep.Redacted()}),
	}
	if err := c.probe(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.log.Debug("probing node")
	raw, err := c.rpc.RawRequest("getblockchaininfo", nil)
	if err != nil {
		if RPCErrorCode(err) == errCodeInWarmup {
			return fmt.Errorf("node is still starting: %w", err)
		}
		return fmt.Errorf("getblockchaininfo: %w", err)
	}
	var info btcjson.GetBlockChainInfoResult
	if err := json.Unmarshal(raw, &info); err != nil {
		return fmt.Errorf("decode getblockchaininfo: %w", err)
	}
	if info.Chain != c.net.Chain {
		return fmt.Errorf("node runs chain %q but %s was selected", info.Chain, c.net.Name)
	}
	c.log.WithField("blocks", info.Blocks).Debug("node reachable")
	return nil
}

// SendToAddress sends amt satoshi to address. The amount goes over the wire as
// an exact decimal so no float rounding can change it.
func (c *Client) SendToAddress(ctx context.Context, address string, amt uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, err := json.Marshal(address)
	if err != nil {
		return "", err
	}
	params := []json.RawMessage{addr, json.RawMessage(amount.ToDisplay(amt))}
	c.log.WithField("amount_sat", amt).Debug("sendtoaddress")
	raw, err := c.rpc.RawRequest("sendtoaddress", params)
	if err != nil {
		return "", err
	}
	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", fmt.Errorf("decode sendtoaddress result: %w", err)
	}
	return txid, nil
}

// GetNewAddress asks the wallet for a fresh receiving address.
func (c *Client) GetNewAddress(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.log.Debug("getnewaddress")
	addr, err := c.rpc.GetNewAddress("")
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// GetBalance returns the wallet balance in satoshi counting outputs with at
// least minConf confirmations.
func (c *Client) GetBalance(ctx context.Context, minConf int) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.log.WithField("minconf", minConf).Debug("getbalance")
	bal, err := c.rpc.GetBalanceMinConf("*", minConf)
	if err != nil {
		return 0, err
	}
	if bal < 0 {
		return 0, fmt.Errorf("node reported negative balance %s", bal)
	}
	return uint64(bal), nil
}

// Close releases the client. Safe to call on a nil client.
func (c *Client) Close() {
	if c == nil || c.rpc == nil {
		return
	}
	c.rpc.Shutdown()
	c.rpc.WaitForShutdown()
}

// RPCErrorCode extracts the node's JSON-RPC error code, or 0 when err is not a
// node-side error.
func RPCErrorCode(err error) btcjson.RPCErrorCode {
	rpcErr := new(btcjson.RPCError)
	if !errors.As(err, &rpcErr) {
		return 0
	}
	return rpcErr.Code
}
