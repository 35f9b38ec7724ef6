// Package wallet runs the requested wallet actions against a node and folds
// their outcomes into one result.
package wallet

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ggonzalez94/btcops/internal/amount"
)

// Client is the slice of the node RPC surface the dispatcher drives.
type Client interface {
	SendToAddress(ctx context.Context, address string, amt uint64) (string, error)
	GetNewAddress(ctx context.Context) (string, error)
	GetBalance(ctx context.Context, minConf int) (uint64, error)
}

type Dispatcher struct {
	log logrus.FieldLogger
}

func NewDispatcher(log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Dispatcher{log: log}
}

// Run executes send, then getnewaddress, then getbalance. The first failure
// stops the run; anything already sent is reported in the failure's Committed
// result.
func (d *Dispatcher) Run(ctx context.Context, req Request, client Client) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	var res, committed Result
	fail := func(f *Failure) (Result, error) {
		f.Committed = committed
		return Result{}, f
	}

	if req.wantsSend() {
		inputs := req.sendInputs()
		sat, err := amount.ToBaseUnits(req.Amount)
		if err != nil {
			return fail(invalidAmount(inputs, err))
		}
		sent := TransactionSent{Address: req.SendToAddress, Amount: amount.ToDisplay(sat)}
		log := d.log.WithFields(logrus.Fields{"action": ActionSend, "address": sent.Address, "amount": sent.Amount})
		if req.DryRun {
			log.Info("dry run, skipping sendtoaddress")
			res.add(sent, false)
		} else {
			txid, err := client.SendToAddress(ctx, req.SendToAddress, sat)
			if err != nil {
				log.WithError(err).Debug("sendtoaddress failed")
				return fail(classifyRPC(ActionSend, "sendtoaddress", inputs, err))
			}
			sent.TxID = txid
			log.WithField("txid", txid).Info("transaction sent")
			res.add(sent, true)
			committed.add(sent, true)
		}
	}

	if req.GenerateNewAddress {
		log := d.log.WithField("action", ActionNewAddress)
		if req.DryRun {
			log.Info("dry run, skipping getnewaddress")
		} else {
			addr, err := client.GetNewAddress(ctx)
			if err != nil {
				log.WithError(err).Debug("getnewaddress failed")
				return fail(classifyRPC(ActionNewAddress, "getnewaddress", map[string]string{"getnewaddress": "yes"}, err))
			}
			log.WithField("address", addr).Info("address generated")
			gen := AddressGenerated{Address: addr}
			res.add(gen, true)
			committed.add(gen, true)
		}
	}

	if req.Balance != BalanceNone {
		log := d.log.WithFields(logrus.Fields{"action": ActionBalance, "query": req.Balance.String()})
		sat, err := client.GetBalance(ctx, req.Balance.MinConf())
		if err != nil {
			log.WithError(err).Debug("getbalance failed")
			return fail(classifyRPC(ActionBalance, "getbalance", map[string]string{"getbalance": req.Balance.String()}, err))
		}
		bal := BalanceReported{Query: req.Balance, Amount: amount.ToDisplay(sat)}
		log.WithField("balance", bal.Amount).Debug("balance reported")
		res.add(bal, false)
	}

	return res, nil
}
