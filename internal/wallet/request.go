package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ggonzalez94/btcops/internal/amount"
	clierr "github.com/ggonzalez94/btcops/internal/errors"
	"github.com/ggonzalez94/btcops/internal/network"
)

// Action names one wallet operation.
type Action string

const (
	ActionConnect    Action = "connect"
	ActionSend       Action = "send"
	ActionNewAddress Action = "getnewaddress"
	ActionBalance    Action = "getbalance"
)

// BalanceQuery selects which balance, if any, to report.
type BalanceQuery int

const (
	BalanceNone BalanceQuery = iota
	BalanceConfirmed
	BalanceTotal
)

func ParseBalanceQuery(v string) (BalanceQuery, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "no", "none", "false":
		return BalanceNone, nil
	case "confirmed", "yes", "true":
		return BalanceConfirmed, nil
	case "total":
		return BalanceTotal, nil
	default:
		return BalanceNone, clierr.New(clierr.CodeUsage, fmt.Sprintf("getbalance must be confirmed, total or no, got %q", v))
	}
}

func (q BalanceQuery) String() string {
	switch q {
	case BalanceConfirmed:
		return "confirmed"
	case BalanceTotal:
		return "total"
	default:
		return "no"
	}
}

// MinConf is the confirmation threshold passed to getbalance.
func (q BalanceQuery) MinConf() int {
	if q == BalanceConfirmed {
		return 1
	}
	return 0
}

// Request is one parsed invocation.
type Request struct {
	SendToAddress      string
	Amount             string
	GenerateNewAddress bool
	Balance            BalanceQuery
	Testnet            bool
	ServiceURL         string
	ServicePort        int
	ConfFile           string
	DryRun             bool
}

// Validate checks the request before anything touches the node.
func (r Request) Validate() error {
	hasAddr := strings.TrimSpace(r.SendToAddress) != ""
	hasAmount := strings.TrimSpace(r.Amount) != ""
	if hasAddr != hasAmount {
		return clierr.New(clierr.CodeUsage, "sendtoaddress and amount must be given together")
	}
	if hasAmount {
		if _, err := amount.ToBaseUnits(r.Amount); err != nil {
			return invalidAmount(r.sendInputs(), err)
		}
	}
	if r.ServicePort < 0 || r.ServicePort > 65535 {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("service_port %d out of range", r.ServicePort))
	}
	return nil
}

func (r Request) wantsSend() bool {
	return strings.TrimSpace(r.SendToAddress) != "" && strings.TrimSpace(r.Amount) != ""
}

// Actions lists the requested actions in execution order.
func (r Request) Actions() []Action {
	var out []Action
	if r.wantsSend() {
		out = append(out, ActionSend)
	}
	if r.GenerateNewAddress {
		out = append(out, ActionNewAddress)
	}
	if r.Balance != BalanceNone {
		out = append(out, ActionBalance)
	}
	return out
}

// Mutates reports whether running the request will change wallet state.
func (r Request) Mutates() bool {
	return !r.DryRun && (r.wantsSend() || r.GenerateNewAddress)
}

// Network returns the parameter set the request selects.
func (r Request) Network() network.Network {
	return network.Select(r.Testnet)
}

// Overrides returns the connection overrides carried by the request.
func (r Request) Overrides() network.Overrides {
	return network.Overrides{
		ServiceURL:  r.ServiceURL,
		ServicePort: r.ServicePort,
		ConfFile:    r.ConfFile,
	}
}

func (r Request) sendInputs() map[string]string {
	return map[string]string{
		"sendtoaddress": r.SendToAddress,
		"amount":        r.Amount,
	}
}

// ConnectionInputs are the literal connection settings, with any password in
// the service URL removed.
func (r Request) ConnectionInputs() map[string]string {
	in := map[string]string{"testnet": strconv.FormatBool(r.Testnet)}
	if r.ServiceURL != "" {
		in["service_url"] = network.RedactURL(r.ServiceURL)
	}
	if r.ServicePort > 0 {
		in["service_port"] = strconv.Itoa(r.ServicePort)
	}
	if r.ConfFile != "" {
		in["btc_conf_file"] = r.ConfFile
	}
	return in
}
