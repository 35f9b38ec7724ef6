package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"

	clierr "github.com/ggonzalez94/btcops/internal/errors"
)

// Kind classifies a terminal failure.
type Kind int

const (
	KindInvalidAmount Kind = iota + 1
	KindConnection
	KindRPCCall
)

func (k Kind) String() string {
	switch k {
	case KindInvalidAmount:
		return "invalid_amount"
	case KindConnection:
		return "connection_failure"
	case KindRPCCall:
		return "rpc_call_failure"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Code maps the kind to its exit code.
func (k Kind) Code() clierr.Code {
	switch k {
	case KindInvalidAmount:
		return clierr.CodeInvalidAmount
	case KindConnection:
		return clierr.CodeConnection
	case KindRPCCall:
		return clierr.CodeRPCCall
	}
	return clierr.CodeInternal
}

// Failure ends an invocation. It names the action that failed and the literal
// inputs it was given. Committed holds mutations that already reached the node
// before the failure; they are not rolled back.
type Failure struct {
	Kind      Kind
	Action    Action
	Inputs    map[string]string
	Committed Result
	err       *clierr.Error
}

func (f *Failure) Error() string { return f.err.Error() }

func (f *Failure) Unwrap() error { return f.err }

// CommittedFields returns the committed mutations as an output mapping, or nil
// when nothing was committed.
func (f *Failure) CommittedFields() map[string]any {
	if !f.Committed.Changed {
		return nil
	}
	return f.Committed.Fields()
}

func newFailure(kind Kind, action Action, inputs map[string]string, message string, cause error) *Failure {
	return &Failure{
		Kind:   kind,
		Action: action,
		Inputs: inputs,
		err:    clierr.Wrap(kind.Code(), message, cause),
	}
}

// ClassifyConnection wraps an error raised while resolving or connecting.
func ClassifyConnection(inputs map[string]string, err error) *Failure {
	return newFailure(KindConnection, ActionConnect, inputs, "connect to bitcoin node", err)
}

func invalidAmount(inputs map[string]string, err error) *Failure {
	return newFailure(KindInvalidAmount, ActionSend, inputs, "invalid amount", err)
}

// classifyRPC wraps an error returned by a wallet RPC call.
func classifyRPC(action Action, method string, inputs map[string]string, err error) *Failure {
	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		msg := fmt.Sprintf("node rejected %s (rpc error %d)", method, rpcErr.Code)
		return newFailure(KindRPCCall, action, inputs, msg, errors.New(rpcErr.Message))
	}
	return newFailure(KindRPCCall, action, inputs, fmt.Sprintf("%s call failed", method), err)
}

// AsFailure finds a Failure in err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
