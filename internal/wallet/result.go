package wallet

// Outcome is the record one successful action leaves in the result. It is a
// closed set: TransactionSent, AddressGenerated, BalanceReported.
type Outcome interface {
	Action() Action
	apply(fields map[string]any)
}

// TransactionSent records a send. TxID is empty in dry-run.
type TransactionSent struct {
	Address string
	Amount  string
	TxID    string
}

func (TransactionSent) Action() Action { return ActionSend }

func (o TransactionSent) apply(fields map[string]any) {
	fields["sendtoaddress"] = o.Address
	fields["amount"] = o.Amount
	if o.TxID != "" {
		fields["txid"] = o.TxID
	}
}

type AddressGenerated struct {
	Address string
}

func (AddressGenerated) Action() Action { return ActionNewAddress }

func (o AddressGenerated) apply(fields map[string]any) {
	fields["newaddress"] = o.Address
}

type BalanceReported struct {
	Query  BalanceQuery
	Amount string
}

func (BalanceReported) Action() Action { return ActionBalance }

func (o BalanceReported) apply(fields map[string]any) {
	fields["balance"] = o.Amount
}

// Result is what one invocation produced. Changed is true iff at least one
// mutating action really ran.
type Result struct {
	Changed  bool
	Outcomes []Outcome
}

func (r *Result) add(o Outcome, mutated bool) {
	r.Outcomes = append(r.Outcomes, o)
	r.Changed = r.Changed || mutated
}

// Fields renders the result as the flat output mapping.
func (r Result) Fields() map[string]any {
	fields := map[string]any{"changed": r.Changed}
	for _, o := range r.Outcomes {
		o.apply(fields)
	}
	return fields
}
