package bridge

import (
	"github.com/airchains-network/settlement-bridge/batch"
	"github.com/airchains-network/settlement-bridge/state"
	"github.com/ethereum/go-ethereum/event"
)

type EventKind string

const (
	EventBatch      EventKind = "batch"
	EventDeposit    EventKind = "deposit"
	EventWithdrawal EventKind = "withdrawal"
)

// Event is published after a state change has been committed. Exactly one
// of the record fields is set, matching Kind.
type Event struct {
	Kind       EventKind               `json:"kind"`
	Batch      *batch.Record           `json:"batch,omitempty"`
	Deposit    *state.DepositRecord    `json:"deposit,omitempty"`
	Withdrawal *state.WithdrawalRecord `json:"withdrawal,omitempty"`
}

// SubscribeEvents delivers every committed Event to ch, in commit order.
// Delivery blocks the committing call until ch accepts, so subscribers
// must keep draining ch.
func (b *Bridge) SubscribeEvents(ch chan<- Event) event.Subscription {
	return b.feed.Subscribe(ch)
}

func (b *Bridge) publish(ev Event) {
	b.feed.Send(ev)
}
