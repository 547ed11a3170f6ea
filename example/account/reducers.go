package account

import (
	"github.com/conduitkit/conduit/eventlog"
	"github.com/conduitkit/conduit/stream"
)

// RegisterReducers binds the account reducers to the given registry.
// Reducers are pure: they read only the state and the event.
func RegisterReducers(registry *stream.Registry) {
	registry.Register(AccountOpenedEventType, reduceAccountOpened)
	registry.Register(FundsDepositedEventType, reduceFundsDeposited)
	registry.Register(FundsWithdrawnEventType, reduceFundsWithdrawn)
	registry.Register(AccountClosedEventType, reduceAccountClosed)
}

func reduceAccountOpened(state stream.State, event eventlog.Envelope) stream.State {
	var opened AccountOpened
	if err := event.UnmarshalData(&opened); err != nil {
		return state
	}

	next := cloneState(state)
	next["id"] = event.Stream
	next["owner"] = opened.Owner
	next["email"] = opened.Email
	next["balance"] = opened.Balance

	return next
}

func reduceFundsDeposited(state stream.State, event eventlog.Envelope) stream.State {
	var deposited FundsDeposited
	if err := event.UnmarshalData(&deposited); err != nil {
		return state
	}

	next := cloneState(state)
	next["balance"] = balanceOf(state) + deposited.Amount

	return next
}

func reduceFundsWithdrawn(state stream.State, event eventlog.Envelope) stream.State {
	var withdrawn FundsWithdrawn
	if err := event.UnmarshalData(&withdrawn); err != nil {
		return state
	}

	next := cloneState(state)
	next["balance"] = balanceOf(state) - withdrawn.Amount

	return next
}

func reduceAccountClosed(state stream.State, event eventlog.Envelope) stream.State {
	var closed AccountClosed
	if err := event.UnmarshalData(&closed); err != nil {
		return state
	}

	next := cloneState(state)
	next["closed"] = true
	next["closeReason"] = closed.Reason

	return next
}

func cloneState(state stream.State) stream.State {
	next := make(stream.State, len(state)+1)
	for key, value := range state {
		next[key] = value
	}

	return next
}

func balanceOf(state stream.State) float64 {
	balance, _ := state["balance"].(float64)
	return balance
}
