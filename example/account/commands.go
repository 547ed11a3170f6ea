package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/conduitkit/conduit/command"
	"github.com/conduitkit/conduit/stream"
)

// ErrInsufficientFunds is returned by the withdraw handler on overdraft.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAccountClosed is returned when a command targets a closed account.
var ErrAccountClosed = errors.New("account is closed")

// Command type identifiers for the account aggregate.
const (
	OpenAccountCommandType   = "OpenAccount"
	DepositFundsCommandType  = "DepositFunds"
	WithdrawFundsCommandType = "WithdrawFunds"
	CloseAccountCommandType  = "CloseAccount"
)

// Collaborators bundles the engine pieces every account command needs.
type Collaborators struct {
	Bus       command.Locker
	Registrar command.Reserver
	States    command.StateLoader
	Recorder  command.EventRecorder
}

// NewOpenAccountCommand builds the genesis command of an account stream.
// The email is reserved as globally unique before the stream is created.
func NewOpenAccountCommand(c Collaborators) *command.Command {
	return command.New(command.Options{
		Type:     OpenAccountCommandType,
		Genesis:  true,
		Reserve:  []string{"email"},
		Policies: []command.Policy{requireField("owner"), requireField("email")},
		Handler: func(ctx context.Context, _ stream.State, req command.Request, apply command.ApplyFunc) error {
			owner, _ := req.Data["owner"].(string)
			email, _ := req.Data["email"].(string)

			return apply(ctx, AccountOpenedEventType, AccountOpened{Owner: owner, Email: email, Balance: 0})
		},
	}, c.Bus, c.Registrar, c.States, c.Recorder)
}

// NewDepositFundsCommand builds the deposit command.
func NewDepositFundsCommand(c Collaborators) *command.Command {
	return command.New(command.Options{
		Type:     DepositFundsCommandType,
		Policies: []command.Policy{requirePositiveAmount()},
		Handler: func(ctx context.Context, _ stream.State, req command.Request, apply command.ApplyFunc) error {
			amount, _ := req.Data["amount"].(float64)

			return apply(ctx, FundsDepositedEventType, FundsDeposited{Amount: amount})
		},
	}, c.Bus, c.Registrar, c.States, c.Recorder)
}

// NewWithdrawFundsCommand builds the withdraw command. The handler checks
// the folded balance and refuses overdrafts.
func NewWithdrawFundsCommand(c Collaborators) *command.Command {
	return command.New(command.Options{
		Type:     WithdrawFundsCommandType,
		Policies: []command.Policy{requirePositiveAmount()},
		Handler: func(ctx context.Context, state stream.State, req command.Request, apply command.ApplyFunc) error {
			amount, _ := req.Data["amount"].(float64)

			if balanceOf(state) < amount {
				return ErrInsufficientFunds
			}

			return apply(ctx, FundsWithdrawnEventType, FundsWithdrawn{Amount: amount})
		},
	}, c.Bus, c.Registrar, c.States, c.Recorder)
}

// NewCloseAccountCommand builds the close command.
func NewCloseAccountCommand(c Collaborators) *command.Command {
	return command.New(command.Options{
		Type: CloseAccountCommandType,
		Handler: func(ctx context.Context, state stream.State, req command.Request, apply command.ApplyFunc) error {
			if closed, _ := state["closed"].(bool); closed {
				return ErrAccountClosed
			}

			reason, _ := req.Data["reason"].(string)

			return apply(ctx, AccountClosedEventType, AccountClosed{Reason: reason})
		},
	}, c.Bus, c.Registrar, c.States, c.Recorder)
}

func requireField(field string) command.Policy {
	return func(_ context.Context, req command.Request) command.Result {
		value, found := req.Data[field].(string)
		if !found || value == "" {
			return command.Reject(http.StatusBadRequest, "missing required field", map[string]any{"field": field})
		}

		return command.Accept()
	}
}

func requirePositiveAmount() command.Policy {
	return func(_ context.Context, req command.Request) command.Result {
		amount, found := req.Data["amount"].(float64)
		if !found || amount <= 0 {
			return command.Reject(http.StatusBadRequest, "amount must be positive", map[string]any{"amount": req.Data["amount"]})
		}

		return command.Accept()
	}
}
