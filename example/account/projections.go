package account

import (
	"context"
	"sync"

	"github.com/conduitkit/conduit/eventlog"
	"github.com/conduitkit/conduit/projection"
)

// BalanceReadModel is a denormalized view of account balances, updated
// synchronously on every commit. Redactions re-project, so a redacted
// AccountOpened clears the stored owner and email.
type BalanceReadModel struct {
	mu       sync.RWMutex
	accounts map[string]BalanceRow
}

// BalanceRow is one account in the read model.
type BalanceRow struct {
	Owner   string
	Email   string
	Balance float64
	Closed  bool
}

// NewBalanceReadModel creates an empty read model.
func NewBalanceReadModel() *BalanceReadModel {
	return &BalanceReadModel{accounts: make(map[string]BalanceRow)}
}

// RegisterProjections binds the read model's projectors to the registry.
func (m *BalanceReadModel) RegisterProjections(registry *projection.Registry) {
	registry.Register(AccountOpenedEventType, m.projectAccountOpened)
	registry.Register(FundsDepositedEventType, m.projectFundsDeposited)
	registry.Register(FundsWithdrawnEventType, m.projectFundsWithdrawn)
	registry.Register(AccountClosedEventType, m.projectAccountClosed)
}

// Row returns the current read-model row for the stream.
func (m *BalanceReadModel) Row(streamID string) (BalanceRow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, found := m.accounts[streamID]

	return row, found
}

func (m *BalanceReadModel) projectAccountOpened(_ context.Context, event eventlog.Envelope) error {
	var opened AccountOpened
	if err := event.UnmarshalData(&opened); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.accounts[event.Stream]
	row.Owner = opened.Owner
	row.Email = opened.Email
	row.Balance = opened.Balance
	m.accounts[event.Stream] = row

	return nil
}

func (m *BalanceReadModel) projectFundsDeposited(_ context.Context, event eventlog.Envelope) error {
	var deposited FundsDeposited
	if err := event.UnmarshalData(&deposited); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.accounts[event.Stream]
	row.Balance += deposited.Amount
	m.accounts[event.Stream] = row

	return nil
}

func (m *BalanceReadModel) projectFundsWithdrawn(_ context.Context, event eventlog.Envelope) error {
	var withdrawn FundsWithdrawn
	if err := event.UnmarshalData(&withdrawn); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.accounts[event.Stream]
	row.Balance -= withdrawn.Amount
	m.accounts[event.Stream] = row

	return nil
}

func (m *BalanceReadModel) projectAccountClosed(_ context.Context, event eventlog.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.accounts[event.Stream]
	row.Closed = true
	m.accounts[event.Stream] = row

	return nil
}
