package account

// Event type identifiers for the account aggregate.
const (
	AccountOpenedEventType  = "AccountOpened"
	FundsDepositedEventType = "FundsDeposited"
	FundsWithdrawnEventType = "FundsWithdrawn"
	AccountClosedEventType  = "AccountClosed"
)

// AccountOpened is the genesis event of an account stream.
type AccountOpened struct {
	Owner   string  `json:"owner"`
	Email   string  `json:"email"`
	Balance float64 `json:"balance"`
}

// FundsDeposited records money added to the account.
type FundsDeposited struct {
	Amount float64 `json:"amount"`
}

// FundsWithdrawn records money taken from the account.
type FundsWithdrawn struct {
	Amount float64 `json:"amount"`
}

// AccountClosed records the account being closed.
type AccountClosed struct {
	Reason string `json:"reason"`
}
