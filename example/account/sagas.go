package account

import (
	"context"

	"github.com/conduitkit/conduit/eventlog"
	"github.com/conduitkit/conduit/saga"
)

// Notifier sends out-of-band notifications, e.g. a mail gateway.
type Notifier interface {
	Notify(ctx context.Context, recipient string, message string) error
}

// RegisterSagas binds the account side effects to the dispatcher.
// Sagas only fire for newly committed events, never on replay.
func RegisterSagas(dispatcher *saga.Dispatcher, notifier Notifier) {
	dispatcher.Register(AccountOpenedEventType, func(ctx context.Context, event eventlog.Envelope) error {
		var opened AccountOpened
		if err := event.UnmarshalData(&opened); err != nil {
			return err
		}

		return notifier.Notify(ctx, opened.Email, "welcome "+opened.Owner)
	})

	dispatcher.Register(AccountClosedEventType, func(ctx context.Context, event eventlog.Envelope) error {
		return notifier.Notify(ctx, event.Meta.Auditor, "account "+event.Stream+" closed")
	})
}
