package projection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitkit/conduit/eventlog"
	"github.com/conduitkit/conduit/projection"
)

func Test_Registry_Dispatch_RunsRegisteredProjector(t *testing.T) {
	registry := projection.NewRegistry()

	var projected []string
	registry.Register("AccountOpened", func(_ context.Context, event eventlog.Envelope) error {
		projected = append(projected, event.Stream)
		return nil
	})

	err := registry.Dispatch(context.Background(), buildTestEnvelope(t, "AccountOpened", "account-1"))

	require.NoError(t, err)
	assert.Equal(t, []string{"account-1"}, projected)
}

func Test_Registry_Dispatch_UnregisteredTypeIsNoop(t *testing.T) {
	registry := projection.NewRegistry()

	err := registry.Dispatch(context.Background(), buildTestEnvelope(t, "AccountOpened", "account-1"))

	assert.NoError(t, err, "projections are opt-in per event type")
}

func Test_Registry_Dispatch_ReturnsProjectorError(t *testing.T) {
	registry := projection.NewRegistry()
	projectorErr := errors.New("read model down")

	registry.Register("AccountOpened", func(context.Context, eventlog.Envelope) error {
		return projectorErr
	})

	err := registry.Dispatch(context.Background(), buildTestEnvelope(t, "AccountOpened", "account-1"))

	assert.ErrorIs(t, err, projectorErr, "containment happens in the recorder, not here")
}

func buildTestEnvelope(t *testing.T, eventType string, streamID string) eventlog.Envelope {
	t.Helper()

	envelope, err := eventlog.BuildEnvelope(eventType, streamID, []byte(`{}`), eventlog.Meta{Auditor: "user-1"})
	require.NoError(t, err)

	return envelope
}
