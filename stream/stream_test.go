package stream_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitkit/conduit/eventlog"
	"github.com/conduitkit/conduit/eventlog/memoryengine"
	"github.com/conduitkit/conduit/stream"
)

func Test_Engine_GetState_Genesis_FreshStream(t *testing.T) {
	engine := stream.NewEngine(memoryengine.NewStore(), accountRegistry())

	state, err := engine.GetState(context.Background(), "S1", true)

	require.NoError(t, err)
	assert.Equal(t, stream.State{"id": "S1"}, state, "genesis state is minimal, nothing folded")
}

func Test_Engine_GetState_Genesis_ExistingStreamFails(t *testing.T) {
	store := memoryengine.NewStore()
	commitAccountOpened(t, store, "S1", 0)
	engine := stream.NewEngine(store, accountRegistry())

	_, err := engine.GetState(context.Background(), "S1", true)

	require.Error(t, err)
	assert.ErrorIs(t, err, stream.ErrStreamAlreadyExists)

	var alreadyExists *stream.AlreadyExistsError
	require.ErrorAs(t, err, &alreadyExists)
	assert.Equal(t, "S1", alreadyExists.StreamID)
}

func Test_Engine_GetState_NonGenesis_EmptyStreamFails(t *testing.T) {
	engine := stream.NewEngine(memoryengine.NewStore(), accountRegistry())

	_, err := engine.GetState(context.Background(), "S1", false)

	require.Error(t, err)
	assert.ErrorIs(t, err, stream.ErrStreamNotFound)
}

func Test_Engine_GetState_FoldsHistoryInOrder(t *testing.T) {
	store := memoryengine.NewStore()
	commitAccountOpened(t, store, "S1", 0)
	commitFundsDeposited(t, store, "S1", 25)
	commitFundsDeposited(t, store, "S1", 50)
	engine := stream.NewEngine(store, accountRegistry())

	state, err := engine.GetState(context.Background(), "S1", false)

	require.NoError(t, err)
	assert.Equal(t, "S1", state.ID())
	assert.Equal(t, 75.0, state["balance"])
}

func Test_Engine_GetState_IsDeterministic(t *testing.T) {
	store := memoryengine.NewStore()
	commitAccountOpened(t, store, "S1", 10)
	commitFundsDeposited(t, store, "S1", 5)
	engine := stream.NewEngine(store, accountRegistry())

	first, err := engine.GetState(context.Background(), "S1", false)
	require.NoError(t, err)

	second, err := engine.GetState(context.Background(), "S1", false)
	require.NoError(t, err)

	assert.Equal(t, first, second, "folding the same history twice must yield identical state")
}

func Test_Engine_GetState_UnknownEventTypeIsFatal(t *testing.T) {
	store := memoryengine.NewStore()
	commitAccountOpened(t, store, "S1", 0)

	envelope, err := eventlog.BuildEnvelope("SomethingHasHappened", "S1", []byte(`{}`), eventlog.Meta{Auditor: "user-1"})
	require.NoError(t, err)
	require.NoError(t, store.Commit(context.Background(), envelope))

	engine := stream.NewEngine(store, accountRegistry())

	_, err = engine.GetState(context.Background(), "S1", false)

	require.Error(t, err)
	assert.ErrorIs(t, err, stream.ErrUnknownEventType)

	var unknown *stream.UnknownEventTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "SomethingHasHappened", unknown.EventType)
}

func accountRegistry() *stream.Registry {
	registry := stream.NewRegistry()

	registry.Register("AccountOpened", func(state stream.State, event eventlog.Envelope) stream.State {
		var payload struct {
			Balance float64 `json:"balance"`
		}
		_ = event.UnmarshalData(&payload)

		next := stream.State{"id": event.Stream, "balance": payload.Balance}
		for key, value := range state {
			if _, exists := next[key]; !exists {
				next[key] = value
			}
		}

		return next
	})

	registry.Register("FundsDeposited", func(state stream.State, event eventlog.Envelope) stream.State {
		var payload struct {
			Amount float64 `json:"amount"`
		}
		_ = event.UnmarshalData(&payload)

		balance, _ := state["balance"].(float64)
		next := stream.State{}
		for key, value := range state {
			next[key] = value
		}
		next["balance"] = balance + payload.Amount

		return next
	})

	return registry
}

func commitAccountOpened(t *testing.T, store *memoryengine.Store, streamID string, balance float64) {
	t.Helper()

	envelope, err := eventlog.BuildEnvelope("AccountOpened", streamID,
		[]byte(`{"balance":`+formatFloat(balance)+`}`), eventlog.Meta{Auditor: "user-1"})
	require.NoError(t, err)
	require.NoError(t, store.Commit(context.Background(), envelope))
}

func commitFundsDeposited(t *testing.T, store *memoryengine.Store, streamID string, amount float64) {
	t.Helper()

	envelope, err := eventlog.BuildEnvelope("FundsDeposited", streamID,
		[]byte(`{"amount":`+formatFloat(amount)+`}`), eventlog.Meta{Auditor: "user-1"})
	require.NoError(t, err)
	require.NoError(t, store.Commit(context.Background(), envelope))
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
