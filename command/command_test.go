package command_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitkit/conduit/bus"
	"github.com/conduitkit/conduit/command"
	coordmemory "github.com/conduitkit/conduit/coordination/memoryengine"
	"github.com/conduitkit/conduit/eventlog"
	logmemory "github.com/conduitkit/conduit/eventlog/memoryengine"
	"github.com/conduitkit/conduit/registrar"
	"github.com/conduitkit/conduit/stream"
)

// rig bundles a full write-side engine on in-memory stores.
type rig struct {
	coord     *coordmemory.Store
	log       *logmemory.Store
	bus       *bus.Bus
	registrar *registrar.Registrar
	engine    *stream.Engine
	recorder  *eventlog.Recorder
}

func newRig(t *testing.T) *rig {
	t.Helper()

	coord := coordmemory.NewStore()
	log := logmemory.NewStore()

	registry := stream.NewRegistry()
	registry.Register("AccountOpened", func(state stream.State, event eventlog.Envelope) stream.State {
		var payload struct {
			Balance float64 `json:"balance"`
		}
		require.NoError(t, event.UnmarshalData(&payload))

		next := stream.State{"id": event.Stream, "balance": payload.Balance}

		return next
	})
	registry.Register("FundsDeposited", func(state stream.State, event eventlog.Envelope) stream.State {
		var payload struct {
			Amount float64 `json:"amount"`
		}
		require.NoError(t, event.UnmarshalData(&payload))

		balance, _ := state["balance"].(float64)
		next := stream.State{}
		for key, value := range state {
			next[key] = value
		}
		next["balance"] = balance + payload.Amount

		return next
	})

	return &rig{
		coord:     coord,
		log:       log,
		bus:       bus.New(coord, bus.WithSleep(func(context.Context, time.Duration) error { return nil })),
		registrar: registrar.New(coord),
		engine:    stream.NewEngine(log, registry),
		recorder:  eventlog.NewRecorder(log),
	}
}

func (r *rig) newCommand(opts command.Options) *command.Command {
	return command.New(opts, r.bus, r.registrar, r.engine, r.recorder)
}

func openAccountOptions() command.Options {
	return command.Options{
		Type:    "OpenAccount",
		Genesis: true,
		Reserve: []string{"email"},
		Handler: func(ctx context.Context, _ stream.State, req command.Request, apply command.ApplyFunc) error {
			return apply(ctx, "AccountOpened", map[string]any{"balance": 0.0})
		},
	}
}

func openAccountRequest(streamID string, email string) command.Request {
	return command.Request{
		Type:    "OpenAccount",
		Stream:  streamID,
		Data:    map[string]any{"email": email, "owner": "Jane Doe"},
		Auditor: "user-1",
	}
}

func Test_Command_Resolve_GenesisCreatesStream(t *testing.T) {
	r := newRig(t)
	cmd := r.newCommand(openAccountOptions())

	err := cmd.Resolve(context.Background(), openAccountRequest("S1", "a@x.com"))

	require.NoError(t, err)

	state, err := r.engine.GetState(context.Background(), "S1", false)
	require.NoError(t, err)
	assert.Equal(t, "S1", state.ID())
	assert.Equal(t, 0.0, state["balance"])
}

func Test_Command_Resolve_GenesisOnExistingStreamFails(t *testing.T) {
	r := newRig(t)
	cmd := r.newCommand(openAccountOptions())

	require.NoError(t, cmd.Resolve(context.Background(), openAccountRequest("S1", "a@x.com")))

	err := cmd.Resolve(context.Background(), openAccountRequest("S1", "b@x.com"))

	assert.ErrorIs(t, err, stream.ErrStreamAlreadyExists)
	assert.False(t, r.coord.IsMember("registrar:email", "b@x.com"),
		"failed genesis must release its reservation")
}

func Test_Command_Resolve_NonGenesisOnEmptyStreamFails(t *testing.T) {
	r := newRig(t)
	cmd := r.newCommand(command.Options{
		Type: "DepositFunds",
		Handler: func(ctx context.Context, _ stream.State, req command.Request, apply command.ApplyFunc) error {
			return apply(ctx, "FundsDeposited", map[string]any{"amount": 10.0})
		},
	})

	err := cmd.Resolve(context.Background(), command.Request{
		Type: "DepositFunds", Stream: "S1", Data: map[string]any{"amount": 10.0}, Auditor: "user-1",
	})

	assert.ErrorIs(t, err, stream.ErrStreamNotFound)
}

func Test_Command_Resolve_HandlerSeesFoldedState(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.newCommand(openAccountOptions()).Resolve(context.Background(), openAccountRequest("S1", "a@x.com")))

	var seenBalance float64
	deposit := r.newCommand(command.Options{
		Type: "DepositFunds",
		Handler: func(ctx context.Context, state stream.State, req command.Request, apply command.ApplyFunc) error {
			seenBalance, _ = state["balance"].(float64)
			return apply(ctx, "FundsDeposited", map[string]any{"amount": 25.0})
		},
	})

	depositReq := command.Request{Type: "DepositFunds", Stream: "S1", Data: map[string]any{}, Auditor: "user-1"}
	require.NoError(t, deposit.Resolve(context.Background(), depositReq))
	require.NoError(t, deposit.Resolve(context.Background(), depositReq))

	assert.Equal(t, 25.0, seenBalance, "second deposit must fold the first one")

	state, err := r.engine.GetState(context.Background(), "S1", false)
	require.NoError(t, err)
	assert.Equal(t, 50.0, state["balance"])
}

func Test_Command_Resolve_PoliciesRunInOrderAndShortCircuit(t *testing.T) {
	r := newRig(t)

	var evaluated []string
	opts := openAccountOptions()
	opts.Policies = []command.Policy{
		func(context.Context, command.Request) command.Result {
			evaluated = append(evaluated, "first")
			return command.Accept()
		},
		func(context.Context, command.Request) command.Result {
			evaluated = append(evaluated, "second")
			return command.Reject(http.StatusForbidden, "not allowed", map[string]any{"role": "guest"})
		},
		func(context.Context, command.Request) command.Result {
			evaluated = append(evaluated, "third")
			return command.Accept()
		},
	}

	err := r.newCommand(opts).Resolve(context.Background(), openAccountRequest("S1", "a@x.com"))

	require.Error(t, err)
	assert.ErrorIs(t, err, command.ErrPolicyRejected)

	var rejection *command.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusForbidden, rejection.Code)
	assert.Equal(t, "not allowed", rejection.Message)
	assert.Equal(t, map[string]any{"role": "guest"}, rejection.Data)

	assert.Equal(t, []string{"first", "second"}, evaluated, "first rejection short-circuits")
	assert.False(t, r.coord.IsMember("registrar:email", "a@x.com"),
		"rejected command must not reserve anything")
}

func Test_Command_Resolve_MissingReservationKeyFails(t *testing.T) {
	r := newRig(t)
	opts := openAccountOptions()
	opts.Reserve = []string{"email", "username"}

	err := r.newCommand(opts).Resolve(context.Background(), openAccountRequest("S1", "a@x.com"))

	require.Error(t, err)
	assert.ErrorIs(t, err, command.ErrMissingReservationKey)

	var missing *command.MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "username", missing.Key)

	assert.False(t, r.coord.IsMember("registrar:email", "a@x.com"),
		"keys registered before the missing one must be released")
}

func Test_Command_Resolve_DuplicateReservationRollsBackEarlierKeys(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.registrar.Register(context.Background(), "username", "jane"))

	opts := openAccountOptions()
	opts.Reserve = []string{"email", "username"}

	req := openAccountRequest("S1", "a@x.com")
	req.Data["username"] = "jane"

	err := r.newCommand(opts).Resolve(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, registrar.ErrDuplicateReservation)

	assert.False(t, r.coord.IsMember("registrar:email", "a@x.com"), "earlier key released")
	assert.True(t, r.coord.IsMember("registrar:username", "jane"), "original claim remains held")
}

func Test_Command_Resolve_HandlerFailureReleasesReservations(t *testing.T) {
	r := newRig(t)
	handlerErr := errors.New("business rule violated")

	opts := openAccountOptions()
	opts.Handler = func(context.Context, stream.State, command.Request, command.ApplyFunc) error {
		return handlerErr
	}

	err := r.newCommand(opts).Resolve(context.Background(), openAccountRequest("S1", "a@x.com"))

	assert.ErrorIs(t, err, handlerErr, "handler error propagates as-is")
	assert.False(t, r.coord.IsMember("registrar:email", "a@x.com"))

	// lock must be free again
	require.NoError(t, r.newCommand(openAccountOptions()).Resolve(context.Background(), openAccountRequest("S1", "a@x.com")))
}

func Test_Command_Resolve_BusyReleasesReservations(t *testing.T) {
	r := newRig(t)

	// occupy the stream lock so acquisition exhausts its retries
	created, err := r.coord.SetIfAbsent(context.Background(), "bus:S1", "reserved", time.Minute)
	require.NoError(t, err)
	require.True(t, created)

	err = r.newCommand(openAccountOptions()).Resolve(context.Background(), openAccountRequest("S1", "a@x.com"))

	assert.ErrorIs(t, err, bus.ErrBusy)
	assert.False(t, r.coord.IsMember("registrar:email", "a@x.com"))
}

func Test_Command_Resolve_SuccessKeepsReservations(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.newCommand(openAccountOptions()).Resolve(context.Background(), openAccountRequest("S1", "a@x.com")))

	assert.True(t, r.coord.IsMember("registrar:email", "a@x.com"),
		"successful reservations are held permanently")

	err := r.newCommand(openAccountOptions()).Resolve(context.Background(), openAccountRequest("S2", "a@x.com"))
	assert.ErrorIs(t, err, registrar.ErrDuplicateReservation,
		"the claimed value must stay blocked for later commands")
}

func Test_Command_Resolve_PartialAppliesPersistOnHandlerFailure(t *testing.T) {
	r := newRig(t)
	handlerErr := errors.New("failed after applying")

	opts := openAccountOptions()
	opts.Handler = func(ctx context.Context, _ stream.State, req command.Request, apply command.ApplyFunc) error {
		if err := apply(ctx, "AccountOpened", map[string]any{"balance": 0.0}); err != nil {
			return err
		}
		if err := apply(ctx, "FundsDeposited", map[string]any{"amount": 10.0}); err != nil {
			return err
		}

		return handlerErr
	}

	err := r.newCommand(opts).Resolve(context.Background(), openAccountRequest("S1", "a@x.com"))

	assert.ErrorIs(t, err, handlerErr)

	// applies are committed one at a time with no batching, so both events
	// survive the handler failure
	history, readErr := r.log.Stream(context.Background(), "S1")
	require.NoError(t, readErr)
	assert.Len(t, history, 2)
}

func Test_Command_Resolve_AppliedEventsCarryRequestIdentity(t *testing.T) {
	r := newRig(t)

	req := openAccountRequest("S1", "a@x.com")
	req.Impersonator = "admin-1"

	require.NoError(t, r.newCommand(openAccountOptions()).Resolve(context.Background(), req))

	history, err := r.log.Stream(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "user-1", history[0].Meta.Auditor)
	assert.Equal(t, "admin-1", history[0].Meta.Impersonator)
	assert.Positive(t, history[0].Meta.Created)
}
