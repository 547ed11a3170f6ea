package command

import (
	"context"
	"errors"
	"fmt"
)

// ErrPolicyRejected is the sentinel matched by errors.Is for any Rejection
// returned from Resolve.
var ErrPolicyRejected = errors.New("command rejected by policy")

// Policy is a predicate evaluated against the inbound request before any
// reservation or locking happens. Policies run in declaration order and the
// first rejection short-circuits the rest of the pipeline.
type Policy func(ctx context.Context, req Request) Result

// Result is the outcome of a policy evaluation, built with Accept or Reject.
type Result struct {
	rejection *Rejection
}

// Accept generates a policy accept result.
func Accept() Result {
	return Result{}
}

// Reject generates a policy reject result with an HTTP-style status code, a
// message detailing the rejection and an optional detail payload.
func Reject(code int, message string, data map[string]any) Result {
	return Result{rejection: &Rejection{Code: code, Message: message, Data: data}}
}

// Rejection is the structured failure surfaced verbatim to the caller when a
// policy rejects the request.
type Rejection struct {
	Code    int
	Message string
	Data    map[string]any
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("command rejected by policy (%d): %s", e.Code, e.Message)
}

// Is makes the error match ErrPolicyRejected.
func (e *Rejection) Is(target error) bool {
	return target == ErrPolicyRejected
}
