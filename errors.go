package streamflow

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Namespace prefixes every sentinel error this package exports, mirroring
// the teacher's own errors.go convention of a single namespace constant.
const Namespace = "streamflow"

var (
	// ErrNoElements is returned when First's predicate never matches before
	// the source completes.
	ErrNoElements = errors.New(Namespace + ": No elements in sequence")

	// ErrAlreadySubscribed reports a second concurrent subscription to an
	// inner stream that allows only one. No function in this module
	// returns it.
	ErrAlreadySubscribed = errors.New(Namespace + ": already subscribed")

	// ErrSubscriptionClosed reports an operation against a Subscription
	// that has already been unsubscribed. No function in this module
	// returns it; Unsubscribe on a closed Subscription is a no-op.
	ErrSubscriptionClosed = errors.New(Namespace + ": subscription closed")

	// ErrWorkerReleased is returned by HiredWorker.SendTask after Release.
	ErrWorkerReleased = errors.New(Namespace + ": worker already released")
)

// OperatorError tags an error with the operator step that produced it, the
// same correlation shape as the teacher's TaskMetaError in
// error_tagging.go, generalized from (task id, task index) to (operator
// index, operator name, value id).
type OperatorError interface {
	error
	Unwrap() error
	OperatorIndex() int
	OperatorName() string
	ValueID() (string, bool)
}

type operatorError struct {
	err      error
	opIndex  int
	opName   string
	valueID  string
	hasValue bool
}

// WrapOperatorError tags err with the operator that raised it and, when
// known, the id of the value being processed. The wrapped error carries a
// stack trace (via github.com/pkg/errors) so a panic recovered deep inside
// a pooled worker is debuggable rather than just a formatted string.
func WrapOperatorError(err error, opIndex int, opName string, valueID string, hasValue bool) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(stackTracer); !ok {
		err = pkgerrors.WithStack(err)
	}
	return &operatorError{err: err, opIndex: opIndex, opName: opName, valueID: valueID, hasValue: hasValue}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func (e *operatorError) Error() string {
	if e.hasValue {
		return fmt.Sprintf("operator[%d:%s] value=%s: %s", e.opIndex, e.opName, e.valueID, e.err)
	}
	return fmt.Sprintf("operator[%d:%s]: %s", e.opIndex, e.opName, e.err)
}

func (e *operatorError) Unwrap() error          { return e.err }
func (e *operatorError) OperatorIndex() int     { return e.opIndex }
func (e *operatorError) OperatorName() string   { return e.opName }
func (e *operatorError) ValueID() (string, bool) { return e.valueID, e.hasValue }

// AsOperatorError extracts the OperatorError wrapping err, if any.
func AsOperatorError(err error) (OperatorError, bool) {
	var oe OperatorError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// CoerceError turns a non-error panic/reject value into an error, carrying
// its stringified message — the spec's rule for non-Error rejection values.
func CoerceError(v any) error {
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}
