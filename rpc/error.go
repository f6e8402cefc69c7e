package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrTimeout means no response arrived within the call's deadline.  It
	// is never retried by this layer.
	ErrTimeout = errors.New("communication timeout")

	// ErrRemoteOperation means the worker context reported success=false.
	ErrRemoteOperation = errors.New("remote operation failed")
)

// TimeoutError is returned from Channel.Send when the per-call deadline
// expires before any response arrives.
type TimeoutError struct {
	// Type of the message whose call timed out.
	Type MessageType

	// Elapsed is the configured deadline that passed without a response.
	Elapsed float64 // seconds
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out: no response within %.0f seconds", e.Type, e.Elapsed)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// RemoteError carries the structured error payload the worker context
// serialized, passed through unmodified.  Payload is nil when the worker
// reported failure without a payload.
type RemoteError struct {
	Type    MessageType
	Payload json.RawMessage
}

func (e *RemoteError) Error() string {
	if len(e.Payload) == 0 {
		return fmt.Sprintf("operation %q failed: no error payload", e.Type)
	}
	var info ErrorInfo
	if err := json.Unmarshal(e.Payload, &info); err == nil && info.Message != "" {
		return fmt.Sprintf("operation %q failed: %s", e.Type, info.Message)
	}
	return fmt.Sprintf("operation %q failed: %s", e.Type, string(e.Payload))
}

func (e *RemoteError) Unwrap() error { return ErrRemoteOperation }

// Info decodes the payload into an ErrorInfo when one is present.
func (e *RemoteError) Info() *ErrorInfo {
	if len(e.Payload) == 0 {
		return nil
	}
	var info ErrorInfo
	if err := json.Unmarshal(e.Payload, &info); err != nil {
		return nil
	}
	return &info
}
