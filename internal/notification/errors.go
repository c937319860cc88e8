package notification

import (
	"github.com/pkg/errors"
)

// Whole-invocation failures. A DispatchError matches its kind with errors.Is.
var (
	ErrInvalidPayload        = errors.New("invalid webhook payload")
	ErrRoomNotFound          = errors.New("chat room not found")
	ErrRecipientsUnavailable = errors.New("recipients could not be loaded")
	ErrSenderNotFound        = errors.New("sender not found")
	ErrCredential            = errors.New("push credentials unavailable")
)

// ErrLookupFailed is returned by ResolveRecipients when the profile query fails.
var ErrLookupFailed = errors.New("profile lookup failed")

type DispatchError struct {
	Kind error
	Err  error
}

func newDispatchError(kind, cause error) *DispatchError {
	return &DispatchError{Kind: kind, Err: cause}
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) Is(target error) bool { return target == e.Kind }

// Detail is the underlying cause, for diagnostics in the error response.
func (e *DispatchError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "dispatched"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRecipientsUnavailable):
		return "recipients_unavailable"
	case errors.Is(err, ErrSenderNotFound):
		return "sender_not_found"
	case errors.Is(err, ErrCredential):
		return "credential_error"
	default:
		return "error"
	}
}
