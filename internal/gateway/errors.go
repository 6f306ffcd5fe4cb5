package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies why a gateway call failed.
type Kind int

const (
	// KindTransport covers network failures and bodies that could not be read.
	KindTransport Kind = iota + 1
	// KindStatus is any non-2xx response.
	KindStatus
	// KindDecode is a response body that is not JSON.
	KindDecode
	// KindUnavailable means the call was refused locally (circuit open, rate limiter).
	KindUnavailable
	// KindCanceled means the caller's context was canceled.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindUnavailable:
		return "unavailable"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var errUnavailable = errors.New("forecast api unavailable")

// Error is the structured failure returned by every Client operation.
type Error struct {
	Op     string
	Kind   Kind
	Status int // set for KindStatus
	Err    error
}

func (e *Error) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCanceled reports whether err is a gateway failure caused by caller cancellation.
func IsCanceled(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindCanceled
}
