package bitbucket

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteCallFailed matches every *RemoteCallError.
	ErrRemoteCallFailed = errors.New("remote call failed")

	// ErrMalformedResponse is returned when a call
	// succeeded but the body did not have the expected
	// shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// RemoteCallError describes a REST call that either
// could not be sent or came back with an unexpected
// status. Err is set for transport failures; StatusCode
// is set otherwise.
type RemoteCallError struct {
	// Op names the failed operation (e.g. "create
	// branch").
	Op string
	// StatusCode is the HTTP status, zero on transport
	// failure.
	StatusCode int
	// Status is the status text.
	Status string
	// Body is the response body, when it could be read.
	Body string
	// Err is the transport failure.
	Err error
}

func (e *RemoteCallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"unable to %s: %v", e.Op, e.Err,
		)
	}

	return fmt.Sprintf(
		"unable to %s: %d %s, %s",
		e.Op, e.StatusCode, e.Status, e.Body,
	)
}

// Unwrap returns the transport cause, if any.
func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRemoteCallFailed.
func (e *RemoteCallError) Is(target error) bool {
	return target == ErrRemoteCallFailed
}

// StatusOf returns the HTTP status carried by err, or
// zero when err is not a status failure.
func StatusOf(err error) int {
	var rce *RemoteCallError
	if errors.As(err, &rce) {
		return rce.StatusCode
	}

	return 0
}
