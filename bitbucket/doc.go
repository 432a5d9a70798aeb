// Package bitbucket talks to the Bitbucket Server REST API. It covers the
// three calls a pull request workflow needs: looking up a branch by display
// name, creating a branch at a start point, and opening a pull request
// between two branch refs.
//
// Client does not own a network stack. It issues requests through a
// Transport, so callers can substitute a stub in tests. HTTPTransport is the
// net/http backed implementation.
//
// Every unexpected status or transport failure is reported as a
// *RemoteCallError, which matches ErrRemoteCallFailed under errors.Is. A
// success status whose body does not have the expected shape is reported as
// ErrMalformedResponse.
package bitbucket
