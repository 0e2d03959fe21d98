package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindTimeout      ErrorKind = "timeout"
	KindUnauthorized ErrorKind = "unauthorized"
	KindRemote       ErrorKind = "remote_error"
	KindProtocol     ErrorKind = "protocol_error"
	KindUnreachable  ErrorKind = "unreachable"
)

// FetchError is the only error type returned by Client calls.
// Code holds the HTTP status or JSON-RPC error code for KindRemote.
type FetchError struct {
	Kind   ErrorKind
	Method string
	Code   int
	Err    error
}

func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.Kind == KindRemote {
		msg = fmt.Sprintf("%s(%d)", e.Kind, e.Code)
	}
	if e.Method != "" {
		msg = e.Method + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the FetchError kind carried by err, or KindNone.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNone
}

func protocolError(method string, err error) *FetchError {
	return &FetchError{Kind: KindProtocol, Method: method, Err: err}
}

// classifyTransportError maps an http.Client.Do failure to a kind.
func classifyTransportError(method string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTimeout, Method: method, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: KindTimeout, Method: method, Err: err}
	}
	return &FetchError{Kind: KindUnreachable, Method: method, Err: err}
}
