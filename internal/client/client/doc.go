// Package client talks to the whattodo remote authority.
//
// GRPCClient implements Client over the whattodo.v1.Authority gRPC service.
// It attaches the access token to every call, refreshes an expired token once
// and retries, and maps gRPC status codes onto the sentinel errors in this
// package so callers can tell transient failures (ErrUnavailable,
// ErrUnauthorized) from terminal rejections (ErrAuthorizationRejected,
// ErrValidationRejected) with errors.Is.
//
// GRPCClient is safe for concurrent use.
package client
