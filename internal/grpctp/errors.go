package grpctp

import "errors"

var (
	// ErrNoEndpoints is returned when the provider has nothing for a service.
	ErrNoEndpoints = errors.New("grpctp: no endpoints available")
	ErrNoProvider  = errors.New("grpctp: provider not configured")
	ErrClosed      = errors.New("grpctp: closed")
)
