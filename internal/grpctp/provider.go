package grpctp

import (
	"context"
	"fmt"
	"sync"
)

// EndpointProvider lists reachable endpoints (host:port) for a
// fully-qualified gRPC service name such as "acme.users.v1.UsersService".
// Implementations must be safe for concurrent use.
type EndpointProvider interface {
	Endpoints(ctx context.Context, service string) ([]string, error)
}

// Wildcard keys the endpoints used for services without their own entry.
const Wildcard = "*"

// StaticEndpoints is a provider backed by a fixed map keyed by service name.
type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	cp := make(map[string][]string, len(m))
	for k, v := range m {
		vv := make([]string, len(v))
		copy(vv, v)
		cp[k] = vv
	}
	return &StaticEndpoints{data: cp}
}

func (s *StaticEndpoints) Endpoints(ctx context.Context, service string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[service]
	if len(arr) == 0 {
		arr = s.data[Wildcard]
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoEndpoints, service)
	}
	out := make([]string, len(arr))
	copy(out, arr)
	return out, nil
}
