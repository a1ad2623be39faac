package grpctp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	eventbus "github.com/hanpama/procgraph/internal/eventbus"
	events "github.com/hanpama/procgraph/internal/events"
	"github.com/hanpama/procgraph/internal/remote"
)

// ServiceHeader carries the full service name of a procedure call so shared
// backends can route it.
const ServiceHeader = "x-procgraph-service"

// Transport carries procedure calls to gRPC backends. Endpoints of a service
// are used in turn, and connections are pooled per endpoint.
type Transport struct {
	opts *Options
	next atomic.Uint64

	mu     sync.Mutex
	pools  map[string]*pool
	closed atomic.Bool
}

var _ remote.Transport = (*Transport)(nil)

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{opts: o, pools: make(map[string]*pool)}
}

// Call invokes method with request on one endpoint of the method's service
// and returns the dynamic response message.
func (t *Transport) Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if t.opts.Provider == nil {
		return nil, ErrNoProvider
	}
	service := string(method.Parent().FullName())

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, ServiceHeader, service)

	endpoint, err := t.pick(ctx, service)
	if err != nil {
		return nil, err
	}
	p := t.pool(endpoint)
	cc, err := p.get()
	if err != nil {
		return nil, err
	}
	defer p.put(cc)

	name := string(method.Name())
	eventbus.Publish(ctx, events.GRPCClientStart{Service: service, Method: name, Target: endpoint})
	start := time.Now()
	resp := dynamicpb.NewMessage(method.Output())
	err = cc.Invoke(ctx, "/"+service+"/"+name, request, resp)
	eventbus.Publish(ctx, events.GRPCClientFinish{
		Service:  service,
		Method:   name,
		Target:   endpoint,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *Transport) pick(ctx context.Context, service string) (string, error) {
	endpoints, err := t.opts.Provider.Endpoints(ctx, service)
	if err != nil {
		return "", err
	}
	if len(endpoints) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoEndpoints, service)
	}
	return endpoints[(t.next.Add(1)-1)%uint64(len(endpoints))], nil
}

func (t *Transport) pool(endpoint string) *pool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pools[endpoint]
	if !ok {
		size := t.opts.MaxConnsPerEndpoint
		if size <= 0 {
			size = 2
		}
		p = &pool{target: endpoint, dial: t.opts.DialOptions, idle: make(chan *grpc.ClientConn, size)}
		t.pools[endpoint] = p
	}
	return p
}

// Close releases every pooled connection. Calls made afterwards fail with
// ErrClosed.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	clear(t.pools)
	return nil
}

// pool keeps up to cap(idle) idle connections to one target. Connections
// beyond that are closed when returned.
type pool struct {
	target string
	dial   []grpc.DialOption

	mu     sync.Mutex
	idle   chan *grpc.ClientConn
	closed bool
}

func (p *pool) get() (*grpc.ClientConn, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	select {
	case cc := <-p.idle:
		return cc, nil
	default:
		return grpc.NewClient(p.target, p.dial...)
	}
}

func (p *pool) put(cc *grpc.ClientConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		select {
		case p.idle <- cc:
			return
		default:
		}
	}
	_ = cc.Close()
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.idle)
	for cc := range p.idle {
		_ = cc.Close()
	}
}
