// Package server serves a GraphQL endpoint over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/procgraph/internal/authn"
	eventbus "github.com/hanpama/procgraph/internal/eventbus"
	events "github.com/hanpama/procgraph/internal/events"
	executor "github.com/hanpama/procgraph/internal/executor"
	language "github.com/hanpama/procgraph/internal/language"
	reqid "github.com/hanpama/procgraph/internal/reqid"
	schema "github.com/hanpama/procgraph/internal/schema"
	"github.com/hanpama/procgraph/router"
)

// DefaultEndpoint is the path served when WithEndpoint is not given.
const DefaultEndpoint = "/api/graphql"

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses and validates requests, runs the executor and formats responses.
type Handler struct {
	exec      *executor.Executor
	validated *language.ValidatedSchema
	docs      *lru.Cache[string, *language.QueryDocument]
	opt       Options
}

type Options struct {
	// Endpoint is the only path served. Other paths get 404.
	Endpoint string

	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	// ContextFunc builds the per-request value handed to procedures through
	// router.Value.
	ContextFunc func(*http.Request) any

	// DocumentCacheSize keeps that many parsed and validated documents.
	DocumentCacheSize int

	// Msgpack answers with MessagePack when the client accepts it.
	Msgpack bool

	// Authenticator verifies bearer tokens. Requests without a token are
	// served anonymously; requests with an invalid one get 401.
	Authenticator *authn.Verifier
}

type Option func(*Options)

func WithEndpoint(path string) Option    { return func(o *Options) { o.Endpoint = path } }
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }
func WithContextFunc(fn func(*http.Request) any) Option {
	return func(o *Options) { o.ContextFunc = fn }
}
func WithDocumentCache(size int) Option { return func(o *Options) { o.DocumentCacheSize = size } }
func WithMsgpack() Option               { return func(o *Options) { o.Msgpack = true } }
func WithAuthenticator(v *authn.Verifier) Option {
	return func(o *Options) { o.Authenticator = v }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler for runtime and sch. sch must pass
// schema.Validate; queries are validated against it before execution.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	op := Options{Endpoint: DefaultEndpoint, Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	validated, err := schema.Validate(sch)
	if err != nil {
		return nil, err
	}
	h := &Handler{exec: executor.NewExecutor(runtime, sch), validated: validated, opt: op}
	if op.DocumentCacheSize > 0 {
		h.docs, err = lru.New[string, *language.QueryDocument](op.DocumentCacheSize)
		if err != nil {
			return nil, fmt.Errorf("server: document cache: %w", err)
		}
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	var rid string
	if incoming := r.Header.Get(reqid.Header); incoming != "" {
		ctx, rid = reqid.WithID(ctx, incoming)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	w.Header().Set(reqid.Header, rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if h.opt.Endpoint != "" && r.URL.Path != h.opt.Endpoint {
		status = http.StatusNotFound
		http.NotFound(w, r)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		h.write(w, r, status, errorResponse("method not allowed"))
		return
	}

	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	if h.opt.Authenticator != nil {
		claims, err := h.opt.Authenticator.FromRequest(r)
		switch {
		case errors.Is(err, authn.ErrMissingToken):
		case err != nil:
			status = http.StatusUnauthorized
			h.write(w, r, status, errorResponse(err.Error()))
			return
		default:
			ctx = authn.WithClaims(ctx, claims)
		}
	}
	if h.opt.ContextFunc != nil {
		ctx = router.WithValue(ctx, h.opt.ContextFunc(r))
	}
	ctx = metadata.NewOutgoingContext(ctx, h.forwardedMetadata(r, rid))

	req, batch, perr := parseRequest(r, h.opt.MaxBodyBytes)
	if perr != nil {
		status = http.StatusBadRequest
		if errors.Is(perr, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.write(w, r, status, errorResponse(perr.Error()))
		return
	}

	if batch != nil {
		out := make([]response, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, r.Method, batch[i])
		}
		h.write(w, r, status, out)
		return
	}
	h.write(w, r, status, h.executeOne(ctx, r.Method, req))
}

func (h *Handler) forwardedMetadata(r *http.Request, rid string) metadata.MD {
	md := metadata.MD{}
	if len(h.opt.MetadataHeaders) > 0 {
		allowed := make(map[string]struct{}, len(h.opt.MetadataHeaders))
		for _, hdr := range h.opt.MetadataHeaders {
			allowed[strings.ToLower(hdr)] = struct{}{}
		}
		for k, v := range r.Header {
			if _, ok := allowed[strings.ToLower(k)]; ok {
				md[strings.ToLower(k)] = v
			}
		}
	}
	md[strings.ToLower(reqid.Header)] = []string{rid}
	return md
}

// document parses and validates query, consulting the cache first.
func (h *Handler) document(query string) (*language.QueryDocument, language.ErrorList) {
	if h.docs != nil {
		if doc, ok := h.docs.Get(query); ok {
			return doc, nil
		}
	}
	doc, err := language.ParseQuery(query)
	if err != nil {
		var ge *language.Error
		if errors.As(err, &ge) {
			return nil, language.ErrorList{ge}
		}
		return nil, language.ErrorList{{Message: err.Error()}}
	}
	if errs := language.ValidateQuery(h.validated, doc); len(errs) > 0 {
		return nil, errs
	}
	if h.docs != nil {
		h.docs.Add(query, doc)
	}
	return doc, nil
}

func (h *Handler) executeOne(ctx context.Context, method string, req GraphQLRequest) response {
	doc, errs := h.document(req.Query)
	if len(errs) > 0 {
		return fromGQLErrors(errs)
	}

	opDef := doc.Operations.ForName(req.OperationName)
	if opDef == nil && req.OperationName == "" && len(doc.Operations) == 1 {
		opDef = doc.Operations[0]
	}
	opType := ""
	if opDef != nil {
		opType = string(opDef.Operation)
	}
	if method == http.MethodGet && opDef != nil && opDef.Operation != language.Query {
		return errorResponse(fmt.Sprintf("%s operations are not allowed over GET", opType))
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	errList := make([]error, len(result.Errors))
	for i := range result.Errors {
		errList[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errList,
		Duration:      time.Since(start),
	})
	return fromResult(result)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		wildcard = wildcard || o == "*"
		allowed = allowed || o == "*" || o == origin
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
