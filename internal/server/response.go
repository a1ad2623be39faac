package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	executor "github.com/hanpama/procgraph/internal/executor"
	language "github.com/hanpama/procgraph/internal/language"
)

const msgpackContentType = "application/msgpack"

type location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type responseError struct {
	Message    string         `json:"message"`
	Locations  []location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// response is the wire form of one GraphQL result. Data is omitted when the
// request failed before execution.
type response struct {
	Data   any             `json:"data,omitempty"`
	Errors []responseError `json:"errors,omitempty"`
}

func errorResponse(msg string) response {
	return response{Errors: []responseError{{Message: msg}}}
}

func fromGQLErrors(errs language.ErrorList) response {
	out := response{Errors: make([]responseError, len(errs))}
	for i, e := range errs {
		re := responseError{Message: e.Message, Extensions: e.Extensions}
		for _, l := range e.Locations {
			re.Locations = append(re.Locations, location{Line: l.Line, Column: l.Column})
		}
		out.Errors[i] = re
	}
	return out
}

// fromResult keeps data even when errors are present; partial results are
// valid GraphQL responses.
func fromResult(res *executor.ExecutionResult) response {
	out := response{Data: res.Data}
	for _, e := range res.Errors {
		re := responseError{Message: e.Message, Extensions: e.Extensions}
		for _, pe := range e.Path {
			re.Path = append(re.Path, pe)
		}
		out.Errors = append(out.Errors, re)
	}
	return out
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, v any) {
	if h.opt.Msgpack && strings.Contains(r.Header.Get("Accept"), msgpackContentType) {
		w.Header().Set("Content-Type", msgpackContentType)
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		enc.SetOmitEmpty(true)
		_ = enc.Encode(v)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
