package server

import (
	"net/http"
	"sync/atomic"
)

// Reloadable serves whichever handler was stored last. It lets a running
// server switch to a rebuilt schema without dropping the listener.
type Reloadable struct {
	current atomic.Pointer[http.Handler]
}

func NewReloadable(h http.Handler) *Reloadable {
	r := &Reloadable{}
	r.Store(h)
	return r
}

func (r *Reloadable) Store(h http.Handler) { r.current.Store(&h) }

func (r *Reloadable) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	(*r.current.Load()).ServeHTTP(w, req)
}
