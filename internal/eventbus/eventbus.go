// Package eventbus is the in-process hook that connects the request path to
// logging, metrics and tracing. Publishers call Publish with a value from
// package events; subscribers register per event type. With no bus installed
// Publish does nothing.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type handler struct {
	id uint64
	fn func(context.Context, any)
}

// Bus dispatches events synchronously, in subscription order, on the
// publisher's goroutine. Handler lists are replaced on change, never edited,
// so Publish reads them without holding the lock.
type Bus struct {
	mu       sync.Mutex
	seq      uint64
	handlers atomic.Pointer[map[reflect.Type][]handler]
}

func New() *Bus {
	b := &Bus{}
	b.handlers.Store(&map[reflect.Type][]handler{})
	return b
}

func (b *Bus) update(fn func(m map[reflect.Type][]handler)) {
	old := *b.handlers.Load()
	next := make(map[reflect.Type][]handler, len(old))
	for t, hs := range old {
		next[t] = hs
	}
	fn(next)
	b.handlers.Store(&next)
}

func (b *Bus) subscribe(t reflect.Type, fn func(context.Context, any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	id := b.seq
	b.update(func(m map[reflect.Type][]handler) {
		m[t] = append(append([]handler(nil), m[t]...), handler{id: id, fn: fn})
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.update(func(m map[reflect.Type][]handler) {
				var kept []handler
				for _, h := range m[t] {
					if h.id != id {
						kept = append(kept, h)
					}
				}
				if len(kept) == 0 {
					delete(m, t)
				} else {
					m[t] = kept
				}
			})
		})
	}
}

func (b *Bus) emit(ctx context.Context, e any) {
	for _, h := range (*b.handlers.Load())[reflect.TypeOf(e)] {
		h.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use installs b as the process bus. Use(nil) turns publishing off.
func Use(b *Bus) { global.Store(b) }

// Subscribe registers h on the installed bus and returns a func that removes
// it. Without a bus it does nothing.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	b := global.Load()
	if b == nil {
		return func() {}
	}
	return b.subscribe(reflect.TypeFor[T](), func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.emit(ctx, e)
	}
}
