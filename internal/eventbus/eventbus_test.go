package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{}

func TestPublishSubscribe(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got []int
	unsubscribe := Subscribe(func(_ context.Context, p ping) { got = append(got, p.N) })
	Subscribe(func(context.Context, pong) { t.Fatal("pong handler must not see ping") })

	Publish(context.Background(), ping{N: 1})
	Publish(context.Background(), ping{N: 2})
	unsubscribe()
	Publish(context.Background(), ping{N: 3})

	require.Equal(t, []int{1, 2}, got)
}

func TestDisabledBus(t *testing.T) {
	Use(nil)
	called := false
	Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	require.False(t, called)
}

func TestUnsubscribeRemovesOnlyItsHandler(t *testing.T) {
	Use(New())
	defer Use(nil)

	var a, b int
	unsubA := Subscribe(func(context.Context, ping) { a++ })
	Subscribe(func(context.Context, ping) { b++ })
	unsubA()
	Publish(context.Background(), ping{})

	require.Equal(t, 0, a)
	require.Equal(t, 1, b)
}

func TestSubscribeFromHandler(t *testing.T) {
	Use(New())
	defer Use(nil)

	var late int
	added := false
	Subscribe(func(context.Context, ping) {
		if !added {
			added = true
			Subscribe(func(context.Context, ping) { late++ })
		}
	})
	Publish(context.Background(), ping{})
	require.Equal(t, 0, late)
	Publish(context.Background(), ping{})
	require.Equal(t, 1, late)
}
