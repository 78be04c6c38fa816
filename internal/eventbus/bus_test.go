package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypeTransition, Data: "kyiv"})

	ea := <-a
	ec := <-c
	require.Equal(t, TypeTransition, ea.Type)
	require.Equal(t, "kyiv", ec.Data)
	require.False(t, ea.Time.IsZero())
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeCycle})
	b.Publish(Event{Type: TypeCycle})
	require.EqualValues(t, 1, b.Dropped())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, open := <-ch
	require.False(t, open)
	b.Publish(Event{Type: TypeCycle})
}
