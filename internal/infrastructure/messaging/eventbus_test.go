package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/logger"
)

type fakeObserver struct {
	published []string
	failures  int
}

func (o *fakeObserver) ObservePublish(eventType string) { o.published = append(o.published, eventType) }

func (o *fakeObserver) ObserveHandler(_ string, _ time.Duration, err error) {
	if err != nil {
		o.failures++
	}
}

func xpEvent() shared.Event {
	return shared.XPGainedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventXPGained, "u-1", time.Now()),
		OldXP:     0,
		NewXP:     100,
		Delta:     100,
	}
}

func TestInMemoryEventBus_DeliversInOrder(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	var calls []string

	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error {
		calls = append(calls, "typed")
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventRankChanged, func(shared.Event) error {
		calls = append(calls, "other")
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		calls = append(calls, "all")
		return nil
	}))

	require.NoError(t, bus.Publish(xpEvent()))
	assert.Equal(t, []string{"typed", "all"}, calls)
}

func TestInMemoryEventBus_HandlerErrorsDoNotFailPublish(t *testing.T) {
	obs := &fakeObserver{}
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		Observer:    obs,
		Middlewares: []Middleware{RecoverMiddleware(logger.Nop())},
	})

	delivered := false
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("kaboom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		delivered = true
		return nil
	}))

	require.NoError(t, bus.Publish(xpEvent()))
	assert.True(t, delivered)
	assert.Equal(t, []string{string(shared.EventXPGained)}, obs.published)
	assert.Equal(t, 2, obs.failures)
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(xpEvent()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.ErrorIs(t, NewInMemoryEventBus(InMemoryEventBusConfig{}).SubscribeAll(nil), ErrNilHandler)
}
