package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryEventBus_DeliversToTypeSubscribers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var got []shared.Event
	err := bus.Subscribe(shared.EventXPGained, func(event shared.Event) error {
		got = append(got, event)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 100, 100, "achievement:user-1:first_find")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)))

	// Only the subscribed type arrives.
	require.Len(t, got, 1)
	assert.Equal(t, shared.EventXPGained, got[0].EventType())
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 100, 100, "ref")))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)))
	require.NoError(t, bus.Publish(shared.NewLeaderboardRefreshedEvent(3)))

	assert.Equal(t, 3, count)
}

func TestInMemoryEventBus_HandlerErrorsAreSwallowed(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error {
		return errors.New("handler blew up")
	}))

	// Publish must not propagate handler failures.
	assert.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 50, 50, "ref")))
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
	})

	var (
		mu    sync.Mutex
		count int
	)
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 10, 10*(i+1), "ref")))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Closing twice is fine.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventXPGained, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

func TestInMemoryEventBus_Metrics(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 10, 10, "ref")))
	require.NoError(t, bus.Publish(shared.NewXPGainedEvent("user-1", 10, 20, "ref2")))

	m := bus.Metrics()
	require.NotNil(t, m)
	snapshot := m.Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalPublished)
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.Equal(t, 1.0, snapshot.HandlerSuccessRate)
}
