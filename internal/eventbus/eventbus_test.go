package eventbus

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init(&config.LogConfig{Level: "error", Format: "console", Output: "stdout"})
	os.Exit(m.Run())
}

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestPublishSubscribeFIFO(t *testing.T) {
	bus := New()
	c := &collector{}

	_, err := bus.Subscribe("release.create", "test", c.handle)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, bus.Publish("release.create", i))
	}
	bus.Close()

	events := c.snapshot()
	require.Len(t, events, 100)
	for i, e := range events {
		assert.Equal(t, i, e.Data)
		assert.Equal(t, "release.create", e.Subject)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()

	c1, c2 := &collector{}, &collector{}
	_, err := bus.Subscribe("release.created", "first", c1.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe("release.created", "second", c2.handle)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish("release.created", i))
	}

	assert.Eventually(t, func() bool {
		return len(c1.snapshot()) == 10 && len(c2.snapshot()) == 10
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubjectIsolation(t *testing.T) {
	bus := New()
	c := &collector{}

	_, err := bus.Subscribe("rollback.execute", "test", c.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish("release.create", "other"))
	require.NoError(t, bus.Publish("rollback.execute", "mine"))
	bus.Close()

	events := c.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "mine", events[0].Data)
}

func TestUnsubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	c := &collector{}
	cancel, err := bus.Subscribe("release.pause", "test", c.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish("release.pause", 1))
	assert.Eventually(t, func() bool {
		return len(c.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, bus.Publish("release.pause", 2))

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, c.snapshot(), 1)
}

func TestHandlerPanicIsolated(t *testing.T) {
	bus := New()
	c := &collector{}

	_, err := bus.Subscribe("error.agent", "test", func(event Event) {
		if event.Data == "boom" {
			panic(fmt.Errorf("handler exploded"))
		}
		c.handle(event)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("error.agent", "boom"))
	require.NoError(t, bus.Publish("error.agent", "ok"))
	bus.Close()

	events := c.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].Data)
}

func TestPublishAfterClose(t *testing.T) {
	bus := New()
	bus.Close()

	err := bus.Publish("release.create", nil)
	assert.Error(t, err)

	_, err = bus.Subscribe("release.create", "late", func(Event) {})
	assert.Error(t, err)

	// 重复Close不应panic
	bus.Close()
}
