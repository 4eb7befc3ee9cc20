package bus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/midastrader/midas/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeFIFOPerSubscriber(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe(bus.TopicOrder)

	b.Publish(bus.TopicOrder, 1)
	b.Publish(bus.TopicOrder, 2)
	b.Publish(bus.TopicOrder, 3)

	for _, want := range []int{1, 2, 3} {
		evt, ok := sub.Next()
		require.True(t, ok)
		assert.Equal(t, want, evt.Payload)
	}
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	b := bus.New()
	s1 := b.Subscribe(bus.TopicTrade)
	s2 := b.Subscribe(bus.TopicTrade)

	b.Publish(bus.TopicTrade, "fill")

	e1, ok := s1.Next()
	require.True(t, ok)
	e2, ok := s2.Next()
	require.True(t, ok)
	assert.Equal(t, "fill", e1.Payload)
	assert.Equal(t, "fill", e2.Payload)
}

func TestSubscribeBlocksUntilPublish(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe(bus.TopicSignal)

	var wg sync.WaitGroup
	wg.Add(1)
	var got bus.Event
	var ok bool
	go func() {
		defer wg.Done()
		got, ok = sub.Next()
	}()

	time.Sleep(10 * time.Millisecond)
	b.Publish(bus.TopicSignal, "go-long")
	wg.Wait()

	require.True(t, ok)
	assert.Equal(t, "go-long", got.Payload)
}

func TestFlagSetGetAwait(t *testing.T) {
	b := bus.New()
	assert.False(t, b.GetFlag(bus.FlagUpdateSystem))

	done := make(chan bool, 1)
	go func() {
		done <- b.AwaitFlag(bus.FlagUpdateSystem, true)
	}()

	time.Sleep(10 * time.Millisecond)
	b.SetFlag(bus.FlagUpdateSystem, true)

	assert.True(t, <-done)
	assert.True(t, b.GetFlag(bus.FlagUpdateSystem))
}

func TestShutdownReleasesBlockedSubscribersAndFlagWaiters(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe(bus.TopicData)

	subDone := make(chan bool, 1)
	flagDone := make(chan bool, 1)
	go func() {
		_, ok := sub.Next()
		subDone <- ok
	}()
	go func() {
		flagDone <- b.AwaitFlag(bus.FlagDataProcessed, true)
	}()

	time.Sleep(10 * time.Millisecond)
	b.Shutdown()

	assert.False(t, <-subDone)
	assert.False(t, <-flagDone)
	assert.True(t, b.ShuttingDown())
}

func TestUnsubscribeClosesQueue(t *testing.T) {
	b := bus.New()
	sub := b.Subscribe(bus.TopicEOD)
	b.Unsubscribe(bus.TopicEOD, sub)

	_, ok := sub.Next()
	assert.False(t, ok)
}
