package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub1 := broker.Subscribe()
	sub2 := broker.Subscribe()
	assert.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventExtractorStarted, Extractor: "automation"})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventExtractorStarted, ev.Type)
			assert.Equal(t, "automation", ev.Extractor)
			assert.False(t, ev.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestProgressEvent(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()

	broker.Progress("queries", "enriching", 50, 200)

	select {
	case ev := <-sub:
		require.Equal(t, EventExtractorProgress, ev.Type)
		assert.Equal(t, "queries", ev.Extractor)
		assert.Equal(t, 50, ev.Done)
		assert.Equal(t, 200, ev.Total)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)

	_, open := <-sub
	assert.False(t, open)
	assert.Equal(t, 0, broker.SubscriberCount())
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	// Never drained; buffer fills and further events are dropped.
	_ = broker.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			broker.Publish(&Event{Type: EventExtractorProgress})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a slow subscriber")
	}
}
