//go:build redis_integration

package audit

import (
	"os"
	"testing"
	"time"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	b, err := NewRedisBroker(url)
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}

	ch := b.Subscribe(TopicEvents)
	b.Publish(TopicEvents, Event{Type: TypeOrderAssigned, Data: map[string]any{"orderId": "o1"}})

	select {
	case evt := <-ch:
		if evt.Type != TypeOrderAssigned {
			t.Fatalf("type = %s", evt.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not receive event")
	}
	b.Unsubscribe(TopicEvents, ch)
}

func TestRedisBrokerUnsubscribeDuringTraffic(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	b, err := NewRedisBroker(url)
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}

	ch := b.Subscribe(TopicEvents)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			b.Publish(TopicEvents, Event{Type: TypeOrderReceived})
		}
	}()
	// Tearing down mid-stream must not panic the forwarding goroutine.
	time.Sleep(10 * time.Millisecond)
	b.Unsubscribe(TopicEvents, ch)
	<-done

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after unsubscribe")
		}
	}
}
