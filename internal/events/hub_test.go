package events

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHubSubscribeAndPublish(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{
		ID:     "test-sub-1",
		Events: make(chan DeliveryEvent, 10),
	}
	hub.Subscribe(sub)

	event := DeliveryEvent{
		CommunicationID: "comm-1",
		CampaignID:      "camp-1",
		CustomerID:      "cust-1",
		Status:          EventStatusDelivered,
		VendorRef:       "vnd_1",
		Attempt:         1,
		Timestamp:       time.Now(),
	}

	hub.Publish(event)

	select {
	case received := <-sub.Events:
		if received.CommunicationID != event.CommunicationID {
			t.Errorf("expected communication ID %s, got %s", event.CommunicationID, received.CommunicationID)
		}
		if received.Status != event.Status {
			t.Errorf("expected status %s, got %s", event.Status, received.Status)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestHubFilterByCommunicationID(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{
		ID:              "filtered-sub",
		CommunicationID: "target-comm",
		Events:          make(chan DeliveryEvent, 10),
	}
	hub.Subscribe(sub)

	hub.Publish(DeliveryEvent{CommunicationID: "target-comm", Status: EventStatusDelivered})
	hub.Publish(DeliveryEvent{CommunicationID: "other-comm", Status: EventStatusFailed})

	select {
	case received := <-sub.Events:
		if received.CommunicationID != "target-comm" {
			t.Errorf("expected target-comm, got %s", received.CommunicationID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for matching event")
	}

	select {
	case <-sub.Events:
		t.Error("should not receive non-matching event")
	case <-time.After(50 * time.Millisecond):
		// Expected - no more events
	}
}

func TestHubFilterByCampaignID(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{
		ID:         "campaign-filtered-sub",
		CampaignID: "target-camp",
		Events:     make(chan DeliveryEvent, 10),
	}
	hub.Subscribe(sub)

	hub.Publish(DeliveryEvent{CampaignID: "target-camp", CommunicationID: "comm-1"})
	hub.Publish(DeliveryEvent{CampaignID: "other-camp", CommunicationID: "comm-2"})

	select {
	case received := <-sub.Events:
		if received.CampaignID != "target-camp" {
			t.Errorf("expected target-camp, got %s", received.CampaignID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for matching event")
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{ID: "gone-sub", Events: make(chan DeliveryEvent, 1)}
	hub.Subscribe(sub)
	if hub.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", hub.SubscriberCount())
	}

	hub.Unsubscribe("gone-sub")
	if hub.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", hub.SubscriberCount())
	}

	if _, open := <-sub.Events; open {
		t.Error("expected closed channel after unsubscribe")
	}
}

func TestHubFullBufferDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{ID: "slow-sub", Events: make(chan DeliveryEvent)} // unbuffered, never read
	hub.Subscribe(sub)

	done := make(chan struct{})
	go func() {
		hub.Publish(DeliveryEvent{CommunicationID: "comm-1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestHubConcurrentPublish(t *testing.T) {
	hub := NewHub()

	sub := &Subscriber{ID: "busy-sub", Events: make(chan DeliveryEvent, 1000)}
	hub.Subscribe(sub)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish(DeliveryEvent{CommunicationID: fmt.Sprintf("comm-%d-%d", n, j)})
			}
		}(i)
	}
	wg.Wait()

	if got := len(sub.Events); got != 500 {
		t.Errorf("received %d events, want 500", got)
	}
}
