package notify

import (
	"testing"
	"time"
)

func TestNotifier_PublishNoSubscribers(t *testing.T) {
	n := NewNotifier(100)
	// Should not panic and should not block
	n.Publish(Notification{EntityID: "truck-1", Events: 1, Latest: 100})
}

func TestNotifier_SubscribeReceivesNotification(t *testing.T) {
	n := NewNotifier(100)
	sub := n.Subscribe("sub-1")

	n.Publish(Notification{EntityID: "truck-1", Events: 2, Latest: 200})

	select {
	case notif := <-sub.Ch:
		if notif.EntityID != "truck-1" || notif.Events != 2 || notif.Latest != 200 {
			t.Errorf("unexpected notification: %+v", notif)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive notification within timeout")
	}
}

func TestNotifier_Filters(t *testing.T) {
	n := NewNotifier(100)
	sub := n.Subscribe("sub-2", "bus-")

	n.Publish(Notification{EntityID: "truck-1"})
	n.Publish(Notification{EntityID: "bus-9"})

	select {
	case notif := <-sub.Ch:
		if notif.EntityID != "bus-9" {
			t.Fatalf("expected bus-9, got %s", notif.EntityID)
		}
	case <-time.After(time.Second):
		t.Fatal("matching notification was not delivered")
	}

	select {
	case notif := <-sub.Ch:
		t.Fatalf("received unexpected notification: %v", notif)
	default:
	}
}

func TestNotifier_FullChannelDrops(t *testing.T) {
	n := NewNotifier(1)
	sub := n.Subscribe("sub-3")

	done := make(chan struct{})
	go func() {
		n.Publish(Notification{EntityID: "a"})
		n.Publish(Notification{EntityID: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full channel")
	}
	if got := (<-sub.Ch).EntityID; got != "a" {
		t.Errorf("expected first notification to be kept, got %s", got)
	}
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier(10)
	sub := n.Subscribe("")
	if sub.ID == "" {
		t.Fatal("expected generated subscriber ID")
	}

	n.Unsubscribe(sub.ID)
	if _, ok := <-sub.Ch; ok {
		t.Error("expected channel to be closed")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	n.Publish(Notification{EntityID: "a"})
	n.Unsubscribe(sub.ID)
}
