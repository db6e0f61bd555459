package realtime

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishReachesRoomAndTenantSubscribers(t *testing.T) {
	hub := NewHub()
	roomSub := hub.SubscribeRoom(7)
	tenantSub := hub.SubscribeTenant(1)
	defer roomSub.Close()
	defer tenantSub.Close()

	hub.Publish(Event{Type: EventMessageCreated, TenantID: 1, RoomID: 7})

	ev := recvEvent(t, roomSub)
	if ev.Type != EventMessageCreated || ev.RoomID != 7 {
		t.Errorf("room subscriber got %+v", ev)
	}
	if ev.At.IsZero() {
		t.Error("event timestamp not stamped")
	}
	ev = recvEvent(t, tenantSub)
	if ev.RoomID != 7 {
		t.Errorf("tenant subscriber got %+v", ev)
	}
}

func TestPublishIsScoped(t *testing.T) {
	hub := NewHub()
	otherRoom := hub.SubscribeRoom(8)
	otherTenant := hub.SubscribeTenant(2)
	defer otherRoom.Close()
	defer otherTenant.Close()

	hub.Publish(Event{Type: EventRoomCreated, TenantID: 1, RoomID: 7})

	select {
	case ev := <-otherRoom.Events():
		t.Errorf("room 8 subscriber received %+v", ev)
	case ev := <-otherTenant.Events():
		t.Errorf("tenant 2 subscriber received %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.SubscribeRoom(7)
	sub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Fatal("closed subscription still delivered an event")
	}

	// Publishing after close must not panic or block.
	hub.Publish(Event{Type: EventRoomUpdated, TenantID: 1, RoomID: 7})
}

func TestDoubleCloseIsSafe(t *testing.T) {
	hub := NewHub()
	sub := hub.SubscribeRoom(7)
	sub.Close()
	sub.Close()
}

func TestSlowConsumerIsDropped(t *testing.T) {
	hub := NewHub()
	slow := hub.SubscribeRoom(7)
	fast := hub.SubscribeRoom(7)
	defer fast.Close()

	// Fill the slow subscriber's buffer and one more: the overflow drops it.
	for i := 0; i < subscriptionBuffer+1; i++ {
		hub.Publish(Event{Type: EventMessageCreated, TenantID: 1, RoomID: 7})
		recvEvent(t, fast)
	}

	received := 0
	for range slow.Events() {
		received++
	}
	if received != subscriptionBuffer {
		t.Errorf("slow consumer received %d events before the drop, want %d", received, subscriptionBuffer)
	}

	// The surviving subscriber keeps getting events.
	hub.Publish(Event{Type: EventMessageCreated, TenantID: 1, RoomID: 7})
	recvEvent(t, fast)
}
