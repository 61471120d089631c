package api

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lanre-19/WorkAura/domain"
)

func TestEventDispatcherDelivers(t *testing.T) {
	store := &mockStore{}
	d := NewEventDispatcher(store, log.New())

	d.Publish(domain.Event{Type: domain.EventTaskCreated, WorkspaceID: "ws-1", TaskIDs: []string{"t1"}})
	d.Publish(domain.Event{Type: domain.EventTasksReordered, WorkspaceID: "ws-1", TaskIDs: []string{"t1", "t2"}})
	d.Shutdown()

	if len(store.events) != 2 {
		t.Fatalf("expected 2 delivered events, got %d", len(store.events))
	}
	stats := d.Stats()
	if stats.Delivered != 2 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestEventDispatcherRetriesFailedDelivery(t *testing.T) {
	t.Setenv("EVENTS_RETRY_INITIAL", "1ms")
	t.Setenv("EVENTS_RETRY_MAX", "5ms")

	store := &mockStore{enqueueErrs: 2}
	d := NewEventDispatcher(store, log.New())

	d.Publish(domain.Event{Type: domain.EventTaskDeleted, WorkspaceID: "ws-1", TaskIDs: []string{"t1"}})

	deadline := time.After(2 * time.Second)
	for {
		if d.Stats().Delivered == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("event was not delivered after retries: %#v", d.Stats())
		case <-time.After(5 * time.Millisecond):
		}
	}
	d.Shutdown()

	if len(store.events) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(store.events))
	}
}

func TestEventDispatcherDropsAfterMaxAttempts(t *testing.T) {
	t.Setenv("EVENTS_RETRY_INITIAL", "1ms")
	t.Setenv("EVENTS_RETRY_MAX", "5ms")
	t.Setenv("EVENTS_MAX_ATTEMPTS", "2")

	store := &mockStore{enqueueErrs: 10}
	d := NewEventDispatcher(store, log.New())

	d.Publish(domain.Event{Type: domain.EventTaskUpdated, WorkspaceID: "ws-1", TaskIDs: []string{"t1"}})

	deadline := time.After(2 * time.Second)
	for {
		if d.Stats().Dropped == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("event was never dropped: %#v", d.Stats())
		case <-time.After(5 * time.Millisecond):
		}
	}
	d.Shutdown()

	if len(store.events) != 0 {
		t.Fatalf("expected no delivered events, got %d", len(store.events))
	}
}

func TestEventDispatcherDropsAfterShutdown(t *testing.T) {
	store := &mockStore{}
	d := NewEventDispatcher(store, log.New())
	d.Shutdown()

	d.Publish(domain.Event{Type: domain.EventTaskCreated, WorkspaceID: "ws-1"})
	if d.Stats().Dropped != 1 {
		t.Fatalf("publish after shutdown must count as dropped: %#v", d.Stats())
	}
}
