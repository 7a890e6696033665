package events

import (
	"testing"
	"time"

	"github.com/galleylabs/galley/pkg/protocol"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe("")
	ch2 := b.Subscribe("thesis")

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(protocol.ChangeEvent{
		Type:    protocol.EventCreate,
		Project: "thesis",
		Path:    "chapters/intro.tex",
	})

	select {
	case received := <-ch:
		if received.Type != protocol.EventCreate {
			t.Errorf("expected type %s, got %s", protocol.EventCreate, received.Type)
		}
		if received.Path != "chapters/intro.tex" {
			t.Errorf("expected path chapters/intro.tex, got %s", received.Path)
		}
		if received.Timestamp == 0 {
			t.Error("expected non-zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterProjectFilter(t *testing.T) {
	b := NewBroadcaster()
	all := b.Subscribe("")
	thesis := b.Subscribe("thesis")
	notes := b.Subscribe("notes")
	defer b.Unsubscribe(all)
	defer b.Unsubscribe(thesis)
	defer b.Unsubscribe(notes)

	b.Publish(protocol.ChangeEvent{Type: protocol.EventModify, Project: "thesis", Path: "main.tex"})

	for _, ch := range []chan protocol.ChangeEvent{all, thesis} {
		select {
		case received := <-ch:
			if received.Project != "thesis" {
				t.Errorf("expected project thesis, got %s", received.Project)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	select {
	case e := <-notes:
		t.Errorf("notes subscriber received foreign event %+v", e)
	default:
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe("")
	ch2 := b.Subscribe("")
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(protocol.ChangeEvent{Type: protocol.EventDelete, Project: "thesis", Path: "old.tex"})

	for i, ch := range []chan protocol.ChangeEvent{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Path != "old.tex" {
				t.Errorf("subscriber %d: expected old.tex, got %s", i, received.Path)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill the channel buffer (64)
	for i := 0; i < 100; i++ {
		b.Publish(protocol.ChangeEvent{Type: protocol.EventCreate, Project: "thesis", Path: "overflow.tex"})
	}

	// Should not block or panic
	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			goto done
		}
	}
done:
	if count != 64 {
		t.Errorf("expected 64 buffered events, got %d", count)
	}
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(protocol.ChangeEvent{
		Type:      protocol.EventRename,
		Project:   "thesis",
		Path:      "draft.tex",
		NewPath:   "final.tex",
		Timestamp: 1234567890,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty JSON")
	}
}
