package events

import (
	"fmt"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe(TopicTask, 10)

	b.Publish(TopicTask, TaskClaimedEvent{
		ID:        "task-1",
		Mission:   "mission-1",
		AgentID:   "agent-1",
		Timestamp: time.Now(),
	})

	select {
	case got := <-ch:
		if got.EventType() != EventTypeTaskClaimed {
			t.Errorf("expected %q, got %q", EventTypeTaskClaimed, got.EventType())
		}
		if got.MissionID() != "mission-1" {
			t.Errorf("expected mission-1, got %q", got.MissionID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestTopicIsolation(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	taskCh := b.Subscribe(TopicTask, 10)
	missionCh := b.Subscribe(TopicMission, 10)

	b.Publish(TopicMission, MissionStartedEvent{Mission: "mission-1", TaskCount: 4, Timestamp: time.Now()})

	select {
	case got := <-missionCh:
		if got.EventType() != EventTypeMissionStarted {
			t.Errorf("unexpected event %q", got.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for mission event")
	}

	select {
	case got := <-taskCh:
		t.Fatalf("task subscriber received cross-topic event %q", got.EventType())
	default:
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	all := b.SubscribeAll(10)

	b.Publish(TopicTask, TaskFailedEvent{ID: "task-1", Mission: "m", Reason: "boom", Timestamp: time.Now()})
	b.Publish(TopicAgent, AgentEnrolledEvent{Mission: "m", AgentID: "a1", Role: "coder", Timestamp: time.Now()})

	want := []string{EventTypeTaskFailed, EventTypeAgentEnrolled}
	for _, expected := range want {
		select {
		case got := <-all:
			if got.EventType() != expected {
				t.Errorf("expected %q, got %q", expected, got.EventType())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for %q", expected)
		}
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ch := b.Subscribe(TopicTask, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			b.Publish(TopicTask, TaskRetriedEvent{
				ID: fmt.Sprintf("task-%d", i), Mission: "m", Attempt: i, Timestamp: time.Now(),
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	// Only the first event fit in the buffer.
	got := <-ch
	if got.EventType() != EventTypeTaskRetried {
		t.Errorf("unexpected event %q", got.EventType())
	}
}

func TestCloseIsIdempotentAndClosesChannels(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(TopicTask, 1)

	b.Close()
	b.Close()

	if _, open := <-ch; open {
		t.Error("expected subscriber channel closed")
	}

	// Publishing and subscribing after close must not panic.
	b.Publish(TopicTask, TaskClaimedEvent{ID: "task-1", Mission: "m"})
	if _, open := <-b.Subscribe(TopicTask, 1); open {
		t.Error("expected post-close subscription to be closed immediately")
	}
}
