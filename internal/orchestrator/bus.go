package orchestrator

import (
	"sync"
	"time"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/infra/metrics"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing its oldest events; the
// publisher never blocks on anyone.
const subscriberBuffer = 16

// Event is a point-in-time progress notification for one task. Every
// published event corresponds to a repository write that has already
// committed, so a poll issued right after receiving an event can never
// observe older state.
type Event struct {
	TaskID    string            `json:"task_id"`
	Status    domain.TaskStatus `json:"status"`
	Stage     domain.Stage      `json:"stage,omitempty"`
	Progress  float64           `json:"progress"`
	Message   string            `json:"message,omitempty"`
	Artifacts []domain.Artifact `json:"artifacts,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Terminal reports whether this event ends the task's stream.
func (e Event) Terminal() bool {
	return e.Status == domain.TaskCompleted || e.Status == domain.TaskFailed
}

// EventFromTask builds the synthetic snapshot event for a persisted record.
func EventFromTask(t *domain.Task, message string) Event {
	ev := Event{
		TaskID:    t.ID,
		Status:    t.Status,
		Stage:     t.Stage,
		Progress:  t.Progress,
		Message:   message,
		Timestamp: t.UpdatedAt,
	}
	if t.Status == domain.TaskFailed && t.Error != nil && message == "" {
		ev.Message = t.Error.Message
	}
	if t.Status == domain.TaskCompleted {
		ev.Artifacts = t.Artifacts
	}
	return ev
}

// Subscription receives events for one task until the task reaches a
// terminal state (then the bus closes C) or Cancel is called.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	bus    *Bus
	taskID string
}

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s.taskID, s)
}

// Bus fans progress events out to live subscribers, per task. The
// registry has its own lock; publishing is independent of task
// execution and never blocks on a slow subscriber.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]*Subscription
}

// NewBus creates an empty progress bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*Subscription)}
}

// Subscribe attaches a new subscriber for taskID. The caller must drain
// C or accept dropped events.
func (b *Bus) Subscribe(taskID string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, bus: b, taskID: taskID}

	b.mu.Lock()
	b.subs[taskID] = append(b.subs[taskID], sub)
	b.mu.Unlock()

	metrics.StreamSubscribers.Inc()
	return sub
}

// Publish delivers ev to every current subscriber for ev.TaskID.
// A terminal event also closes and removes all subscriptions, so late
// readers see end-of-stream. Non-blocking: a full subscriber drops its
// oldest buffered event to make room.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[ev.TaskID] {
		for {
			select {
			case sub.ch <- ev:
			default:
				// Buffer full: drop the oldest and retry once.
				select {
				case <-sub.ch:
					metrics.StreamEventsDropped.Inc()
				default:
				}
				continue
			}
			break
		}
	}

	if ev.Terminal() {
		for _, sub := range b.subs[ev.TaskID] {
			close(sub.ch)
			metrics.StreamSubscribers.Dec()
		}
		delete(b.subs, ev.TaskID)
	}
}

// Subscribers returns the number of live subscriptions for a task.
func (b *Bus) Subscribers(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[taskID])
}

func (b *Bus) unsubscribe(taskID string, target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[taskID]
	for i, sub := range subs {
		if sub == target {
			b.subs[taskID] = append(subs[:i], subs[i+1:]...)
			close(sub.ch)
			metrics.StreamSubscribers.Dec()
			break
		}
	}
	if len(b.subs[taskID]) == 0 {
		delete(b.subs, taskID)
	}
}
