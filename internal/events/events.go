package events

import (
	"log"
	"sync"

	"github.com/logicbot/backend/internal/models"
)

// Event is anything the conversation core announces. Listeners run off the
// request path; their failures never affect grading or state transitions.
type Event interface {
	EventName() string
}

// ScoreAwarded fires after every scoring event with a dashboard projection
// of the updated record.
type ScoreAwarded struct {
	Projection models.StudentProjection
	Topic      string
	Points     int
}

func (ScoreAwarded) EventName() string { return "score_awarded" }

// SuspiciousSubmission fires when the integrity heuristic flags a
// submission as reportable.
type SuspiciousSubmission struct {
	Alert models.SecurityAlert
}

func (SuspiciousSubmission) EventName() string { return "suspicious_submission" }

// AchievementUnlocked fires once per newly unlocked achievement.
type AchievementUnlocked struct {
	Phone       string
	Achievement string
}

func (AchievementUnlocked) EventName() string { return "achievement_unlocked" }

// ProfileChanged fires on non-scoring record changes the dashboard cares
// about, like a class join or a finished onboarding.
type ProfileChanged struct {
	Projection models.StudentProjection
}

func (ProfileChanged) EventName() string { return "profile_changed" }

// ── Bus ───────────────────────────────────────────────────

const busBuffer = 256

// Bus delivers events to listeners on a single background goroutine.
// Publish never blocks the caller: when the buffer is full the event is
// dropped with a log line, which is acceptable for best-effort sinks.
type Bus struct {
	mu        sync.RWMutex
	listeners []func(Event)
	closed    bool
	ch        chan Event
	done      chan struct{}
}

func NewBus() *Bus {
	b := &Bus{
		ch:   make(chan Event, busBuffer),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *Bus) Publish(e Event) {
	// The read lock covers the send so Close cannot close the channel
	// under a publisher. Late publishers after shutdown just drop.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Printf("[events] bus closed, dropping %s", e.EventName())
		return
	}
	select {
	case b.ch <- e:
	default:
		log.Printf("[events] buffer full, dropping %s", e.EventName())
	}
}

// Close drains pending events and stops the delivery goroutine. Safe to
// call more than once; Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.ch)
	<-b.done
}

func (b *Bus) run() {
	defer close(b.done)
	for e := range b.ch {
		b.mu.RLock()
		listeners := b.listeners
		b.mu.RUnlock()
		for _, fn := range listeners {
			b.deliver(fn, e)
		}
	}
}

func (b *Bus) deliver(fn func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] listener panicked on %s: %v", e.EventName(), r)
		}
	}()
	fn(e)
}
