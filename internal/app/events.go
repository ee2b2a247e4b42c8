package app

import (
	"sync"
	"time"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/stabilizer"
)

// EventType names what happened in an Event.
type EventType string

const (
	// EventCommit is sent when the stabilizer commits a letter.
	EventCommit EventType = "commit"
	// EventObservation is sent for every observation the stabilizer saw.
	EventObservation EventType = "observation"
	// EventClear is sent when a new translation starts.
	EventClear EventType = "clear"
	// EventEdit is sent when the transcript was replaced by the user.
	EventEdit EventType = "edit"
)

// Event is published to listeners from the observation loop.
type Event struct {
	Type    EventType `json:"type"`
	Session string    `json:"session"`

	// Seq numbers commits within a session, starting at 1.
	Seq        int      `json:"seq,omitempty"`
	Letter     string   `json:"letter,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	// Candidate and Streak are the stabilizer state after an observation.
	Candidate string `json:"candidate,omitempty"`
	Streak    int    `json:"streak,omitempty"`

	// Hand is the hand the observation was classified from, if any.
	Hand *detector.HandLandmarks `json:"hand,omitempty"`

	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Listener receives events. It is called on the observation loop and must not block.
type Listener func(Event)

type listeners struct {
	mu   sync.RWMutex
	next int
	fns  map[int]Listener
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]Listener)
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners) publish(e Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, fn := range l.fns {
		fn(e)
	}
}

func confidencePtr(value float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &value
}

func labelString(r rune) string {
	if r == stabilizer.NoLabel {
		return ""
	}
	return string(r)
}
