// Package stream fans moderation events out to live subscribers. The ops
// surface exposes it over SSE so operators can watch cases, sweeps and
// workflow transitions without tailing logs.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event describes one moderation occurrence.
type Event struct {
	Type      string    `json:"type"`
	ScopeID   string    `json:"scopeId,omitempty"`
	SubjectID string    `json:"subjectId,omitempty"`
	CaseID    string    `json:"caseId,omitempty"`
	ActorTag  string    `json:"actorTag,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types emitted by the moderation service.
const (
	TypeCaseAppended = "case.appended"
	TypeCaseRemoved  = "case.removed"
	TypeWorkflow     = "workflow.transition"
	TypeFanout       = "fanout.completed"
	TypeTempRole     = "temprole.granted"
	TypeRestore      = "roles.restored"
)

// Stream fan-outs events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
