// Package debug records leveled diagnostic events from the course runtime
// and fans them out to live subscribers such as the debug overlay.
package debug

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of events kept when no capacity is configured.
const DefaultCapacity = 500

// Level is the severity of an event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Source tags the subsystem that produced an event.
type Source string

const (
	SourceScorm  Source = "scorm"
	SourceData   Source = "data"
	SourceLang   Source = "lang"
	SourceSystem Source = "system"
)

// Event is a single diagnostic record.
type Event struct {
	ID      string         `json:"id"`
	Time    time.Time      `json:"timestamp"`
	Level   Level          `json:"level"`
	Source  Source         `json:"source"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Sink keeps the most recent events in a bounded ring. A nil *Sink is valid
// and discards everything, so components can run without diagnostics.
type Sink struct {
	mu      sync.Mutex
	enabled bool
	buf     []Event
	head    int
	size    int
	subs    map[int]chan Event
	nextSub int
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a sink. Disabling it is a no-op for the ring buffer and for
// subscribers only: every event is still written to logger at its level.
func New(enabled bool, capacity int, logger *slog.Logger) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		enabled: enabled,
		buf:     make([]Event, capacity),
		subs:    make(map[int]chan Event),
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Sink) Info(source Source, message string, payload map[string]any) {
	s.Log(LevelInfo, source, message, payload)
}

func (s *Sink) Warn(source Source, message string, payload map[string]any) {
	s.Log(LevelWarn, source, message, payload)
}

func (s *Sink) Error(source Source, message string, payload map[string]any) {
	s.Log(LevelError, source, message, payload)
}

// Log records an event.
func (s *Sink) Log(level Level, source Source, message string, payload map[string]any) {
	if s == nil {
		return
	}

	s.logger.Log(context.Background(), slogLevel(level), message,
		"source", string(source),
		"payload", payload,
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return
	}

	ev := Event{
		ID:      uuid.NewString(),
		Time:    s.now(),
		Level:   level,
		Source:  source,
		Message: message,
		Payload: payload,
	}

	idx := (s.head + s.size) % len(s.buf)
	s.buf[idx] = ev
	if s.size < len(s.buf) {
		s.size++
	} else {
		s.head = (s.head + 1) % len(s.buf)
	}

	for _, ch := range s.subs {
		// Slow subscribers miss events rather than stall the runtime.
		select {
		case ch <- ev:
		default:
		}
	}
}

// Events returns the retained events, oldest first.
func (s *Sink) Events() []Event {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, s.size)
	for i := 0; i < s.size; i++ {
		out = append(out, s.buf[(s.head+i)%len(s.buf)])
	}
	return out
}

// Clear drops all retained events.
func (s *Sink) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.buf)
	s.head = 0
	s.size = 0
}

func (s *Sink) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Sink) SetEnabled(enabled bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Subscribe registers a live consumer. The returned func unsubscribes and
// closes the channel.
func (s *Sink) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))
	if s == nil {
		close(ch)
		return ch, func() {}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
