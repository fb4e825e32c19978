// Package activity records user-facing events such as logins, guard denials
// and content generation.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event kinds.
const (
	KindLogin           = "login"
	KindLogout          = "logout"
	KindGuardDenied     = "guard_denied"
	KindLessonPlan      = "lesson_plan_generated"
	KindQuiz            = "quiz_generated"
	KindModuleCompleted = "module_completed"
	KindProgress        = "progress_updated"
)

// Event is one recorded activity.
type Event struct {
	UserID    string         `json:"userId,omitempty"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Logger persists events.
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// Record logs an event and swallows failures with a warning. Activity logging
// never blocks a request.
func Record(ctx context.Context, l Logger, event Event) {
	if l == nil {
		return
	}
	if err := l.Log(ctx, event); err != nil {
		slog.Warn("activity log failed", "kind", event.Kind, "user_id", event.UserID, "error", err)
	}
}

// NopLogger ignores all events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) error { return nil }

// MemoryLogger keeps events in memory.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{events: []Event{}}
}

func (l *MemoryLogger) Log(_ context.Context, event Event) error {
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Events returns a copy of all logged events in insertion order.
func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}
