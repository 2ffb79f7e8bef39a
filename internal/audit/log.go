package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultCapacity bounds the in-memory log.
	DefaultCapacity = 1000
	// DefaultPersistCapacity bounds how many of the newest events are persisted.
	DefaultPersistCapacity = 500
)

// Store is the persistence the log writes its newest events through.
// storage.Storage satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// ClientMetadata extracts best-effort client details from a request context.
type ClientMetadata func(ctx context.Context) (userAgent, ip string)

// Options configures a Log.
type Options struct {
	Capacity        int
	PersistCapacity int

	// Store and Key enable persistence. With either unset the log is
	// memory-only.
	Store Store
	Key   string

	Dispatcher *Dispatcher
	Metadata   ClientMetadata
	Now        func() time.Time
	Logger     *zap.Logger
}

// Log is an append-only, size-bounded audit log. The oldest events are
// evicted once capacity is reached.
type Log struct {
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	events []Event // oldest first

	persistFailures atomic.Uint64
}

// NewLog builds a Log and restores any persisted events. Unreadable
// persisted data is discarded.
func NewLog(ctx context.Context, opts Options) *Log {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.PersistCapacity <= 0 {
		opts.PersistCapacity = DefaultPersistCapacity
	}
	if opts.PersistCapacity > opts.Capacity {
		opts.PersistCapacity = opts.Capacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &Log{opts: opts, logger: opts.Logger.With(zap.String("component", "audit"))}
	l.restore(ctx)
	return l
}

func (l *Log) persistent() bool {
	return l.opts.Store != nil && l.opts.Key != ""
}

func (l *Log) restore(ctx context.Context) {
	if !l.persistent() {
		return
	}
	raw, ok, err := l.opts.Store.Get(ctx, l.opts.Key)
	if err != nil {
		l.persistFailures.Add(1)
		l.logger.Warn("audit log restore failed, continuing in memory", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	var events []Event
	if err := json.Unmarshal(raw, &events); err != nil {
		l.logger.Warn("persisted audit log unreadable, discarded", zap.Error(err))
		_ = l.opts.Store.Remove(ctx, l.opts.Key)
		return
	}
	if len(events) > l.opts.Capacity {
		events = events[len(events)-l.opts.Capacity:]
	}
	l.events = events
}

// Log appends event, filling in id, timestamp and severity when they are
// unset, then forwards it to the dispatcher.
func (l *Log) Log(ctx context.Context, event Event) Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.opts.Now().UTC()
	}
	if event.ID == "" {
		event.ID = NewID(event.Timestamp)
	}
	if event.Severity == "" {
		event.Severity = DefaultSeverity(event.Type)
	}
	if l.opts.Metadata != nil && event.UserAgent == "" && event.IP == "" {
		event.UserAgent, event.IP = l.opts.Metadata(ctx)
	}
	event = event.clone()

	l.mu.Lock()
	l.events = append(l.events, event)
	if over := len(l.events) - l.opts.Capacity; over > 0 {
		l.events = append([]Event(nil), l.events[over:]...)
	}
	l.persistLocked(ctx)
	l.mu.Unlock()

	l.opts.Dispatcher.Emit(ctx, event)
	return event.clone()
}

// persistLocked writes the newest PersistCapacity events. Failures leave
// the in-memory log authoritative.
func (l *Log) persistLocked(ctx context.Context) {
	if !l.persistent() {
		return
	}
	tail := l.events
	if len(tail) > l.opts.PersistCapacity {
		tail = tail[len(tail)-l.opts.PersistCapacity:]
	}
	data, err := json.Marshal(tail)
	if err == nil {
		err = l.opts.Store.Set(ctx, l.opts.Key, data)
	}
	if err != nil {
		l.persistFailures.Add(1)
		l.logger.Warn("audit log persist failed", zap.Error(err))
	}
}

// Filter selects events. Zero fields match everything; all set fields must
// match.
type Filter struct {
	UserID   string
	Type     Type
	Severity Severity
	Since    time.Time
	Until    time.Time
	Limit    int
}

func (f Filter) match(e *Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Events returns matching events newest first.
func (l *Log) Events(f Filter) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, min(len(l.events), max(f.Limit, 0)+16))
	for i := len(l.events) - 1; i >= 0; i-- {
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
		if f.match(&l.events[i]) {
			out = append(out, l.events[i].clone())
		}
	}
	return out
}

// Len reports how many events are held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Clear empties the log and its persisted copy.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	if !l.persistent() {
		return nil
	}
	return l.opts.Store.Remove(ctx, l.opts.Key)
}

// PersistFailures counts failed restore and persist attempts.
func (l *Log) PersistFailures() uint64 {
	return l.persistFailures.Load()
}

// Stats summarizes the log.
type Stats struct {
	Total      int              `json:"total"`
	ByType     map[Type]int     `json:"by_type"`
	BySeverity map[Severity]int `json:"by_severity"`
	Last24h    int              `json:"last_24h"`
	Last7d     int              `json:"last_7d"`
}

// Stats counts events by type and severity, plus those inside the rolling
// 24 hour and 7 day windows ending at now.
func (l *Log) Stats(now time.Time) Stats {
	events := l.Events(Filter{})
	s := Stats{
		Total:      len(events),
		ByType:     make(map[Type]int),
		BySeverity: make(map[Severity]int),
	}
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	for i := range events {
		e := &events[i]
		s.ByType[e.Type]++
		s.BySeverity[e.Severity]++
		if e.Timestamp.After(day) {
			s.Last24h++
		}
		if e.Timestamp.After(week) {
			s.Last7d++
		}
	}
	return s
}
