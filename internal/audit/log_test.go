package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type memStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	failSet bool
}

func newMemStore() *memStore { return &memStore{values: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("disk full")
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLogFillsIDTimestampSeverity(t *testing.T) {
	l := NewLog(context.Background(), Options{Now: (&stepClock{now: base}).Now})
	e := l.LoginFailure(context.Background(), Subject{UserID: "7"}, map[string]string{"code": "INVALID_CREDENTIALS"})

	if !strings.HasPrefix(e.ID, "audit_") || strings.Count(e.ID, "_") != 2 {
		t.Fatalf("unexpected id %q", e.ID)
	}
	if !e.Timestamp.Equal(base.Add(time.Second)) {
		t.Fatalf("timestamp = %v", e.Timestamp)
	}
	if e.Severity != SeverityWarning {
		t.Fatalf("severity = %s", e.Severity)
	}
	if e.Details["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("details = %v", e.Details)
	}
}

func TestLogCopiesDetails(t *testing.T) {
	l := NewLog(context.Background(), Options{})
	details := map[string]string{"k": "v"}
	l.Logout(context.Background(), Subject{}, details)
	details["k"] = "changed"

	got := l.Events(Filter{})[0]
	if got.Details["k"] != "v" {
		t.Fatalf("logged event aliased caller map: %v", got.Details)
	}
	got.Details["k"] = "mutated"
	if l.Events(Filter{})[0].Details["k"] != "v" {
		t.Fatal("Events returned a shared map")
	}
}

func TestLogEvictsOldest(t *testing.T) {
	l := NewLog(context.Background(), Options{Capacity: 3, Now: (&stepClock{now: base}).Now})
	for i := 0; i < 5; i++ {
		l.Log(context.Background(), Event{Type: TypeLogout, Details: map[string]string{"n": string(rune('a' + i))}})
	}
	events := l.Events(Filter{})
	if len(events) != 3 {
		t.Fatalf("len = %d, want 3", len(events))
	}
	want := []string{"e", "d", "c"}
	for i, e := range events {
		if e.Details["n"] != want[i] {
			t.Fatalf("event %d = %s, want %s (newest first)", i, e.Details["n"], want[i])
		}
	}
}

func TestEventsFilterAllMustMatch(t *testing.T) {
	clock := &stepClock{now: base}
	l := NewLog(context.Background(), Options{Now: clock.Now})
	ctx := context.Background()

	l.LoginFailure(ctx, Subject{UserID: "a"}, nil)  // t+1
	l.LoginFailure(ctx, Subject{UserID: "b"}, nil)  // t+2
	l.LoginSuccess(ctx, Subject{UserID: "a"}, nil)  // t+3
	l.AccountLocked(ctx, Subject{UserID: "a"}, nil) // t+4
	l.LoginFailure(ctx, Subject{UserID: "a"}, nil)  // t+5

	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{name: "all", f: Filter{}, want: 5},
		{name: "user", f: Filter{UserID: "a"}, want: 4},
		{name: "user and type", f: Filter{UserID: "a", Type: TypeLoginFailure}, want: 2},
		{name: "type and severity mismatch", f: Filter{Type: TypeLoginFailure, Severity: SeverityError}, want: 0},
		{name: "severity", f: Filter{Severity: SeverityError}, want: 1},
		{name: "window", f: Filter{Since: base.Add(2 * time.Second), Until: base.Add(4 * time.Second)}, want: 3},
		{name: "limit", f: Filter{UserID: "a", Limit: 2}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.Events(tt.f)
			if len(got) != tt.want {
				t.Fatalf("got %d events, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp.After(got[i-1].Timestamp) {
					t.Fatal("events not newest first")
				}
			}
		})
	}

	limited := l.Events(Filter{UserID: "a", Limit: 2})
	if limited[0].Type != TypeLoginFailure || limited[1].Type != TypeAccountLocked {
		t.Fatalf("limit kept the wrong events: %v, %v", limited[0].Type, limited[1].Type)
	}
}

func TestStatsWindows(t *testing.T) {
	now := base
	clockTimes := []time.Time{
		now.Add(-8 * 24 * time.Hour),
		now.Add(-3 * 24 * time.Hour),
		now.Add(-2 * time.Hour),
		now.Add(-time.Minute),
	}
	l := NewLog(context.Background(), Options{})
	for i, ts := range clockTimes {
		typ := TypeLoginSuccess
		if i%2 == 1 {
			typ = TypeLoginFailure
		}
		l.Log(context.Background(), Event{Type: typ, Timestamp: ts})
	}

	s := l.Stats(now)
	if s.Total != 4 || s.Last24h != 2 || s.Last7d != 3 {
		t.Fatalf("stats = %+v", s)
	}
	if s.ByType[TypeLoginSuccess] != 2 || s.ByType[TypeLoginFailure] != 2 {
		t.Fatalf("by type = %v", s.ByType)
	}
	if s.BySeverity[SeverityInfo] != 2 || s.BySeverity[SeverityWarning] != 2 {
		t.Fatalf("by severity = %v", s.BySeverity)
	}
}

func TestLogPersistsNewestAndRestores(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	opts := Options{Capacity: 10, PersistCapacity: 4, Store: store, Key: "auth_audit_log", Now: (&stepClock{now: base}).Now}

	l := NewLog(ctx, opts)
	for i := 0; i < 6; i++ {
		l.SessionExpired(ctx, Subject{SessionID: "s"}, map[string]string{"i": string(rune('0' + i))})
	}

	var persisted []Event
	if err := json.Unmarshal(store.values["auth_audit_log"], &persisted); err != nil {
		t.Fatalf("persisted data: %v", err)
	}
	if len(persisted) != 4 || persisted[0].Details["i"] != "2" || persisted[3].Details["i"] != "5" {
		t.Fatalf("persisted the wrong tail: %+v", persisted)
	}

	restored := NewLog(ctx, opts)
	if restored.Len() != 4 {
		t.Fatalf("restored %d events, want 4", restored.Len())
	}
	if restored.Events(Filter{Limit: 1})[0].Details["i"] != "5" {
		t.Fatal("restored log lost ordering")
	}

	if err := restored.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := store.values["auth_audit_log"]; ok {
		t.Fatal("Clear left the persisted copy")
	}
}

func TestLogFallsBackToMemoryOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failSet = true
	l := NewLog(ctx, Options{Store: store, Key: "k"})

	l.Logout(ctx, Subject{UserID: "7"}, nil)
	if l.Len() != 1 {
		t.Fatal("event lost when persistence failed")
	}
	if l.PersistFailures() != 1 {
		t.Fatalf("persist failures = %d", l.PersistFailures())
	}
}

func TestLogDiscardsUnreadablePersistedData(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.values["k"] = []byte("{garbage")
	l := NewLog(ctx, Options{Store: store, Key: "k"})
	if l.Len() != 0 {
		t.Fatal("expected empty log")
	}
	if _, ok := store.values["k"]; ok {
		t.Fatal("unreadable data was not removed")
	}
}

func TestLogClientMetadata(t *testing.T) {
	l := NewLog(context.Background(), Options{
		Metadata: func(context.Context) (string, string) { return "Mozilla/5.0", "203.0.113.9" },
	})
	e := l.LoginSuccess(context.Background(), Subject{UserID: "7"}, nil)
	if e.UserAgent != "Mozilla/5.0" || e.IP != "203.0.113.9" {
		t.Fatalf("metadata not applied: %+v", e)
	}
}

func TestLogForwardsToDispatcher(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(DispatchConfig{BufferSize: 4}, sink)
	l := NewLog(context.Background(), Options{Dispatcher: d})

	l.SecurityViolation(context.Background(), Subject{}, map[string]string{"reason": "rate_limited"})
	d.Close()

	select {
	case e := <-sink.Events():
		if e.Type != TypeSecurityViolation || e.Severity != SeverityCritical {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatal("dispatcher did not deliver the event")
	}
	if d.Emitted() != 1 {
		t.Fatalf("emitted = %d", d.Emitted())
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(DispatchConfig{BufferSize: 1, DropIfFull: true}, blockingSink{block})

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{Type: TypeLogout})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink")
	}
	close(block)
	d.Close()
	d.Emit(context.Background(), Event{Type: TypeLogout})
}

type blockingSink struct{ ch chan struct{} }

func (b blockingSink) Emit(context.Context, Event) { <-b.ch }

func TestNilDispatcherIsInert(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 || NewDispatcher(DispatchConfig{}, nil) != nil {
		t.Fatal("nil dispatcher misbehaved")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{ID: "audit_1_a", Type: TypeLogout, Severity: SeverityInfo})
	s.Emit(context.Background(), Event{ID: "audit_2_b", Type: TypeLogout, Severity: SeverityInfo})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil || e.ID != "audit_2_b" {
		t.Fatalf("line 2 = %q (%v)", lines[1], err)
	}
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSinkKeysByUser(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSinkWithWriter(w, nil)
	s.Emit(context.Background(), Event{ID: "audit_1_a", Type: TypeLoginSuccess, UserID: "7", Severity: SeverityInfo})
	s.Emit(context.Background(), Event{ID: "audit_2_b", Type: TypeSecurityViolation, Severity: SeverityCritical})

	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "7" || w.msgs[1].Key != nil {
		t.Fatalf("keys = %q, %q", w.msgs[0].Key, w.msgs[1].Key)
	}
	if string(w.msgs[1].Headers[0].Value) != string(TypeSecurityViolation) {
		t.Fatalf("type header = %q", w.msgs[1].Headers[0].Value)
	}
	var e Event
	if err := json.Unmarshal(w.msgs[0].Value, &e); err != nil || e.ID != "audit_1_a" {
		t.Fatalf("payload = %s (%v)", w.msgs[0].Value, err)
	}

	w.err = errors.New("broker down")
	s.Emit(context.Background(), Event{ID: "audit_3_c"})
}

func TestNewKafkaSinkRequiresBrokersAndTopic(t *testing.T) {
	if NewKafkaSink(nil, "audit", nil) != nil || NewKafkaSink([]string{"localhost:9092"}, "", nil) != nil {
		t.Fatal("expected nil sink without brokers or topic")
	}
	s := NewKafkaSink([]string{"localhost:9092"}, "audit", nil)
	if s == nil {
		t.Fatal("expected sink")
	}
	_ = s.Close()
}
