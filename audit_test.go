package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func collectEvents(sink *ChannelSink, want int, timeout time.Duration) []AuditEvent {
	events := make([]AuditEvent, 0, want)
	deadline := time.After(timeout)
	for len(events) < want {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	srv := newFakeInstance(t)
	srv.AddUser("alice", "pw", nil)

	sink := &countingSink{}
	engine, _ := buildTestEngine(t, srv, func(b *Builder) { b.WithAuditSink(sink) })

	_ = engine.Login(context.Background(), "/", LoginCredentials{Username: "alice", Password: "wrong"}, nil)
	engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLoginEventsCarryCorrelationAndUser(t *testing.T) {
	srv := newFakeInstance(t)
	srv.AddUser("alice", "pw", nil)

	cfg := testConfig(srv)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16

	sink := NewChannelSink(16)
	engine, _ := buildTestEngine(t, srv, func(b *Builder) {
		b.WithConfig(cfg).WithAuditSink(sink)
	})

	ctx := WithCorrelationID(context.Background(), "req-42")
	if err := engine.Login(ctx, "/", LoginCredentials{Username: "alice", Password: "pw"}, nil); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	events := collectEvents(sink, 2, 2*time.Second)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != auditEventProfileFetched || events[1].EventType != auditEventLoginSuccess {
		t.Fatalf("unexpected event order: %s, %s", events[0].EventType, events[1].EventType)
	}
	for _, ev := range events {
		if ev.CorrelationID != "req-42" {
			t.Fatalf("expected correlation id req-42, got %q", ev.CorrelationID)
		}
		if ev.Username != "alice" {
			t.Fatalf("expected username alice, got %q", ev.Username)
		}
		if !ev.Success {
			t.Fatalf("expected success for %s", ev.EventType)
		}
	}
}

func TestAuditLoginFailureErrorCode(t *testing.T) {
	srv := newFakeInstance(t)
	srv.AddUser("alice", "pw", nil)

	cfg := testConfig(srv)
	cfg.Audit.Enabled = true

	sink := NewChannelSink(4)
	engine, _ := buildTestEngine(t, srv, func(b *Builder) {
		b.WithConfig(cfg).WithAuditSink(sink)
	})

	_ = engine.Login(context.Background(), "/", LoginCredentials{Username: "alice", Password: "nope"}, nil)

	events := collectEvents(sink, 1, 2*time.Second)
	if len(events) != 1 {
		t.Fatal("expected a login failure event")
	}
	ev := events[0]
	if ev.EventType != auditEventLoginFailure || ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Error != string(auditErrCredentialRejected) {
		t.Fatalf("expected error code %q, got %q", auditErrCredentialRejected, ev.Error)
	}
	if ev.CorrelationID == "" {
		t.Fatal("expected a generated correlation id")
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditLifecycleEventsWaitEvenWhenDropIfFull(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventSessionReset})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected session_reset to wait for queue room")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected session_reset to be queued once room was available")
	}
	if dispatcher.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", dispatcher.Dropped())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Emit(ctx, AuditEvent{EventType: auditEventLogout})
	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected cancelled lifecycle emit to count as dropped, got %d", dispatcher.Dropped())
	}
}

type correlationSink struct {
	mu  sync.Mutex
	ids []string
}

func (s *correlationSink) Emit(ctx context.Context, _ AuditEvent) {
	id, _ := CorrelationIDFromContext(ctx)
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
}

func TestAuditDispatcherPassesCorrelationIDToSink(t *testing.T) {
	sink := &correlationSink{}
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventLogout, CorrelationID: "req-7"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: auditEventSessionReset})
	dispatcher.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.ids) != 2 || sink.ids[0] != "req-7" || sink.ids[1] != "" {
		t.Fatalf("unexpected sink correlation ids %q", sink.ids)
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLogout,
		Username:  "alice",
		Mode:      "oauth",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventSessionReset})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if decoded.EventType != auditEventLogout || decoded.Username != "alice" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, sink)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	if sink.Count() != 1 {
		t.Fatalf("expected queued event flushed on close, got %d", sink.Count())
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	srv := newFakeInstance(t)
	srv.AddUser("carol", "correct-password-123", nil)
	srv.SetLegacyTokens(true)

	cfg := testConfig(srv)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false

	var buf syncBuffer
	engine, _ := buildTestEngine(t, srv, func(b *Builder) {
		b.WithConfig(cfg).WithAuditSink(NewJSONWriterSink(&buf))
	})

	if err := engine.Login(context.Background(), "/", LoginCredentials{Username: "carol", Password: "correct-password-123"}, nil); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	token := engine.Snapshot().Token
	oauthLogin(t, engine, "/")
	oauth := engine.Snapshot().OAuth
	if err := engine.RefreshOAuthToken(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := engine.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	engine.Close()

	out := buf.String()
	if out == "" {
		t.Fatal("expected audit output")
	}
	for _, needle := range []string{"correct-password-123", token, oauth.ClientSecret, oauth.AccessToken, oauth.RefreshToken} {
		if needle != "" && strings.Contains(out, needle) {
			t.Fatalf("sensitive value leaked in audit output: %q", needle)
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{&ExchangeError{Op: ExchangeOpLogin, StatusCode: 400}, auditErrCredentialRejected},
		{&ExchangeError{Op: ExchangeOpLogin}, auditErrTransport},
		{ErrProfileFetchFailed, auditErrProfileFetch},
		{ErrStaleResponse, auditErrStale},
		{ErrClientNotRegistered, auditErrNotRegistered},
		{ErrNoRefreshToken, auditErrNoRefreshToken},
		{ErrLogoutTransport, auditErrLogoutTransport},
		{ErrPersistenceUnavailable, auditErrUnavailable},
		{context.Canceled, auditErrInternal},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
