package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/paideia-labs/paideia/internal/config"
	redisinfra "github.com/paideia-labs/paideia/internal/infrastructure/redis"
	"github.com/paideia-labs/paideia/internal/services"
	"github.com/paideia-labs/paideia/internal/services/events"
	"github.com/paideia-labs/paideia/internal/services/session"
)

type streamFixture struct {
	handler *Handler
	bus     *events.Service
	store   *redisinfra.Memory
	server  *httptest.Server
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()
	store := redisinfra.NewMemory()
	bus := events.NewService(store, time.Minute, time.Hour)
	sessions := session.NewService(store, time.Hour)

	h := NewHandler(&services.Services{Store: store, Bus: bus, Sessions: sessions})
	server := httptest.NewServer(http.HandlerFunc(h.HandleStream))
	t.Cleanup(server.Close)

	return &streamFixture{handler: h, bus: bus, store: store, server: server}
}

func (f *streamFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func TestStreamReplaysBufferedEvents(t *testing.T) {
	restore := config.SetJWTSecret([]byte("stream-test-secret"))
	defer restore()

	f := newStreamFixture(t)
	ctx := context.Background()

	// The full channel exists before the consumer connects; replay must
	// deliver the whole sequence, terminal included.
	f.bus.PublishConnected(ctx, "r1")
	f.bus.PublishChunk(ctx, "r1", "first ")
	f.bus.PublishChunk(ctx, "r1", "second")
	f.bus.PublishComplete(ctx, "r1")

	token, err := f.handler.svc.Sessions.CreateStreamToken("r1", time.Hour)
	if err != nil {
		t.Fatalf("CreateStreamToken returned error: %v", err)
	}
	conn := f.dial(t, token)

	var got []models.AnswerEvent
	for {
		var event models.AnswerEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("ReadJSON returned error after %d events: %v", len(got), err)
		}
		got = append(got, event)
		if event.Type.IsTerminal() {
			break
		}
	}

	if len(got) != 4 {
		t.Fatalf("Got %d events, want 4", len(got))
	}
	if got[0].Type != models.AnswerConnected {
		t.Errorf("First event: got %s, want connected", got[0].Type)
	}
	if got[1].Content+got[2].Content != "first second" {
		t.Errorf("Got chunks %q + %q", got[1].Content, got[2].Content)
	}
	if got[3].Type != models.AnswerComplete {
		t.Errorf("Terminal event: got %s, want complete", got[3].Type)
	}
}

func TestStreamExpiredChannelGetsErrorTerminal(t *testing.T) {
	restore := config.SetJWTSecret([]byte("stream-test-secret"))
	defer restore()

	f := newStreamFixture(t)
	ctx := context.Background()

	// The turn ran to completion, then the channel's TTL elapsed before the
	// consumer connected. The consumer must get an error terminal promptly
	// instead of polling forever.
	f.bus.PublishConnected(ctx, "r1")
	f.bus.PublishChunk(ctx, "r1", "answer")
	f.bus.PublishComplete(ctx, "r1")
	f.store.ExpireNow("answer_events:r1")

	token, err := f.handler.svc.Sessions.CreateStreamToken("r1", time.Hour)
	if err != nil {
		t.Fatalf("CreateStreamToken returned error: %v", err)
	}
	conn := f.dial(t, token)

	var event models.AnswerEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON returned error, want an error terminal: %v", err)
	}
	if event.Type != models.AnswerError {
		t.Errorf("Got event type %s, want error", event.Type)
	}
}

func TestStreamRejectsMissingToken(t *testing.T) {
	f := newStreamFixture(t)

	resp, err := http.Get(f.server.URL)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Got status %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}
