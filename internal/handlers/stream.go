package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paideia-labs/paideia/internal/agents/models"
	"github.com/rs/zerolog/log"
)

type TimeoutConfig struct {
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
	PollPeriod time.Duration
}

var defaultTimeouts = TimeoutConfig{
	PongWait:   30 * time.Second,
	PingPeriod: 27 * time.Second, // (PongWait * 9) / 10
	WriteWait:  10 * time.Second,
	PollPeriod: 250 * time.Millisecond,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

// HandleStream streams a request's answer events over a websocket. The
// channel is replayable: buffered events are delivered first (the connected
// event seeded at acceptance included), then the handler follows the channel
// until the terminal event. A channel that has expired, whether before the
// consumer connected or mid-stream, is reported as an error terminal event,
// so the consumer never blocks indefinitely.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	tokenString := extractToken(r)
	if tokenString == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	requestID, err := h.svc.Sessions.ValidateStreamToken(tokenString)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(defaultTimeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(defaultTimeouts.PongWait))
	})

	// Reads only service pong frames; client data is ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.followAnswerChannel(r.Context(), conn, requestID)
}

func (h *Handler) writeEvent(conn *websocket.Conn, event models.AnswerEvent) error {
	conn.SetWriteDeadline(time.Now().Add(defaultTimeouts.WriteWait))
	return conn.WriteJSON(event)
}

// followAnswerChannel polls the answer channel from offset zero, forwarding
// every buffered event in emission order, then keeps following until the
// terminal event. A consumer connecting after completion still receives the
// whole sequence (replay, not push-only). The channel always holds at least
// the connected event seeded at acceptance, so a fully empty channel means
// it expired and the consumer gets an error terminal instead of waiting
// forever.
func (h *Handler) followAnswerChannel(ctx context.Context, conn *websocket.Conn, requestID string) {
	var offset int64

	poll := time.NewTicker(defaultTimeouts.PollPeriod)
	defer poll.Stop()
	ping := time.NewTicker(defaultTimeouts.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(defaultTimeouts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-poll.C:
			batch, err := h.svc.Bus.AnswerEvents(ctx, requestID, offset)
			if err != nil {
				log.Warn().Err(err).Str("request_id", requestID).Msg("Answer channel read failed")
				h.writeEvent(conn, models.NewErrorEvent("stream unavailable"))
				return
			}

			if len(batch) == 0 {
				if expired, err := h.channelExpired(ctx, requestID); err == nil && expired {
					h.writeEvent(conn, models.NewErrorEvent("stream expired"))
					return
				}
				continue
			}

			for _, event := range batch {
				if err := h.writeEvent(conn, event); err != nil {
					return
				}
				offset++
				if event.Type.IsTerminal() {
					return
				}
			}
		}
	}
}

// channelExpired reports whether the channel vanished entirely, as opposed
// to merely having no new events past the consumer's offset.
func (h *Handler) channelExpired(ctx context.Context, requestID string) (bool, error) {
	all, err := h.svc.Bus.AnswerEvents(ctx, requestID, 0)
	if err != nil {
		return false, err
	}
	return len(all) == 0, nil
}
