package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"campus/internal/metrics"
	"campus/pkg/interfaces"
	"campus/pkg/types"
)

var upgrader = websocket.Upgrader{
	// Browsers load the client from the same server or a dev server on
	// another port; origin is not checked.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Options tune per-connection behavior.
type Options struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	BufferSize      int
	MaxMessageBytes int64
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		BufferSize:      256,
		MaxMessageBytes: 128 * 1024,
	}
}

// Handler upgrades requests to event channels and pumps inbound frames to
// the dispatcher.
type Handler struct {
	registry   *Registry
	dispatcher interfaces.Dispatcher
	opts       Options
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewHandler wires the transport to a dispatcher. m may be nil.
func NewHandler(registry *Registry, dispatcher interfaces.Dispatcher, opts Options, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		opts:       opts,
		metrics:    m,
		log:        log.With().Str("component", "websocket").Logger(),
	}
}

// HandleWebSocket serves GET /ws.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	wsConn := NewConnection(uuid.NewString(), conn, h.opts.BufferSize, h.opts.WriteWait)
	if err := h.registry.RegisterConnection(wsConn); err != nil {
		h.log.Error().Err(err).Msg("failed to register connection")
		_ = wsConn.Close()
		return
	}
	h.metrics.ConnectionOpened()
	h.log.Info().Str("conn", wsConn.ID()).Str("remote", r.RemoteAddr).Msg("connected")

	if err := wsConn.WriteJSON(outbound(types.EventConnected, types.ConnectedPayload{ID: wsConn.ID()})); err != nil {
		h.log.Warn().Err(err).Str("conn", wsConn.ID()).Msg("failed to send connection id")
	}

	go h.handleConnection(wsConn)
}

// outbound is the encoded-on-write form of an Envelope.
type outboundEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func outbound(event string, data interface{}) outboundEnvelope {
	return outboundEnvelope{Event: event, Data: data}
}

// handleConnection runs the read pump until the client goes away, then
// hands the connection to the dispatcher for cleanup.
func (h *Handler) handleConnection(conn *Connection) {
	id := conn.ID()
	defer func() {
		if err := h.dispatcher.Disconnect(context.Background(), id); err != nil {
			// Dispatcher is gone; drop the entry ourselves.
			h.registry.UnregisterConnection(id)
		}
		_ = conn.Close()
		h.metrics.ConnectionClosed()
		h.log.Info().Str("conn", id).Msg("disconnected")
	}()

	ws := conn.conn
	ws.SetReadLimit(h.opts.MaxMessageBytes)
	if err := ws.SetReadDeadline(time.Now().Add(h.opts.PongWait)); err != nil {
		h.log.Warn().Err(err).Str("conn", id).Msg("failed to set read deadline")
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Warn().Err(err).Str("conn", id).Msg("read failed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			h.metrics.EventRejected("malformed")
			h.replyError(conn, "", "malformed envelope")
			continue
		}

		if err := h.dispatcher.Dispatch(conn.ctx, id, &env); err != nil {
			if errors.Is(err, interfaces.ErrDispatcherStopped) || errors.Is(err, context.Canceled) {
				return
			}
			h.log.Warn().Err(err).Str("conn", id).Str("event", env.Event).Msg("dispatch failed")
		}
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteWait)); err != nil {
				return
			}
		case <-conn.Done():
			return
		}
	}
}

func (h *Handler) replyError(conn *Connection, event, message string) {
	if err := conn.WriteJSON(outbound(types.EventError, types.ErrorPayload{Event: event, Message: message})); err != nil {
		h.log.Debug().Err(err).Str("conn", conn.ID()).Msg("failed to send error")
	}
}
