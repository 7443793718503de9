package intake

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketHandler 通过WebSocket进行多轮对话
type WebSocketHandler struct {
	coordinator Coordinator
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(coordinator Coordinator, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		coordinator: coordinator,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.coordinator.Session(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("websocket connected", zap.String("session_id", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, sessionID, "connected", map[string]any{"phase": session.Phase})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if msg.Type != "turn" {
			h.send(conn, sessionID, "error", map[string]string{"error": "unsupported message type"})
			continue
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			h.send(conn, sessionID, "error", map[string]string{"error": "text is required"})
			continue
		}

		result, err := h.coordinator.HandleTurn(ctx, sessionID, text)
		if err != nil {
			h.send(conn, sessionID, "error", errorBody(err, result))
			return
		}
		h.send(conn, sessionID, "prompt", result)
		if result.Done() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(result.Phase)),
				time.Now().Add(wsWriteTimeout))
			return
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, sessionID, kind string, data interface{}) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	msg := outgoingMessage{Type: kind, SessionID: sessionID, Data: data, Timestamp: time.Now().UnixMilli()}
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
