package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	intakeModel "github.com/zhouzirui/z-intake/backend/internal/model/intake"
	intakeService "github.com/zhouzirui/z-intake/backend/internal/service/intake"
	"github.com/zhouzirui/z-intake/backend/pkg/utils"
)

// Coordinator 是处理器依赖的会话协调器。
type Coordinator interface {
	StartSession(ctx context.Context) (intakeModel.Session, intakeService.TurnResult)
	HandleTurn(ctx context.Context, sessionID, utterance string) (intakeService.TurnResult, error)
	Session(ctx context.Context, sessionID string) (intakeModel.Session, error)
}

// Handler 需求收集的HTTP处理器
type Handler struct {
	coordinator Coordinator
	logger      *zap.Logger
	ws          *WebSocketHandler
}

// New 创建需求收集处理器
func New(coordinator Coordinator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "intake_handler"))
	return &Handler{
		coordinator: coordinator,
		logger:      logger,
		ws:          NewWebSocketHandler(coordinator, logger),
	}
}

// RegisterRoutes 注册需求收集相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/intake", func(r chi.Router) {
		r.Post("/sessions", h.handleCreateSession)
		r.Get("/sessions/{sessionID}", h.handleGetSession)
		r.Post("/sessions/{sessionID}/turns", h.handleTurn)
		r.Get("/sessions/{sessionID}/stream", h.handleStream)
		r.Get("/ws/{sessionID}", h.ws.handleWebSocket)
	})
}

type createSessionResponse struct {
	SessionID string            `json:"sessionId"`
	Phase     intakeModel.Phase `json:"phase"`
	Prompt    string            `json:"prompt"`
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, greeting := h.coordinator.StartSession(r.Context())
	utils.RespondJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		Phase:     session.Phase,
		Prompt:    greeting.Prompt,
	})
}

// handleGetSession 查询会话状态
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.coordinator.Session(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondErrorBody(w, statusFor(err), errorBody(err, intakeService.TurnResult{}))
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

// handleTurn 处理一轮用户输入
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.coordinator.HandleTurn(r.Context(), sessionID, message)
	if err != nil {
		h.logger.Debug("turn rejected", zap.String("session_id", sessionID), zap.Error(err))
		utils.RespondErrorBody(w, statusFor(err), errorBody(err, result))
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// statusFor 将协调器错误映射为HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, intakeService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, intakeService.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, intakeService.ErrSessionTimeout):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode 与 statusFor 对应的机器可读错误码
func errorCode(err error) string {
	switch {
	case errors.Is(err, intakeService.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, intakeService.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, intakeService.ErrSessionTimeout):
		return "session_timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request_cancelled"
	default:
		return utils.StatusCode(statusFor(err))
	}
}

// errorBody 组装错误响应，会话已失败时带上失败原因
func errorBody(err error, result intakeService.TurnResult) utils.ErrorResponse {
	return utils.ErrorResponse{
		Error:         err.Error(),
		Code:          errorCode(err),
		FailureReason: result.FailureReason,
	}
}
