package intake

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-intake/backend/pkg/utils"
)

// handleStream 以SSE形式返回一轮处理结果：每次阶段变化一个 phase 事件，最后一个 prompt 事件。
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.coordinator.HandleTurn(r.Context(), sessionID, message)
	if err != nil {
		utils.RespondErrorBody(w, statusFor(err), errorBody(err, result))
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	for _, tr := range result.Transitions {
		if err := utils.SendSSEEvent(w, flusher, "phase", tr); err != nil {
			h.logger.Debug("sse write failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
	if err := utils.SendSSEEvent(w, flusher, "prompt", result); err != nil {
		h.logger.Debug("sse write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
