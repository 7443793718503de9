package utils

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrorResponse 统一的错误响应体
type ErrorResponse struct {
	Error string `json:"error"`
	// Code 是稳定的机器可读错误码
	Code string `json:"code"`
	// FailureReason 仅在会话已失败时出现
	FailureReason string `json:"failureReason,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// RespondError 发送错误响应，错误码由状态码推出
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondErrorBody(w, status, ErrorResponse{Error: message})
}

// RespondErrorBody 发送完整的错误响应体，Code 为空时按状态码补齐
func RespondErrorBody(w http.ResponseWriter, status int, body ErrorResponse) {
	if body.Code == "" {
		body.Code = StatusCode(status)
	}
	RespondJSON(w, status, body)
}

// StatusCode 把HTTP状态码转成 snake_case 错误码，如 404 -> not_found
func StatusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
