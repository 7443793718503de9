package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	intakeHandler "github.com/zhouzirui/z-intake/backend/internal/handler/intake"
	middlewarePkg "github.com/zhouzirui/z-intake/backend/internal/middleware"
	"github.com/zhouzirui/z-intake/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the intake coordinator.
func NewRouter(coordinator intakeHandler.Coordinator, allowedOrigins []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.With(zap.String("component", "http"))))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	intake := intakeHandler.New(coordinator, logger)
	r.Route("/api", func(api chi.Router) {
		intake.RegisterRoutes(api)
	})

	return r
}
