package api

import (
	"log/slog"
	"net/http"

	"viewtube/internal/auth"
	"viewtube/internal/media"
	"viewtube/internal/observability/logging"
	"viewtube/internal/storage"
)

// Handler carries the dependencies shared by every route handler.
type Handler struct {
	Store  storage.Repository
	Tokens *auth.TokenManager
	Media  media.Store
	Logger *slog.Logger
}

func NewHandler(store storage.Repository, tokens *auth.TokenManager, mediaStore media.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:  store,
		Tokens: tokens,
		Media:  mediaStore,
		Logger: logging.WithComponent(logger, "api"),
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Health reports the repository's reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		h.logger().Warn("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}
