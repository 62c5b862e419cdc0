package report

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quotedesk/quotedesk/internal/platform/httpx"
)

const healthTimeout = 3 * time.Second

// Pinger is satisfied by the Gotenberg client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler reports whether quotation PDFs can currently be rendered.
type Handler struct {
	client Pinger
	logger *slog.Logger
}

func NewHandler(client Pinger, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes mounts GET /pdf/health.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pdf/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	start := time.Now()
	if err := h.client.Ping(ctx); err != nil {
		h.logger.Warn("pdf renderer unreachable", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Renderer Unavailable", "quotation PDFs cannot be rendered right now")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"latency_ms": time.Since(start).Milliseconds(),
	})
}
