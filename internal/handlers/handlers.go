package handlers

import (
	"KeeBridge/internal/metrics"
	"KeeBridge/internal/middleware"
	"KeeBridge/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	svc *service.Service,
	limiter *middleware.RemoteLimiter,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
) *Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.WithLoopbackOnly)
	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)

	protocolHandler := NewProtocolHandler(svc, limiter, m, logger)

	// Protocol endpoint: все команды приходят POST на корень
	r.With(chimiddleware.AllowContentType("application/json")).Post("/", protocolHandler.Serve)

	if m != nil {
		r.Method("GET", "/metrics", m.Handler())
	}

	return &Handler{Router: r}
}
