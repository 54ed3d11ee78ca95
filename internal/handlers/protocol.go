package handlers

import (
	"KeeBridge/internal/metrics"
	"KeeBridge/internal/middleware"
	"KeeBridge/internal/protocol"
	"KeeBridge/internal/service"
	"bytes"
	"net/http"

	"go.uber.org/zap"
)

// MaxRequestBytes — предел размера тела запроса.
const MaxRequestBytes = 1 << 20

// ProtocolHandler принимает JSON‑запросы протокола и отдаёт ответы сервиса.
type ProtocolHandler struct {
	Service *service.Service
	Limiter *middleware.RemoteLimiter
	Metrics *metrics.Metrics
	Logger  *zap.SugaredLogger
}

// NewProtocolHandler создаёт хендлер протокола. limiter и m могут быть nil.
func NewProtocolHandler(svc *service.Service, limiter *middleware.RemoteLimiter, m *metrics.Metrics, logger *zap.SugaredLogger) *ProtocolHandler {
	return &ProtocolHandler{Service: svc, Limiter: limiter, Metrics: m, Logger: logger}
}

// Serve обрабатывает один запрос протокола.
func (h *ProtocolHandler) Serve(w http.ResponseWriter, r *http.Request) {
	req, err := protocol.DecodeRequest(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		h.Logger.Infow("Rejected malformed request", "remote", r.RemoteAddr, "error", err)
		h.observe("", http.StatusBadRequest)
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	if req.RequestType == protocol.Associate && h.Limiter != nil && !h.Limiter.Allow(r) {
		h.Logger.Warnw("Associate rate limit exceeded", "remote", r.RemoteAddr)
		if h.Metrics != nil {
			h.Metrics.RateLimited.Inc()
		}
		h.observe(req.RequestType, http.StatusTooManyRequests)
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	resp, err := h.Service.Handle(r.Context(), req)
	status := service.StatusFor(err)
	if resp == nil {
		// хранилище закрыто: статус без тела
		h.observe(req.RequestType, status)
		w.WriteHeader(status)
		return
	}

	var buf bytes.Buffer
	if err := protocol.EncodeResponse(&buf, resp); err != nil {
		h.Logger.Errorw("Failed to encode response", "command", req.RequestType, "error", err)
		h.observe(req.RequestType, http.StatusInternalServerError)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.observe(req.RequestType, status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *ProtocolHandler) observe(command string, status int) {
	if h.Metrics == nil {
		return
	}
	if command == "" {
		command = "invalid"
	}
	h.Metrics.ObserveRequest(command, status)
}
