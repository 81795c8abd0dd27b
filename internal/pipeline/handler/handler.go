package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentsync/internal/pipeline"
	"consentsync/internal/platform/config"
	"consentsync/pkg/platform/httputil"
	"consentsync/pkg/requestcontext"
)

// Service defines the pipeline operations exposed over HTTP.
type Service interface {
	Poll(ctx context.Context, req pipeline.Request) pipeline.Outcome
	Register(ctx context.Context, req pipeline.Request) pipeline.Outcome
	Process(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

// Handler wires the sync endpoints to the pipeline service. Routes expect the
// tenant middleware to have populated the request context.
type Handler struct {
	service Service
	sync    config.SyncConfig
	logger  *slog.Logger
}

// New constructs a pipeline handler.
func New(service Service, sync config.SyncConfig, logger *slog.Logger) *Handler {
	return &Handler{service: service, sync: sync, logger: logger}
}

// Register mounts the sync endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/poll-fhir-consent-history", h.HandlePoll)
	r.Post("/register-fhir-consents", h.HandleRegister)
	r.Post("/process-fhir-consents", h.HandleProcess)
}

// HandlePoll handles GET /poll-fhir-consent-history.
func (h *Handler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "poll", h.service.Poll)
}

// HandleRegister handles POST /register-fhir-consents.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "register", h.service.Register)
}

// HandleProcess handles POST /process-fhir-consents.
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "process", h.service.Process)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, pipeline.Request) pipeline.Outcome) {
	ctx := r.Context()
	start := time.Now()

	req := pipeline.Request{
		TenantID: requestcontext.TenantID(ctx),
		TestMode: requestcontext.TestMode(ctx),
		PageSize: h.sync.ClampPageSize(r.URL.Query().Get("pageSize")),
	}
	h.logger.InfoContext(ctx, "entering "+op,
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", req.TenantID,
		"test_mode", req.TestMode,
		"page_size", req.PageSize,
	)

	out := fn(ctx, req)

	h.logger.InfoContext(ctx, op+" finished",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", req.TenantID,
		"status", out.Status,
		"retryable", out.Retryable,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteStatus(w, out.Status, out.Message)
}
