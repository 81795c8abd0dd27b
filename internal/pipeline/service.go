// Package pipeline runs the consent sync: the poll phase stages history
// changes and advances the cursor, the register phase transforms staged
// changes and submits them downstream.
//
// Ordering: records are staged before the cursor moves, and a record is
// removed only after the downstream service confirmed it. A crash in between
// repeats work; it never skips a change.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"consentsync/internal/audit"
	"consentsync/internal/pipeline/metrics"
	"consentsync/internal/pipeline/ports"
	"consentsync/internal/staging"
	"consentsync/pkg/requestcontext"
)

const tracerName = "consentsync/internal/pipeline"

// Config holds the pipeline policies.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	EmptyPage       EmptyPagePolicy
	Batch           BatchPolicy
}

// Request identifies one pipeline run.
type Request struct {
	TenantID string
	TestMode bool
	PageSize int
}

// Service orchestrates the poll and register phases for one tenant at a time.
// It holds no per-tenant state; concurrent runs for different tenants are
// independent.
type Service struct {
	store    staging.Store
	fhir     ports.FHIRPort
	registry ports.RegistryPort
	namer    staging.Namer
	cfg      Config
	audit    audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithAudit(p audit.Publisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New wires a Service. Audit defaults to a no-op publisher and the logger to
// slog.Default.
func New(store staging.Store, fhir ports.FHIRPort, registry ports.RegistryPort, namer staging.Namer, cfg Config, opts ...Option) *Service {
	if cfg.DefaultPageSize < 1 {
		cfg.DefaultPageSize = 100
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if cfg.EmptyPage == "" {
		cfg.EmptyPage = EmptyNotFound
	}
	if cfg.Batch == "" {
		cfg.Batch = BatchHalt
	}
	s := &Service{
		store:    store,
		fhir:     fhir,
		registry: registry,
		namer:    namer,
		cfg:      cfg,
		audit:    audit.Nop{},
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process runs Poll and, when it succeeded, Register.
func (s *Service) Process(ctx context.Context, req Request) Outcome {
	ctx, span := s.startSpan(ctx, "pipeline.Process", req)
	defer span.End()

	poll := s.Poll(ctx, req)
	if !poll.OK() {
		endSpan(span, poll)
		return poll
	}
	out := s.Register(ctx, req)
	endSpan(span, out)
	return out
}

func (s *Service) partition(req Request) staging.Partition {
	return s.namer.Partition(req.TenantID, req.TestMode)
}

func (s *Service) pageSize(n int) int {
	if n < 1 || n > s.cfg.MaxPageSize {
		return s.cfg.DefaultPageSize
	}
	return n
}

func (s *Service) empty(msgPass string) Outcome {
	if s.cfg.EmptyPage == EmptyPass {
		return success(msgPass)
	}
	return Outcome{Status: http.StatusNotFound, Message: msgNotFound}
}

func (s *Service) publish(ctx context.Context, e audit.Event) {
	e.TransactionID = requestcontext.TransactionID(ctx)
	e.Timestamp = requestcontext.Now(ctx)
	if err := s.audit.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "failed to publish pipeline event",
			"event_type", string(e.Type),
			"tenant_id", e.TenantID,
			"error", err.Error(),
		)
	}
}

func (s *Service) logAttrs(ctx context.Context, tenantID string) []any {
	return []any{
		"tenant_id", tenantID,
		"request_id", requestcontext.RequestID(ctx),
		"transaction_id", requestcontext.TransactionID(ctx),
	}
}

func (s *Service) startSpan(ctx context.Context, name string, req Request) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.Bool("tenant.test_mode", req.TestMode),
	))
}

func endSpan(span trace.Span, out Outcome) {
	span.SetAttributes(attribute.Int("outcome.status", out.Status))
	if out.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, out.Message)
	}
}
