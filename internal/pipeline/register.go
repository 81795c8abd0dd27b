package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consentsync/internal/audit"
	"consentsync/internal/staging"
	"consentsync/internal/transform"
	dErrors "consentsync/pkg/domain-errors"
)

// Failure is one record that could not be registered.
type Failure struct {
	Index    int
	RecordID string
	Err      error
}

// BatchResult is the fold over a pending list. Under BatchHalt at most one
// failure is recorded and the records after it are not attempted.
type BatchResult struct {
	Total      int
	Registered []string
	Failures   []Failure
}

// FirstFailure returns the earliest failing record.
func (r BatchResult) FirstFailure() (Failure, bool) {
	if len(r.Failures) == 0 {
		return Failure{}, false
	}
	return r.Failures[0], true
}

// Skipped counts records that were never attempted.
func (r BatchResult) Skipped() int {
	return r.Total - len(r.Registered) - len(r.Failures)
}

// Register transforms every staged change of the tenant and submits it
// downstream, in the order the store lists them.
func (s *Service) Register(ctx context.Context, req Request) Outcome {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "pipeline.Register", req)
	defer span.End()

	if req.TenantID == "" {
		return Outcome{Status: http.StatusBadRequest, Message: msgTenantRequired}
	}

	part := s.partition(req)
	pending, err := s.store.ListPending(ctx, part)
	if err != nil {
		span.RecordError(err)
		out := failure(storeError(err, msgListFailed), msgListFailed)
		s.logger.ErrorContext(ctx, "list pending failed", append(s.logAttrs(ctx, req.TenantID),
			"partition", part.Name,
			"error", err.Error(),
		)...)
		endSpan(span, out)
		return out
	}
	if len(pending) == 0 {
		s.logger.InfoContext(ctx, "no staged consents to register", append(s.logAttrs(ctx, req.TenantID), "partition", part.Name)...)
		out := s.empty(msgNoPending)
		endSpan(span, out)
		return out
	}

	res := s.RegisterAll(ctx, req.TenantID, part, pending)
	s.metrics.ObservePhase("register", time.Since(start))
	span.SetAttributes(
		attribute.Int("register.total", res.Total),
		attribute.Int("register.registered", len(res.Registered)),
		attribute.Int("register.failed", len(res.Failures)),
	)
	s.logger.InfoContext(ctx, "register completed", append(s.logAttrs(ctx, req.TenantID),
		"partition", part.Name,
		"total", res.Total,
		"registered", len(res.Registered),
		"failed", len(res.Failures),
		"skipped", res.Skipped(),
	)...)

	first, failed := res.FirstFailure()
	if !failed {
		out := created(msgRegisterSucceeded)
		endSpan(span, out)
		return out
	}
	span.RecordError(first.Err)
	out := failure(first.Err, msgRegisterFailed)
	if s.cfg.Batch == BatchContinue {
		out.Message = fmt.Sprintf("%d of %d consents failed to register; first failure: %s",
			len(res.Failures), res.Total, out.Message)
	}
	endSpan(span, out)
	return out
}

// RegisterAll folds processOne over pending. Under BatchHalt the fold stops
// at the first failure; under BatchContinue every record is attempted.
func (s *Service) RegisterAll(ctx context.Context, tenantID string, part staging.Partition, pending []staging.ChangeRecord) BatchResult {
	res := BatchResult{Total: len(pending)}
	for i, rec := range pending {
		if err := s.processOne(ctx, tenantID, part, rec); err != nil {
			res.Failures = append(res.Failures, Failure{Index: i, RecordID: rec.ID, Err: err})
			if s.cfg.Batch == BatchHalt {
				break
			}
			continue
		}
		res.Registered = append(res.Registered, rec.ID)
	}
	return res
}

// processOne registers a single staged change and removes it once the
// downstream service confirmed it. The record stays staged on any failure.
func (s *Service) processOne(ctx context.Context, tenantID string, part staging.Partition, rec staging.ChangeRecord) error {
	ctx, span := s.tracer.Start(ctx, "pipeline.processOne", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("fhir.resource_id", rec.ResourceID),
		attribute.String("fhir.version", rec.ResourceVersion),
		attribute.String("fhir.method", rec.Method),
	))
	defer span.End()

	registered, err := s.registerRecord(ctx, tenantID, part, rec)
	if registered && err != nil {
		span.RecordError(err)
		s.metrics.IncrementRegistration("remove_failed")
		out := failure(err, msgRemoveFailed)
		s.logger.ErrorContext(ctx, "consent registered but staged record not removed", append(s.logAttrs(ctx, tenantID),
			"record_id", rec.ID,
			"resource_id", rec.ResourceID,
			"resource_version", rec.ResourceVersion,
			"error", err.Error(),
		)...)
		s.publish(ctx, audit.Event{
			Type:       audit.ConsentRemoveFailed,
			TenantID:   tenantID,
			Partition:  part.Name,
			ResourceID: rec.ResourceID,
			Version:    rec.ResourceVersion,
			Status:     out.Status,
			Message:    out.Message,
		})
		return err
	}
	if err != nil {
		span.RecordError(err)
		s.metrics.IncrementRegistration("failed")
		out := failure(err, msgRegisterFailed)
		s.logger.WarnContext(ctx, "consent registration failed", append(s.logAttrs(ctx, tenantID),
			"record_id", rec.ID,
			"resource_id", rec.ResourceID,
			"resource_version", rec.ResourceVersion,
			"status", out.Status,
			"error", err.Error(),
		)...)
		s.publish(ctx, audit.Event{
			Type:       audit.ConsentRegisterFailed,
			TenantID:   tenantID,
			Partition:  part.Name,
			ResourceID: rec.ResourceID,
			Version:    rec.ResourceVersion,
			Status:     out.Status,
			Message:    out.Message,
		})
		return err
	}

	s.metrics.IncrementRegistration("registered")
	s.publish(ctx, audit.Event{
		Type:       audit.ConsentRegistered,
		TenantID:   tenantID,
		Partition:  part.Name,
		ResourceID: rec.ResourceID,
		Version:    rec.ResourceVersion,
	})
	return nil
}

// registerRecord reports registered once the downstream service accepted the
// record, so a later error can only come from removing it.
func (s *Service) registerRecord(ctx context.Context, tenantID string, part staging.Partition, rec staging.ChangeRecord) (bool, error) {
	version, err := rec.TargetVersion()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInvalidData, "staged record "+rec.ID+" has no resolvable version")
	}

	doc, err := s.fhir.Consent(ctx, tenantID, rec.ResourceID, version)
	if err != nil {
		return false, err
	}

	record, err := transform.Transform(doc, rec.IsDelete(), transform.Overrides{transform.FieldTenantID: tenantID})
	if err != nil {
		return false, err
	}
	if err := transform.Validate(record); err != nil {
		return false, err
	}

	if err := s.registry.Register(ctx, record); err != nil {
		return false, err
	}

	// A failed removal means the record is sent again on the next run.
	if err := s.store.Remove(ctx, part, rec.ID); err != nil {
		return true, storeError(err, msgRemoveFailed)
	}
	return true, nil
}
