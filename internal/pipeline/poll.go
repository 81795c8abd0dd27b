package pipeline

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"consentsync/internal/audit"
	"consentsync/internal/staging"
)

// PollResult describes one committed poll cycle.
type PollResult struct {
	Staged int
	// Cursor is the marker committed for the next cycle.
	Cursor int64
}

// Poll fetches one history page for the tenant, stages its consent changes
// and advances the cursor. A failed poll leaves the cursor where it was.
func (s *Service) Poll(ctx context.Context, req Request) Outcome {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "pipeline.Poll", req)
	defer span.End()

	if req.TenantID == "" {
		return Outcome{Status: http.StatusBadRequest, Message: msgTenantRequired}
	}

	part := s.partition(req)
	res, err := s.PollOnce(ctx, req.TenantID, part, s.pageSize(req.PageSize))
	s.metrics.ObservePhase("poll", time.Since(start))
	if err != nil {
		span.RecordError(err)
		s.metrics.IncrementPoll("failed")
		out := failure(err, msgPollFailed)
		s.logger.ErrorContext(ctx, "poll failed", append(s.logAttrs(ctx, req.TenantID),
			"partition", part.Name,
			"status", out.Status,
			"error", err.Error(),
		)...)
		s.publish(ctx, audit.Event{
			Type:      audit.PollFailed,
			TenantID:  req.TenantID,
			Partition: part.Name,
			Status:    out.Status,
			Message:   out.Message,
		})
		endSpan(span, out)
		return out
	}

	span.SetAttributes(attribute.Int("poll.staged", res.Staged), attribute.Int64("poll.cursor", res.Cursor))
	s.metrics.SetCursor(req.TenantID, res.Cursor)
	s.metrics.AddStaged(res.Staged)
	cursor := res.Cursor
	s.publish(ctx, audit.Event{
		Type:      audit.PollCompleted,
		TenantID:  req.TenantID,
		Partition: part.Name,
		Cursor:    &cursor,
		Staged:    res.Staged,
	})
	s.logger.InfoContext(ctx, "poll completed", append(s.logAttrs(ctx, req.TenantID),
		"partition", part.Name,
		"staged", res.Staged,
		"cursor", res.Cursor,
	)...)

	var out Outcome
	if res.Staged == 0 {
		s.metrics.IncrementPoll("empty")
		out = s.empty(msgPollNoChanges)
	} else {
		s.metrics.IncrementPoll("staged")
		out = success(msgPollSucceeded)
	}
	endSpan(span, out)
	return out
}

// PollOnce runs one poll cycle: read cursor, fetch a page, stage its changes,
// then advance the cursor to the page's next marker. The cursor also advances
// past an empty page so an idle tenant does not refetch the same window.
func (s *Service) PollOnce(ctx context.Context, tenantID string, part staging.Partition, pageSize int) (PollResult, error) {
	if err := s.store.EnsurePartition(ctx, part); err != nil {
		return PollResult{}, storeError(err, "failed to prepare staging partition")
	}

	cursor, hasCursor, err := s.store.GetCursor(ctx, part)
	if err != nil {
		return PollResult{}, storeError(err, "failed to read history cursor")
	}

	page, err := s.fhir.History(ctx, tenantID, cursor, hasCursor, pageSize)
	if err != nil {
		return PollResult{}, err
	}

	records := make([]staging.ChangeRecord, 0, len(page.Changes))
	for _, c := range page.Changes {
		records = append(records, staging.ChangeRecord{
			ID:              part.RecordID(c.ResourceID, c.Version),
			ResourceID:      c.ResourceID,
			ResourceVersion: c.Version,
			Method:          c.Method,
			LastModified:    c.LastModified,
		})
	}
	if len(records) > 0 {
		if err := s.store.StageChanges(ctx, part, records); err != nil {
			return PollResult{}, storeError(err, "failed to stage FHIR consent resource IDs")
		}
	}

	if err := s.store.AdvanceCursor(ctx, part, page.NextCursor); err != nil {
		return PollResult{}, storeError(err, "failed to advance history cursor")
	}
	return PollResult{Staged: len(records), Cursor: page.NextCursor}, nil
}
