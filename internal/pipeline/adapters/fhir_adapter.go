package adapters

import (
	"context"
	"encoding/json"

	"consentsync/internal/fhir"
	"consentsync/internal/pipeline/ports"
)

// FHIRAdapter implements ports.FHIRPort over the FHIR HTTP client.
type FHIRAdapter struct {
	client *fhir.Client
}

func NewFHIRAdapter(client *fhir.Client) ports.FHIRPort {
	return &FHIRAdapter{client: client}
}

func (a *FHIRAdapter) History(ctx context.Context, tenantID string, cursor int64, hasCursor bool, pageSize int) (*ports.HistoryPage, error) {
	page, err := a.client.History(ctx, tenantID, cursor, hasCursor, pageSize)
	if err != nil {
		return nil, err
	}
	out := &ports.HistoryPage{
		NextCursor: page.NextCursor,
		Changes:    make([]ports.Change, 0, len(page.Entries)),
	}
	for _, e := range page.Entries {
		out.Changes = append(out.Changes, ports.Change{
			ResourceID:   e.ResourceID,
			Version:      e.Version,
			Method:       e.Method,
			LastModified: e.LastModified,
		})
	}
	return out, nil
}

func (a *FHIRAdapter) Consent(ctx context.Context, tenantID, resourceID, version string) (json.RawMessage, error) {
	return a.client.Consent(ctx, tenantID, resourceID, version)
}
