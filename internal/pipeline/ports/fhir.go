package ports

import (
	"context"
	"encoding/json"
)

//go:generate mockgen -source=fhir.go -destination=../mocks/fhir_mock.go -package=mocks FHIRPort

// FHIRPort reads change history and resource versions from a tenant's FHIR
// server without tying the pipeline to the HTTP client.
type FHIRPort interface {
	// History fetches one page. hasCursor false starts at the beginning of history.
	History(ctx context.Context, tenantID string, cursor int64, hasCursor bool, pageSize int) (*HistoryPage, error)
	// Consent fetches the full resource at the given version.
	Consent(ctx context.Context, tenantID, resourceID, version string) (json.RawMessage, error)
}

// HistoryPage is one page of change history (port model).
type HistoryPage struct {
	NextCursor int64
	Changes    []Change
}

// Change is one consent change on a page.
type Change struct {
	ResourceID   string
	Version      string
	Method       string
	LastModified string
}
