package ports

import (
	"context"

	"consentsync/internal/transform"
)

//go:generate mockgen -source=registry.go -destination=../mocks/registry_mock.go -package=mocks RegistryPort

// RegistryPort submits canonical records downstream. A nil error means the
// downstream service confirmed the record.
type RegistryPort interface {
	Register(ctx context.Context, rec transform.Record) error
}
