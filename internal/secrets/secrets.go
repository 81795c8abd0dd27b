// Package secrets resolves the per-tenant FHIR connection document.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	dErrors "consentsync/pkg/domain-errors"
	"consentsync/pkg/platform/sentinel"
)

// KeyPrefix prefixes every tenant connection key.
const KeyPrefix = "fhir-connection"

// Connection holds the endpoints and client secrets needed to talk to a
// tenant's FHIR server.
type Connection struct {
	FHIRURL     string `json:"fhirUrl"`
	LoginURL    string `json:"loginFhirHistoryUrl"`
	ReadSecret  string `json:"loginFhirHistoryReadSecret"`
	WriteSecret string `json:"loginFhirHistoryWriteSecret"`
}

// Provider looks up tenant connections.
type Provider interface {
	FHIRConnection(ctx context.Context, tenantID string) (Connection, error)
}

// KeyName returns the secret key for a tenant.
func KeyName(tenantID string) string {
	return KeyPrefix + "-" + tenantID
}

func notOnboarded(tenantID string) error {
	return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "tenant "+tenantID+" is not onboarded")
}

func validate(tenantID string, c Connection) error {
	if c.FHIRURL == "" || c.LoginURL == "" {
		return dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeInvalidData,
			"connection for tenant "+tenantID+" is missing fhirUrl or loginFhirHistoryUrl")
	}
	return nil
}

// StaticProvider serves connections from memory, keyed by tenant id.
type StaticProvider map[string]Connection

// FHIRConnection implements Provider.
func (p StaticProvider) FHIRConnection(_ context.Context, tenantID string) (Connection, error) {
	c, ok := p[tenantID]
	if !ok {
		return Connection{}, notOnboarded(tenantID)
	}
	return c, validate(tenantID, c)
}

// FileProvider reads a JSON document mapping key names to connections:
//
//	{"fhir-connection-T1": {"fhirUrl": "...", "loginFhirHistoryUrl": "...", ...}}
//
// The file is read lazily on first use and again after Reload.
type FileProvider struct {
	path string

	mu     sync.RWMutex
	loaded bool
	keys   map[string]Connection
}

// NewFileProvider creates a provider backed by path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// FHIRConnection implements Provider.
func (p *FileProvider) FHIRConnection(_ context.Context, tenantID string) (Connection, error) {
	if err := p.ensureLoaded(); err != nil {
		return Connection{}, err
	}
	p.mu.RLock()
	c, ok := p.keys[KeyName(tenantID)]
	p.mu.RUnlock()
	if !ok {
		return Connection{}, notOnboarded(tenantID)
	}
	return c, validate(tenantID, c)
}

// Reload re-reads the file so rotated secrets are picked up.
func (p *FileProvider) Reload() error {
	keys, err := readFile(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.keys = keys
	p.loaded = true
	p.mu.Unlock()
	return nil
}

func (p *FileProvider) ensureLoaded() error {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return nil
	}
	return p.Reload()
}

func readFile(path string) (map[string]Connection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Connection{}, nil
		}
		return nil, dErrors.Wrap(fmt.Errorf("read secrets file: %w", err), dErrors.CodeUnavailable, "secrets store unavailable")
	}
	keys := map[string]Connection{}
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, dErrors.Wrap(fmt.Errorf("parse secrets file: %w", err), dErrors.CodeInternal, "secrets store is corrupt")
	}
	return keys, nil
}
