package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentsync/pkg/domain-errors"
	"consentsync/pkg/platform/sentinel"
)

const doc = `{
  "fhir-connection-T1": {
    "fhirUrl": "https://fhir.example.com",
    "loginFhirHistoryUrl": "https://login.example.com/token",
    "loginFhirHistoryReadSecret": "read-secret",
    "loginFhirHistoryWriteSecret": "write-secret"
  },
  "fhir-connection-broken": {"fhirUrl": ""}
}`

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("known tenant", func(t *testing.T) {
		p := NewFileProvider(writeDoc(t, doc))
		c, err := p.FHIRConnection(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, "https://fhir.example.com", c.FHIRURL)
		assert.Equal(t, "read-secret", c.ReadSecret)
		assert.Equal(t, "write-secret", c.WriteSecret)
	})

	t.Run("unknown tenant is not onboarded", func(t *testing.T) {
		p := NewFileProvider(writeDoc(t, doc))
		_, err := p.FHIRConnection(ctx, "T9")
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
		assert.Contains(t, err.Error(), "not onboarded")
	})

	t.Run("incomplete connection is invalid", func(t *testing.T) {
		p := NewFileProvider(writeDoc(t, doc))
		_, err := p.FHIRConnection(ctx, "broken")
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidData))
	})

	t.Run("reload picks up rotated secrets", func(t *testing.T) {
		path := writeDoc(t, `{}`)
		p := NewFileProvider(path)
		_, err := p.FHIRConnection(ctx, "T1")
		require.Error(t, err)

		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
		require.NoError(t, p.Reload())

		_, err = p.FHIRConnection(ctx, "T1")
		require.NoError(t, err)
	})

	t.Run("corrupt file", func(t *testing.T) {
		p := NewFileProvider(writeDoc(t, `{not json`))
		_, err := p.FHIRConnection(ctx, "T1")
		assert.True(t, dErrors.Is(err, dErrors.CodeInternal))
	})
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{"T1": {FHIRURL: "http://fhir", LoginURL: "http://login"}}

	c, err := p.FHIRConnection(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "http://fhir", c.FHIRURL)

	_, err = p.FHIRConnection(context.Background(), "T2")
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	assert.Equal(t, "fhir-connection-T2", KeyName("T2"))
}
