// Package testutil provides helpers for handler tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentsync/pkg/platform/httputil"
)

// NewRequest builds a bodyless request with the given headers.
func NewRequest(method, path string, header map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	return req
}

// Serve runs req through h.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// DecodeJSON unmarshals the response body into T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "failed to unmarshal response: %s", rr.Body.String())
	return out
}

// AssertStatus checks that the HTTP status and the status envelope agree with
// want, and that the message contains msg when msg is non-empty.
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int, msg string) httputil.StatusResponse {
	t.Helper()
	body := DecodeJSON[httputil.StatusResponse](t, rr)
	assert.Equal(t, want, rr.Code, "unexpected status code")
	assert.Equal(t, want, body.Status, "status envelope disagrees with response code")
	if msg != "" {
		assert.Contains(t, body.Message, msg)
	}
	return body
}
