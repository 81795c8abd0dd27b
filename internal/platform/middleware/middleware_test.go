package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"consentsync/internal/platform/logger"
	"consentsync/pkg/platform/httputil"
	"consentsync/pkg/requestcontext"
)

type MiddlewareSuite struct {
	suite.Suite
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) TestRequireTenant() {
	log := logger.Discard()

	s.Run("missing tenant header is rejected", func() {
		called := false
		h := RequireTenant(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/poll", nil))

		s.Equal(http.StatusBadRequest, rr.Code)
		s.False(called)

		var body httputil.StatusResponse
		s.Require().NoError(json.NewDecoder(rr.Body).Decode(&body))
		s.Equal(http.StatusBadRequest, body.Status)
		s.Contains(body.Message, HeaderTenantID)
	})

	s.Run("headers are copied into context", func() {
		var tenant, txn string
		var testMode bool
		h := RequireTenant(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant = requestcontext.TenantID(r.Context())
			txn = requestcontext.TransactionID(r.Context())
			testMode = requestcontext.TestMode(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/poll", nil)
		req.Header.Set(HeaderTenantID, "T1")
		req.Header.Set(HeaderTransactionID, "txn-1")
		req.Header.Set(HeaderTestMode, "true")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal("T1", tenant)
		s.Equal("txn-1", txn)
		s.True(testMode)
		s.Equal("txn-1", rr.Header().Get(HeaderTransactionID))
	})

	s.Run("transaction id is generated when absent", func() {
		var txn string
		h := RequireTenant(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			txn = requestcontext.TransactionID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/poll", nil)
		req.Header.Set(HeaderTenantID, "T1")
		h.ServeHTTP(httptest.NewRecorder(), req)

		s.NotEmpty(txn)
	})
}

func (s *MiddlewareSuite) TestParseTestMode() {
	s.False(parseTestMode(""))
	s.False(parseTestMode("false"))
	s.True(parseTestMode("true"))
	s.True(parseTestMode("1"))
	s.True(parseTestMode("yes"))
}

func (s *MiddlewareSuite) TestRecovery() {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	s.Equal(http.StatusInternalServerError, rr.Code)
	s.NotContains(rr.Body.String(), "boom")
}

func (s *MiddlewareSuite) TestRequestID() {
	s.Run("inbound id is kept", func() {
		var id string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id = GetRequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		s.Equal("req-1", id)
		s.Equal("req-1", rr.Header().Get(HeaderRequestID))
	})

	s.Run("id is generated", func() {
		var id string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id = GetRequestID(r.Context())
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		s.NotEmpty(id)
	})
}
