package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"consentsync/internal/pipeline"
	"consentsync/internal/platform/config"
	"consentsync/internal/platform/logger"
	"consentsync/internal/platform/metrics"
	"consentsync/internal/platform/middleware"
	"consentsync/pkg/platform/httputil"
	"consentsync/pkg/testutil"
)

type stubService struct {
	calls []string
	last  pipeline.Request
	out   pipeline.Outcome
}

func (s *stubService) record(op string, req pipeline.Request) pipeline.Outcome {
	s.calls = append(s.calls, op)
	s.last = req
	return s.out
}

func (s *stubService) Poll(_ context.Context, req pipeline.Request) pipeline.Outcome {
	return s.record("poll", req)
}

func (s *stubService) Register(_ context.Context, req pipeline.Request) pipeline.Outcome {
	return s.record("register", req)
}

func (s *stubService) Process(_ context.Context, req pipeline.Request) pipeline.Outcome {
	return s.record("process", req)
}

type HandlerSuite struct {
	suite.Suite
	service *stubService
	router  http.Handler
	ready   error
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &stubService{out: pipeline.Outcome{Status: http.StatusOK, Message: "ok"}}
	s.ready = nil
	log := logger.Discard()

	h := New(s.service, config.SyncConfig{DefaultPageSize: 100, MaxPageSize: 1000}, log)
	health := NewHealth(time.Second,
		Check{Name: "staging", Fn: func(context.Context) error { return nil }},
		Check{Name: "consent-manager", Fn: func(context.Context) error { return s.ready }},
	)
	cfg := config.Server{BasePath: "/fhir-consent-service/api/v1", RequestTimeout: 5 * time.Second}
	s.router = NewRouter(cfg, h, health, metrics.NewWith(prometheus.NewRegistry()), log)
}

func (s *HandlerSuite) do(method, path string, header map[string]string) (*httptest.ResponseRecorder, httputil.StatusResponse) {
	rr := testutil.Serve(s.router, testutil.NewRequest(method, path, header))
	var body httputil.StatusResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	return rr, body
}

const syncBase = "/fhir-consent-service/api/v1/fhir-consent"

func (s *HandlerSuite) TestRoutes() {
	tenant := map[string]string{middleware.HeaderTenantID: "T1"}
	cases := []struct {
		method, path, op string
	}{
		{http.MethodGet, syncBase + "/poll-fhir-consent-history", "poll"},
		{http.MethodPost, syncBase + "/register-fhir-consents", "register"},
		{http.MethodPost, syncBase + "/process-fhir-consents", "process"},
	}
	for _, tc := range cases {
		s.Run(tc.op, func() {
			s.service.calls = nil
			rr, body := s.do(tc.method, tc.path, tenant)
			s.Equal(http.StatusOK, rr.Code)
			s.Equal(httputil.StatusResponse{Status: http.StatusOK, Message: "ok"}, body)
			s.Equal([]string{tc.op}, s.service.calls)
			s.Equal("T1", s.service.last.TenantID)
			s.NotEmpty(rr.Header().Get(middleware.HeaderTransactionID))
		})
	}
}

func (s *HandlerSuite) TestOutcomeStatusIsEchoed() {
	s.service.out = pipeline.Outcome{Status: http.StatusNotFound, Message: "Not found resources"}
	rr, body := s.do(http.MethodGet, syncBase+"/poll-fhir-consent-history", map[string]string{middleware.HeaderTenantID: "T1"})
	s.Equal(http.StatusNotFound, rr.Code)
	s.Equal("Not found resources", body.Message)
}

func (s *HandlerSuite) TestPageSizeAndTestMode() {
	header := map[string]string{middleware.HeaderTenantID: "T1", middleware.HeaderTestMode: "true"}

	s.do(http.MethodGet, syncBase+"/poll-fhir-consent-history?pageSize=25", header)
	s.Equal(25, s.service.last.PageSize)
	s.True(s.service.last.TestMode)

	s.do(http.MethodGet, syncBase+"/poll-fhir-consent-history?pageSize=5000", header)
	s.Equal(100, s.service.last.PageSize)

	s.do(http.MethodPost, syncBase+"/process-fhir-consents?pageSize=abc", header)
	s.Equal(100, s.service.last.PageSize)
}

func (s *HandlerSuite) TestMissingTenant() {
	rr, _ := s.do(http.MethodPost, syncBase+"/register-fhir-consents", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest, middleware.HeaderTenantID)
	s.Empty(s.service.calls)
}

func (s *HandlerSuite) TestHealth() {
	for _, path := range []string{"/ready", "/fhir-consent-service/api/v1/health", "/fhir-consent-service/api/v1/live"} {
		rr, _ := s.do(http.MethodGet, path, nil)
		s.Equal(http.StatusOK, rr.Code, path)
	}

	s.ready = errors.New("consent manager reports status DOWN")
	rr, _ := s.do(http.MethodGet, "/ready", nil)
	s.Equal(http.StatusServiceUnavailable, rr.Code)

	body := testutil.DecodeJSON[healthResponse](s.T(), rr)
	s.Equal(stateDown, body.Status)
	s.Require().Len(body.Checks, 2)
	s.Equal(stateUp, body.Checks[0].State)
	s.Equal(stateDown, body.Checks[1].State)

	rr, _ = s.do(http.MethodGet, "/fhir-consent-service/api/v1/live", nil)
	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	rr := testutil.Serve(s.router, testutil.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rr.Code)
}
