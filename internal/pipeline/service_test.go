package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentsync/internal/audit"
	"consentsync/internal/pipeline/metrics"
	"consentsync/internal/pipeline/mocks"
	"consentsync/internal/pipeline/ports"
	"consentsync/internal/platform/logger"
	"consentsync/internal/staging"
	stagingmocks "consentsync/internal/staging/mocks"
	"consentsync/internal/transform"
	dErrors "consentsync/pkg/domain-errors"
	"consentsync/pkg/platform/sentinel"
)

var namer = staging.Namer{DBName: "fhir-resource-ids", PartitionKey: "cm"}

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	fhir     *mocks.MockFHIRPort
	registry *mocks.MockRegistryPort
	store    *staging.InMemoryStore
	audit    *audit.Memory
	metrics  *metrics.Metrics
	consent  json.RawMessage
	part     staging.Partition
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSuite() {
	data, err := os.ReadFile("../transform/testdata/consent-example.json")
	s.Require().NoError(err)
	s.consent = data
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.fhir = mocks.NewMockFHIRPort(s.ctrl)
	s.registry = mocks.NewMockRegistryPort(s.ctrl)
	s.store = staging.NewInMemory()
	s.audit = audit.NewMemory()
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.part = namer.Partition("T1", false)
}

func (s *ServiceSuite) service(cfg Config, store staging.Store) *Service {
	if store == nil {
		store = s.store
	}
	return New(store, s.fhir, s.registry, namer, cfg,
		WithAudit(s.audit),
		WithMetrics(s.metrics),
		WithLogger(logger.Discard()),
	)
}

func (s *ServiceSuite) stage(records ...staging.ChangeRecord) {
	ctx := context.Background()
	s.Require().NoError(s.store.EnsurePartition(ctx, s.part))
	s.Require().NoError(s.store.StageChanges(ctx, s.part, records))
}

func (s *ServiceSuite) change(id, version, method string) staging.ChangeRecord {
	return staging.ChangeRecord{
		ID:              s.part.RecordID(id, version),
		ResourceID:      id,
		ResourceVersion: version,
		Method:          method,
	}
}

func (s *ServiceSuite) pending() []staging.ChangeRecord {
	out, err := s.store.ListPending(context.Background(), s.part)
	s.Require().NoError(err)
	return out
}

func (s *ServiceSuite) cursor() (int64, bool) {
	v, ok, err := s.store.GetCursor(context.Background(), s.part)
	s.Require().NoError(err)
	return v, ok
}

func (s *ServiceSuite) TestEndToEndSingleConsent() {
	ctx := context.Background()
	svc := s.service(Config{}, nil)
	req := Request{TenantID: "T1", PageSize: 100}

	s.fhir.EXPECT().History(gomock.Any(), "T1", int64(0), false, 100).Return(&ports.HistoryPage{
		NextCursor: 42,
		Changes:    []ports.Change{{ResourceID: "C1", Version: "1", Method: "PUT"}},
	}, nil)

	out := svc.Poll(ctx, req)
	s.Equal(Outcome{Status: http.StatusOK, Message: msgPollSucceeded}, out)

	pending := s.pending()
	s.Require().Len(pending, 1)
	s.Equal("cm:C1:1", pending[0].ID)
	s.Equal("PUT", pending[0].Method)
	cursor, ok := s.cursor()
	s.True(ok)
	s.Equal(int64(42), cursor)

	s.fhir.EXPECT().Consent(gomock.Any(), "T1", "C1", "1").Return(s.consent, nil)
	s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec transform.Record) error {
			s.Equal("T1", rec.TenantID)
			s.Equal("patient-001", rec.PatientID)
			return nil
		})

	out = svc.Register(ctx, req)
	s.Equal(Outcome{Status: http.StatusCreated, Message: msgRegisterSucceeded}, out)
	s.Empty(s.pending())

	s.Len(s.audit.OfType(audit.PollCompleted), 1)
	s.Len(s.audit.OfType(audit.ConsentRegistered), 1)
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Staged))
	s.Equal(float64(42), promtest.ToFloat64(s.metrics.Cursor.WithLabelValues("T1")))
}

func (s *ServiceSuite) TestPollUsesExistingCursor() {
	ctx := context.Background()
	s.Require().NoError(s.store.AdvanceCursor(ctx, s.part, 17))

	s.fhir.EXPECT().History(gomock.Any(), "T1", int64(17), true, 5).Return(&ports.HistoryPage{
		NextCursor: 20,
		Changes:    []ports.Change{{ResourceID: "C2", Version: "3", Method: "PUT"}},
	}, nil)

	out := s.service(Config{}, nil).Poll(ctx, Request{TenantID: "T1", PageSize: 5})
	s.True(out.OK())
	cursor, _ := s.cursor()
	s.Equal(int64(20), cursor)
}

func (s *ServiceSuite) TestPollPageSizeFallsBackToDefault() {
	s.fhir.EXPECT().History(gomock.Any(), "T1", int64(0), false, 100).Return(&ports.HistoryPage{NextCursor: 1}, nil)
	s.service(Config{MaxPageSize: 1000}, nil).Poll(context.Background(), Request{TenantID: "T1", PageSize: 5000})
}

func (s *ServiceSuite) TestFailedFetchLeavesCursor() {
	ctx := context.Background()
	s.Require().NoError(s.store.AdvanceCursor(ctx, s.part, 10))

	s.fhir.EXPECT().History(gomock.Any(), "T1", int64(10), true, 100).
		Return(nil, dErrors.WithStatus(http.StatusBadGateway, dErrors.CodeUnavailable, "fetch FHIR history: upstream down", nil))

	out := s.service(Config{}, nil).Poll(ctx, Request{TenantID: "T1"})
	s.Equal(http.StatusBadGateway, out.Status)
	s.Equal("fetch FHIR history: upstream down", out.Message)

	cursor, _ := s.cursor()
	s.Equal(int64(10), cursor)
	s.Empty(s.pending())
	s.Len(s.audit.OfType(audit.PollFailed), 1)
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Polls.WithLabelValues("failed")))
}

func (s *ServiceSuite) TestStagingFailureDoesNotAdvanceCursor() {
	store := stagingmocks.NewMockStore(s.ctrl)
	gomock.InOrder(
		store.EXPECT().EnsurePartition(gomock.Any(), s.part).Return(nil),
		store.EXPECT().GetCursor(gomock.Any(), s.part).Return(int64(0), false, nil),
		store.EXPECT().StageChanges(gomock.Any(), s.part, gomock.Len(1)).
			Return(fmt.Errorf("%w: connection reset", sentinel.ErrUnavailable)),
	)
	s.fhir.EXPECT().History(gomock.Any(), "T1", int64(0), false, 100).Return(&ports.HistoryPage{
		NextCursor: 42,
		Changes:    []ports.Change{{ResourceID: "C1", Version: "1", Method: "PUT"}},
	}, nil)

	out := s.service(Config{}, store).Poll(context.Background(), Request{TenantID: "T1"})
	s.Equal(http.StatusServiceUnavailable, out.Status)
}

func (s *ServiceSuite) TestEmptyPage() {
	for _, tc := range []struct {
		policy EmptyPagePolicy
		want   Outcome
	}{
		{EmptyNotFound, Outcome{Status: http.StatusNotFound, Message: msgNotFound}},
		{EmptyPass, Outcome{Status: http.StatusOK, Message: msgPollNoChanges}},
	} {
		s.Run(string(tc.policy), func() {
			s.SetupTest()
			s.fhir.EXPECT().History(gomock.Any(), "T1", int64(0), false, 100).
				Return(&ports.HistoryPage{NextCursor: 99}, nil)

			out := s.service(Config{EmptyPage: tc.policy}, nil).Poll(context.Background(), Request{TenantID: "T1"})
			s.Equal(tc.want, out)

			cursor, ok := s.cursor()
			s.True(ok)
			s.Equal(int64(99), cursor)
		})
	}
}

func (s *ServiceSuite) TestCursorIsMonotonic() {
	ctx := context.Background()
	svc := s.service(Config{EmptyPage: EmptyPass}, nil)
	markers := []int64{5, 9, 7, 12}

	prev := int64(0)
	has := false
	for _, m := range markers {
		s.fhir.EXPECT().History(gomock.Any(), "T1", prev, has, 100).Return(&ports.HistoryPage{NextCursor: m}, nil)
		s.True(svc.Poll(ctx, Request{TenantID: "T1"}).OK())

		cur, ok := s.cursor()
		s.True(ok)
		s.GreaterOrEqual(cur, prev)
		prev, has = cur, true
	}
	s.Equal(int64(12), prev)
}

func (s *ServiceSuite) TestDeleteFetchesPreviousVersion() {
	s.stage(s.change("C1", "5", "DELETE"))

	s.fhir.EXPECT().Consent(gomock.Any(), "T1", "C1", "4").Return(s.consent, nil)
	s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, rec transform.Record) error {
			s.Equal([]string{transform.OptionDeny}, rec.ConsentOption)
			return nil
		})

	out := s.service(Config{}, nil).Register(context.Background(), Request{TenantID: "T1"})
	s.True(out.OK())
	s.Empty(s.pending())
}

func (s *ServiceSuite) TestDeleteOfFirstVersionIsMalformed() {
	s.stage(s.change("C1", "1", "DELETE"))

	out := s.service(Config{}, nil).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(http.StatusBadGateway, out.Status)
	s.Len(s.pending(), 1)
}

func (s *ServiceSuite) TestDownstreamFailureKeepsRecord() {
	s.stage(s.change("C1", "1", "PUT"))

	s.fhir.EXPECT().Consent(gomock.Any(), "T1", "C1", "1").Return(s.consent, nil)
	s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(dErrors.WithStatus(http.StatusConflict, dErrors.CodeBadRequest, "duplicate consent", nil))

	out := s.service(Config{}, nil).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(Outcome{Status: http.StatusConflict, Message: "duplicate consent"}, out)
	s.Len(s.pending(), 1)

	failed := s.audit.OfType(audit.ConsentRegisterFailed)
	s.Require().Len(failed, 1)
	s.Equal(http.StatusConflict, failed[0].Status)
}

func (s *ServiceSuite) TestInvalidResourceIsNotSubmitted() {
	s.stage(s.change("C1", "1", "PUT"))
	s.fhir.EXPECT().Consent(gomock.Any(), "T1", "C1", "1").Return(json.RawMessage(`{"resourceType":"Consent"}`), nil)

	out := s.service(Config{}, nil).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(http.StatusBadRequest, out.Status)
	s.Contains(out.Message, "PatientID")
	s.Len(s.pending(), 1)
}

func (s *ServiceSuite) TestBatchPolicies() {
	records := []staging.ChangeRecord{
		s.change("A", "1", "PUT"),
		s.change("B", "1", "PUT"),
		s.change("C", "1", "PUT"),
	}
	boom := dErrors.New(dErrors.CodeUnavailable, "consent manager down")

	s.Run("halt stops at the first failure", func() {
		s.SetupTest()
		s.stage(records...)
		gomock.InOrder(
			s.fhir.EXPECT().Consent(gomock.Any(), "T1", "A", "1").Return(s.consent, nil),
			s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil),
			s.fhir.EXPECT().Consent(gomock.Any(), "T1", "B", "1").Return(s.consent, nil),
			s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Return(boom),
		)

		svc := s.service(Config{Batch: BatchHalt}, nil)
		res := svc.RegisterAll(context.Background(), "T1", s.part, s.pending())
		s.Equal([]string{"cm:A:1"}, res.Registered)
		first, ok := res.FirstFailure()
		s.True(ok)
		s.Equal(1, first.Index)
		s.Equal("cm:B:1", first.RecordID)
		s.Equal(1, res.Skipped())

		ids := make([]string, 0)
		for _, p := range s.pending() {
			ids = append(ids, p.ID)
		}
		s.Equal([]string{"cm:B:1", "cm:C:1"}, ids)
	})

	s.Run("continue attempts every record", func() {
		s.SetupTest()
		s.stage(records...)
		s.fhir.EXPECT().Consent(gomock.Any(), "T1", gomock.Any(), "1").Return(s.consent, nil).Times(3)
		gomock.InOrder(
			s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Return(boom),
			s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil),
			s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil),
		)

		out := s.service(Config{Batch: BatchContinue}, nil).Register(context.Background(), Request{TenantID: "T1"})
		s.Equal(http.StatusServiceUnavailable, out.Status)
		s.Contains(out.Message, "1 of 3 consents failed")
		s.Len(s.pending(), 1)
		s.Equal("cm:A:1", s.pending()[0].ID)
	})
}

func (s *ServiceSuite) TestRemovalFailureIsSurfaced() {
	store := stagingmocks.NewMockStore(s.ctrl)
	rec := s.change("C1", "1", "PUT")
	store.EXPECT().ListPending(gomock.Any(), s.part).Return([]staging.ChangeRecord{rec}, nil)
	store.EXPECT().Remove(gomock.Any(), s.part, rec.ID).Return(errors.New("disk full"))
	s.fhir.EXPECT().Consent(gomock.Any(), "T1", "C1", "1").Return(s.consent, nil)
	s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil)

	out := s.service(Config{}, store).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(Outcome{Status: http.StatusInternalServerError, Message: msgRemoveFailed}, out)

	s.Empty(s.audit.OfType(audit.ConsentRegisterFailed), "the downstream accepted the consent")
	s.Require().Len(s.audit.OfType(audit.ConsentRemoveFailed), 1)
	s.Equal("C1", s.audit.OfType(audit.ConsentRemoveFailed)[0].ResourceID)
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Registrations.WithLabelValues("remove_failed")))
	s.Equal(float64(0), promtest.ToFloat64(s.metrics.Registrations.WithLabelValues("failed")))
}

func (s *ServiceSuite) TestTransientFailuresAreRetryable() {
	store := stagingmocks.NewMockStore(s.ctrl)
	store.EXPECT().ListPending(gomock.Any(), s.part).Return(nil, fmt.Errorf("%w: timeout", sentinel.ErrUnavailable))
	out := s.service(Config{}, store).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(http.StatusServiceUnavailable, out.Status)
	s.True(out.Retryable)

	rec := s.change("C1", "1", "PUT")
	s.stage(rec)
	s.fhir.EXPECT().Consent(gomock.Any(), "T1", "C1", "1").Return(s.consent, nil)
	s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).
		Return(dErrors.WithStatus(http.StatusConflict, dErrors.CodeBadRequest, "duplicate consent", nil))
	out = s.service(Config{}, nil).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(http.StatusConflict, out.Status)
	s.False(out.Retryable, "rejections are terminal")
}

func (s *ServiceSuite) TestRegisterWithNothingPending() {
	out := s.service(Config{}, nil).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(Outcome{Status: http.StatusNotFound, Message: msgNotFound}, out)

	out = s.service(Config{EmptyPage: EmptyPass}, nil).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(Outcome{Status: http.StatusOK, Message: msgNoPending}, out)
}

func (s *ServiceSuite) TestListFailure() {
	store := stagingmocks.NewMockStore(s.ctrl)
	store.EXPECT().ListPending(gomock.Any(), s.part).Return(nil, fmt.Errorf("%w: timeout", sentinel.ErrUnavailable))

	out := s.service(Config{}, store).Register(context.Background(), Request{TenantID: "T1"})
	s.Equal(Outcome{Status: http.StatusServiceUnavailable, Message: msgListFailed, Retryable: true}, out)
}

func (s *ServiceSuite) TestProcess() {
	s.Run("empty poll stops before register", func() {
		s.SetupTest()
		store := stagingmocks.NewMockStore(s.ctrl)
		store.EXPECT().EnsurePartition(gomock.Any(), s.part).Return(nil)
		store.EXPECT().GetCursor(gomock.Any(), s.part).Return(int64(3), true, nil)
		store.EXPECT().AdvanceCursor(gomock.Any(), s.part, int64(3)).Return(nil)
		s.fhir.EXPECT().History(gomock.Any(), "T1", int64(3), true, 100).Return(&ports.HistoryPage{NextCursor: 3}, nil)

		out := s.service(Config{}, store).Process(context.Background(), Request{TenantID: "T1"})
		s.Equal(http.StatusNotFound, out.Status)
	})

	s.Run("poll then register", func() {
		s.SetupTest()
		s.fhir.EXPECT().History(gomock.Any(), "T1", int64(0), false, 100).Return(&ports.HistoryPage{
			NextCursor: 8,
			Changes:    []ports.Change{{ResourceID: "C9", Version: "2", Method: "PUT"}},
		}, nil)
		s.fhir.EXPECT().Consent(gomock.Any(), "T1", "C9", "2").Return(s.consent, nil)
		s.registry.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil)

		out := s.service(Config{}, nil).Process(context.Background(), Request{TenantID: "T1"})
		s.Equal(Outcome{Status: http.StatusCreated, Message: msgRegisterSucceeded}, out)
		s.Empty(s.pending())
	})
}

func (s *ServiceSuite) TestTestModeUsesSeparatePartition() {
	s.fhir.EXPECT().History(gomock.Any(), "T1", int64(0), false, 100).Return(&ports.HistoryPage{
		NextCursor: 4,
		Changes:    []ports.Change{{ResourceID: "C1", Version: "1", Method: "PUT"}},
	}, nil)

	s.True(s.service(Config{}, nil).Poll(context.Background(), Request{TenantID: "T1", TestMode: true}).OK())

	s.Empty(s.pending())
	testPart := namer.Partition("T1", true)
	pending, err := s.store.ListPending(context.Background(), testPart)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *ServiceSuite) TestMissingTenant() {
	out := s.service(Config{}, nil).Poll(context.Background(), Request{})
	s.Equal(http.StatusBadRequest, out.Status)
}

func TestParsePolicies(t *testing.T) {
	t.Run("empty page", func(t *testing.T) {
		for raw, want := range map[string]EmptyPagePolicy{"": EmptyNotFound, "not_found": EmptyNotFound, "pass": EmptyPass} {
			p, err := ParseEmptyPagePolicy(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, want, p, raw)
		}
		_, err := ParseEmptyPagePolicy("ignore")
		assert.Error(t, err)
	})

	t.Run("batch", func(t *testing.T) {
		for raw, want := range map[string]BatchPolicy{"": BatchHalt, "halt": BatchHalt, "continue": BatchContinue} {
			p, err := ParseBatchPolicy(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, want, p, raw)
		}
		_, err := ParseBatchPolicy("retry")
		assert.Error(t, err)
	})
}
