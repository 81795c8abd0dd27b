package staging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// storeContractSuite holds the behaviour every Store must share. Concrete
// suites embed it and set newStore.
type storeContractSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
	part     Partition
}

func (s *storeContractSuite) SetupTest() {
	s.store = s.newStore()
	// Unique tenant per test keeps shared databases isolated.
	s.part = Namer{DBName: "fhir-resource-ids", PartitionKey: "cm"}.Partition("t-"+uuid.NewString()[:8], false)
	s.Require().NoError(s.store.EnsurePartition(context.Background(), s.part))
}

func (s *storeContractSuite) record(resourceID, version, method string) ChangeRecord {
	return ChangeRecord{
		ID:              s.part.RecordID(resourceID, version),
		ResourceID:      resourceID,
		ResourceVersion: version,
		Method:          method,
		LastModified:    "2022-01-01T00:00:00Z",
	}
}

func (s *storeContractSuite) TestCursor() {
	ctx := context.Background()

	s.Run("absent cursor is not an error", func() {
		_, ok, err := s.store.GetCursor(ctx, s.part)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("first advance creates the cursor", func() {
		s.Require().NoError(s.store.AdvanceCursor(ctx, s.part, 42))
		v, ok, err := s.store.GetCursor(ctx, s.part)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(int64(42), v)
	})

	s.Run("later advance updates in place", func() {
		s.Require().NoError(s.store.AdvanceCursor(ctx, s.part, 57))
		v, _, err := s.store.GetCursor(ctx, s.part)
		s.Require().NoError(err)
		s.Equal(int64(57), v)
	})

	s.Run("cursor never moves backwards", func() {
		s.Require().NoError(s.store.AdvanceCursor(ctx, s.part, 3))
		v, _, err := s.store.GetCursor(ctx, s.part)
		s.Require().NoError(err)
		s.Equal(int64(57), v)
	})

	s.Run("cursors are per partition", func() {
		other := Namer{DBName: "fhir-resource-ids", PartitionKey: "cm"}.Partition(s.part.Name, true)
		s.Require().NoError(s.store.EnsurePartition(ctx, other))
		_, ok, err := s.store.GetCursor(ctx, other)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *storeContractSuite) TestStageIsIdempotent() {
	ctx := context.Background()
	rec := s.record("C1", "1", "PUT")

	s.Require().NoError(s.store.StageChanges(ctx, s.part, []ChangeRecord{rec}))
	rec.LastModified = "2022-02-02T00:00:00Z"
	s.Require().NoError(s.store.StageChanges(ctx, s.part, []ChangeRecord{rec}))

	pending, err := s.store.ListPending(ctx, s.part)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(rec, pending[0])
}

func (s *storeContractSuite) TestListPendingOrder() {
	ctx := context.Background()
	records := []ChangeRecord{
		s.record("C2", "1", "PUT"),
		s.record("C1", "2", "PUT"),
		s.record("C1", "10", "PUT"),
		s.record("C1", "1", "POST"),
	}
	s.Require().NoError(s.store.StageChanges(ctx, s.part, records))

	pending, err := s.store.ListPending(ctx, s.part)
	s.Require().NoError(err)

	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.ID)
	}
	s.Equal([]string{
		s.part.RecordID("C1", "1"),
		s.part.RecordID("C1", "2"),
		s.part.RecordID("C1", "10"),
		s.part.RecordID("C2", "1"),
	}, ids, "versions of one resource are listed in numeric order")
}

func (s *storeContractSuite) TestEmptyPartition() {
	pending, err := s.store.ListPending(context.Background(), s.part)
	s.Require().NoError(err)
	s.NotNil(pending)
	s.Empty(pending)
}

func (s *storeContractSuite) TestRemove() {
	ctx := context.Background()
	rec := s.record("C1", "1", "PUT")
	s.Require().NoError(s.store.StageChanges(ctx, s.part, []ChangeRecord{rec}))

	s.Require().NoError(s.store.Remove(ctx, s.part, rec.ID))
	s.Require().NoError(s.store.Remove(ctx, s.part, rec.ID), "removing an absent record succeeds")

	pending, err := s.store.ListPending(ctx, s.part)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *storeContractSuite) TestBulkStage() {
	ctx := context.Background()
	records := make([]ChangeRecord, 0, 250)
	for i := 0; i < 250; i++ {
		records = append(records, s.record(fmt.Sprintf("C%03d", i), "1", "PUT"))
	}
	s.Require().NoError(s.store.StageChanges(ctx, s.part, records))

	pending, err := s.store.ListPending(ctx, s.part)
	s.Require().NoError(err)
	s.Len(pending, 250)
}

func (s *storeContractSuite) TestPing() {
	s.NoError(s.store.Ping(context.Background()))
}
