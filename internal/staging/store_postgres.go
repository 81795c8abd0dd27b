package staging

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	"consentsync/pkg/platform/sentinel"
)

const (
	changesTable     = "staged_changes"
	cursorsTable     = "sync_cursors"
	operationTimeout = 10 * time.Second
	// maxIdentifierLen is PostgreSQL's NAMEDATALEN-1.
	maxIdentifierLen = 63
)

// PostgresStore keeps every partition as a LIST partition of staged_changes.
// The parent tables are created by the first successful call; a failed setup
// is retried by the next call. Partitions are created on first use.
type PostgresStore struct {
	db *sql.DB

	initMu sync.Mutex
	ready  atomic.Bool

	ensured sync.Map
}

// NewPostgres constructs a store on an open connection pool.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureReady(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.ready.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	stmts := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				partition TEXT NOT NULL,
				id TEXT NOT NULL,
				resource_id TEXT NOT NULL,
				resource_version TEXT NOT NULL,
				method TEXT NOT NULL,
				last_modified TEXT NOT NULL DEFAULT '',
				staged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (partition, id)
			) PARTITION BY LIST (partition)`, pq.QuoteIdentifier(changesTable)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (partition, resource_id, id)`,
			pq.QuoteIdentifier(changesTable+"_resource_id_idx"), pq.QuoteIdentifier(changesTable)),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				partition TEXT NOT NULL,
				id TEXT NOT NULL,
				value BIGINT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (partition, id)
			)`, pq.QuoteIdentifier(cursorsTable)),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify("initialise staging schema", err)
		}
	}
	s.ready.Store(true)
	return nil
}

// EnsurePartition creates the LIST partition for p. The resource id index is
// inherited from the parent table.
func (s *PostgresStore) EnsurePartition(ctx context.Context, p Partition) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	if _, ok := s.ensured.Load(p.Name); ok {
		return nil
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES IN (%s)`,
		pq.QuoteIdentifier(partitionTable(p.Name)),
		pq.QuoteIdentifier(changesTable),
		pq.QuoteLiteral(p.Name),
	)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		// Concurrent creators race on the catalog; the loser sees a duplicate.
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) || (pqErr.Code != "42P07" && pqErr.Code != "23505") {
			return classify("create partition "+p.Name, err)
		}
	}
	s.ensured.Store(p.Name, struct{}{})
	return nil
}

func (s *PostgresStore) GetCursor(ctx context.Context, p Partition) (int64, bool, error) {
	if err := s.ensureReady(ctx); err != nil {
		return 0, false, err
	}
	query := fmt.Sprintf(`SELECT value FROM %s WHERE partition = $1 AND id = $2`, pq.QuoteIdentifier(cursorsTable))

	var value int64
	err := s.db.QueryRowContext(ctx, query, p.Name, p.CursorID()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify("get cursor", err)
	}
	return value, true, nil
}

func (s *PostgresStore) AdvanceCursor(ctx context.Context, p Partition, value int64) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (partition, id, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (partition, id)
		DO UPDATE SET value = GREATEST(%[1]s.value, EXCLUDED.value), updated_at = NOW()`,
		pq.QuoteIdentifier(cursorsTable))
	if _, err := s.db.ExecContext(ctx, query, p.Name, p.CursorID(), value); err != nil {
		return classify("advance cursor", err)
	}
	return nil
}

// StageChanges upserts records in a single transaction.
func (s *PostgresStore) StageChanges(ctx context.Context, p Partition, records []ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.EnsurePartition(ctx, p); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin stage transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (partition, id, resource_id, resource_version, method, last_modified, staged_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (partition, id)
		DO UPDATE SET resource_id = EXCLUDED.resource_id,
			resource_version = EXCLUDED.resource_version,
			method = EXCLUDED.method,
			last_modified = EXCLUDED.last_modified,
			staged_at = NOW()`, pq.QuoteIdentifier(changesTable)))
	if err != nil {
		return classify("prepare stage statement", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, p.Name, r.ID, r.ResourceID, r.ResourceVersion, r.Method, r.LastModified); err != nil {
			return classify("stage record "+r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("commit staged records", err)
	}
	return nil
}

func (s *PostgresStore) ListPending(ctx context.Context, p Partition) ([]ChangeRecord, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, resource_id, resource_version, method, last_modified
		FROM %s
		WHERE partition = $1
		ORDER BY resource_id,
			CASE WHEN resource_version ~ '^[0-9]+$' THEN resource_version::numeric END NULLS LAST,
			id`, pq.QuoteIdentifier(changesTable))

	rows, err := s.db.QueryContext(ctx, query, p.Name)
	if err != nil {
		return nil, classify("list pending", err)
	}
	defer rows.Close()

	out := []ChangeRecord{}
	for rows.Next() {
		var r ChangeRecord
		if err := rows.Scan(&r.ID, &r.ResourceID, &r.ResourceVersion, &r.Method, &r.LastModified); err != nil {
			return nil, classify("scan pending record", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list pending", err)
	}
	return out, nil
}

func (s *PostgresStore) Remove(ctx context.Context, p Partition, id string) error {
	if err := s.ensureReady(ctx); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE partition = $1 AND id = $2`, pq.QuoteIdentifier(changesTable))
	if _, err := s.db.ExecContext(ctx, query, p.Name, id); err != nil {
		return classify("remove record "+id, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// partitionTable returns the child table name, hashing names that would be
// truncated by PostgreSQL.
func partitionTable(name string) string {
	if len(name) <= maxIdentifierLen {
		return name
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("-%016x", h.Sum64())
	return name[:maxIdentifierLen-len(suffix)] + suffix
}

// classify marks connectivity failures as retryable.
func classify(op string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
