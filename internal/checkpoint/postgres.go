package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mdm-linkage/internal/db"
	"github.com/mdm-linkage/internal/faults"
	"github.com/mdm-linkage/internal/matrix"
)

// PostgresOptions configures the postgres backend
type PostgresOptions struct {
	DSN   string
	Table string
	Pool  db.PoolOptions
}

// DefaultTable holds checkpoint rows unless configured otherwise
const DefaultTable = "similarity_matrix"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	name     TEXT             NOT NULL,
	run_id   UUID             NOT NULL,
	lo       BIGINT           NOT NULL,
	hi       BIGINT           NOT NULL,
	score    DOUBLE PRECISION NOT NULL,
	saved_at TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (name, lo, hi),
	CHECK (lo < hi)
)`

// headerSQL records one row per saved matrix so a name that was never
// saved is told apart from an empty matrix
const headerSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	name     TEXT        PRIMARY KEY,
	run_id   UUID        NOT NULL,
	pairs    BIGINT      NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps matrices as rows of one table, one matrix per name
type PostgresStore struct {
	db    *sql.DB
	conn  *db.Connection
	table string
	runID uuid.UUID
}

// OpenPostgres connects and makes sure the checkpoint table exists
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	conn, err := db.NewConnection(ctx, opts.DSN, opts.Pool)
	if err != nil {
		return nil, faults.Resource("checkpoint.postgres.open", err)
	}
	store, err := NewPostgresStore(ctx, conn.DB, opts.Table)
	if err != nil {
		conn.Close()
		return nil, err
	}
	store.conn = conn
	return store, nil
}

// NewPostgresStore wraps an open database. Every Save made through the store
// is stamped with the same run id.
func NewPostgresStore(ctx context.Context, sqlDB *sql.DB, table string) (*PostgresStore, error) {
	if table == "" {
		table = DefaultTable
	}
	s := &PostgresStore{db: sqlDB, table: table, runID: uuid.New()}

	if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf(schemaSQL, pq.QuoteIdentifier(table))); err != nil {
		return nil, faults.Resource("checkpoint.postgres.schema", err)
	}
	if _, err := sqlDB.ExecContext(ctx, fmt.Sprintf(headerSQL, pq.QuoteIdentifier(s.headerTable()))); err != nil {
		return nil, faults.Resource("checkpoint.postgres.schema", err)
	}
	return s, nil
}

func (s *PostgresStore) headerTable() string { return s.table + "_header" }

// RunID returns the id written with every row of this store
func (s *PostgresStore) RunID() uuid.UUID { return s.runID }

// Save replaces the rows of matrix name inside one transaction
func (s *PostgresStore) Save(ctx context.Context, name string, m matrix.Matrix) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return faults.Resource("checkpoint.postgres.save", err)
	}
	defer tx.Rollback()

	table := pq.QuoteIdentifier(s.table)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE name = $1", table), name); err != nil {
		return faults.Resource("checkpoint.postgres.save", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table, "name", "run_id", "lo", "hi", "score"))
	if err != nil {
		return faults.Resource("checkpoint.postgres.save", err)
	}

	runID := s.runID.String()
	for _, k := range m.Keys() {
		if _, err := stmt.ExecContext(ctx, name, runID, k.Lo, k.Hi, m[k]); err != nil {
			stmt.Close()
			return faults.Resource("checkpoint.postgres.save", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return faults.Resource("checkpoint.postgres.save", err)
	}
	if err := stmt.Close(); err != nil {
		return faults.Resource("checkpoint.postgres.save", err)
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (name, run_id, pairs) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET run_id = EXCLUDED.run_id, pairs = EXCLUDED.pairs, saved_at = now()`,
		pq.QuoteIdentifier(s.headerTable()))
	if _, err := tx.ExecContext(ctx, upsert, name, runID, len(m)); err != nil {
		return faults.Resource("checkpoint.postgres.save", err)
	}

	return faults.Resource("checkpoint.postgres.save", tx.Commit())
}

// Load reads every row of matrix name. A name that was never saved, or
// whose rows disagree with its header, is a resource error.
func (s *PostgresStore) Load(ctx context.Context, name string) (matrix.Matrix, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, faults.Resource("checkpoint.postgres.load", err)
	}
	defer tx.Rollback()

	var pairs int64
	header := fmt.Sprintf("SELECT pairs FROM %s WHERE name = $1", pq.QuoteIdentifier(s.headerTable()))
	switch err := tx.QueryRowContext(ctx, header, name).Scan(&pairs); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, faults.Resource("checkpoint.postgres.load", fmt.Errorf("matrix %q was never saved", name))
	case err != nil:
		return nil, faults.Resource("checkpoint.postgres.load", err)
	}

	query := fmt.Sprintf("SELECT lo, hi, score FROM %s WHERE name = $1", pq.QuoteIdentifier(s.table))
	rows, err := tx.QueryContext(ctx, query, name)
	if err != nil {
		return nil, faults.Resource("checkpoint.postgres.load", err)
	}
	defer rows.Close()

	m := matrix.New()
	for rows.Next() {
		var k matrix.PairKey
		var score float64
		if err := rows.Scan(&k.Lo, &k.Hi, &score); err != nil {
			return nil, faults.Resource("checkpoint.postgres.load", err)
		}
		m[k] = score
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Resource("checkpoint.postgres.load", err)
	}
	if int64(len(m)) != pairs {
		return nil, faults.Resource("checkpoint.postgres.load",
			fmt.Errorf("%w: matrix %q has %d rows, header says %d", ErrCorrupt, name, len(m), pairs))
	}
	return m, nil
}

// Close releases the connection opened by OpenPostgres
func (s *PostgresStore) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
