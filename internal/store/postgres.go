package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/koi-labs/koi-ledger/internal/model"
)

// Schema is the DDL for the journal table. All monetary values are stored
// as NUMERIC for exact decimal precision.
const Schema = `CREATE TABLE IF NOT EXISTS ledger_log (
	id          UUID PRIMARY KEY,
	from_wallet TEXT NOT NULL,
	to_wallet   TEXT NOT NULL,
	amount      NUMERIC NOT NULL,
	fee         NUMERIC NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_log_timestamp_idx ON ledger_log (timestamp)`

// insertBatch bounds the rows per INSERT statement.
const insertBatch = 500

// Execer is the subset of pgxpool.Pool the journal uses.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresJournal implements Journal on a PostgreSQL table.
type PostgresJournal struct {
	db Execer
}

// NewPostgresJournal creates a journal writing through db, typically a
// *pgxpool.Pool.
func NewPostgresJournal(db Execer) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// EnsureSchema creates the journal table if it does not exist.
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, Schema); err != nil {
		return errors.Wrap(err, "failed to create ledger_log schema")
	}
	return nil
}

func (j *PostgresJournal) Append(ctx context.Context, entries []model.LogEntry) error {
	for start := 0; start < len(entries); start += insertBatch {
		end := min(start+insertBatch, len(entries))
		sql, args := insertSQL(entries[start:end])
		if _, err := j.db.Exec(ctx, sql, args...); err != nil {
			return errors.Wrapf(err, "failed to append %d entries to ledger_log", end-start)
		}
	}
	return nil
}

// insertSQL builds one multi-row INSERT. Rows already present are skipped
// so a retried batch is harmless.
func insertSQL(entries []model.LogEntry) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO ledger_log (id, from_wallet, to_wallet, amount, fee, timestamp) VALUES `)
	args := make([]any, 0, len(entries)*6)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 6
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d::NUMERIC, $%d::NUMERIC, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, e.ID, e.From, e.To, e.Amount.String(), e.Fee.String(), e.Timestamp)
	}
	b.WriteString(` ON CONFLICT (id) DO NOTHING`)
	return b.String(), args
}
