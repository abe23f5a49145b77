package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

// EvaluationLedger records every durable evaluation id the workflow has
// seen, with the summary shown in history.
type EvaluationLedger struct {
	db  *sql.DB
	now func() time.Time
}

func NewEvaluationLedger(db *sql.DB) *EvaluationLedger {
	return &EvaluationLedger{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (l *EvaluationLedger) EnsureSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS kpi_evaluations (
	evaluation_id BIGINT PRIMARY KEY,
	company_name TEXT NOT NULL,
	grade TEXT,
	decision TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kpi_evaluations_created_at ON kpi_evaluations(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Record is idempotent per evaluation id; a replayed event refreshes the
// summary.
func (l *EvaluationLedger) Record(ctx context.Context, summary domain.EvaluationSummary) error {
	if summary.ID <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "record evaluation", fmt.Errorf("invalid evaluation id %d", summary.ID))
	}
	created := summary.CreatedAt
	if created.IsZero() {
		created = l.now().UTC()
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO kpi_evaluations (evaluation_id, company_name, grade, decision, created_at, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (evaluation_id) DO UPDATE SET
	company_name = EXCLUDED.company_name,
	grade = EXCLUDED.grade,
	decision = EXCLUDED.decision,
	recorded_at = EXCLUDED.recorded_at
`,
		summary.ID, summary.CompanyName, summary.Grade, summary.Decision, created, l.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// List returns the most recent recorded evaluations first.
func (l *EvaluationLedger) List(ctx context.Context, limit int) ([]domain.EvaluationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT evaluation_id, company_name, COALESCE(grade, ''), COALESCE(decision, ''), created_at
FROM kpi_evaluations
ORDER BY created_at DESC, evaluation_id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.EvaluationSummary, 0, limit)
	for rows.Next() {
		var summary domain.EvaluationSummary
		if err := rows.Scan(&summary.ID, &summary.CompanyName, &summary.Grade, &summary.Decision, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

var (
	_ ports.EvaluationLedger       = (*EvaluationLedger)(nil)
	_ ports.EvaluationLedgerReader = (*EvaluationLedger)(nil)
)
