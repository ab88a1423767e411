package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead-console/pkg/utils"
)

// PostgresRepo persists leads in Postgres via database/sql (pgx stdlib).
//
// Assumed tables:
// - leads  (id, name, phone, status, notes, duration, "timestamp", created_at)
// - config (key, value)  -- PINs live here under key 'passwords'
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS leads (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT NOT NULL,
	status     TEXT NOT NULL,
	notes      TEXT,
	duration   TEXT,
	"timestamp" TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_status_idx ON leads (status);
CREATE INDEX IF NOT EXISTS leads_phone_idx ON leads (phone);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// EnsureSchema creates the tables on first boot. Idempotent.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const leadColumns = `id, name, phone, status, COALESCE(notes,''), COALESCE(duration,''), "timestamp", created_at`

func scanLead(row interface{ Scan(...any) error }) (Lead, error) {
	var l Lead
	var ts sql.NullTime
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.Phone,
		&l.Status,
		&l.Notes,
		&l.Duration,
		&ts,
		&l.CreatedAt,
	)
	if ts.Valid {
		l.Timestamp = ts.Time
	}
	return l, err
}

func (r *PostgresRepo) FetchAll(ctx context.Context) ([]Lead, error) {
	// Batch inserts share a created_at stamp; the id tiebreaker keeps the
	// queue order stable across refreshes.
	q := fmt.Sprintf(`SELECT %s FROM leads ORDER BY created_at DESC, id`, leadColumns)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch leads: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const insertLeadSQL = `
INSERT INTO leads (id, name, phone, status, notes, duration, "timestamp", created_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7,$8)
`

func (r *PostgresRepo) Insert(ctx context.Context, l Lead) error {
	_, err := r.db.ExecContext(ctx, insertLeadSQL,
		l.ID, l.Name, l.Phone, l.Status, l.Notes, l.Duration, nullableTime(l.Timestamp), l.CreatedAt)
	return err
}

func (r *PostgresRepo) InsertBatch(ctx context.Context, rows []Lead) error {
	if len(rows) == 0 {
		return nil
	}
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		for _, l := range rows {
			if _, err := tx.ExecContext(ctx, insertLeadSQL,
				l.ID, l.Name, l.Phone, l.Status, l.Notes, l.Duration, nullableTime(l.Timestamp), l.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) Update(ctx context.Context, id string, f UpdateFields) error {
	if id == "" {
		return ErrInvalidArgument
	}

	set := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.Status != nil {
		add("status", *f.Status)
	}
	if f.Notes != nil {
		add("notes", sql.NullString{String: *f.Notes, Valid: *f.Notes != ""})
	}
	if f.Duration != nil {
		add("duration", sql.NullString{String: *f.Duration, Valid: *f.Duration != ""})
	}
	if f.Timestamp != nil {
		add(`"timestamp"`, *f.Timestamp)
	}
	if f.Name != nil {
		add("name", *f.Name)
	}
	if len(set) == 0 {
		return ErrInvalidArgument
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d`, strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepo) ResetToPending(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE leads
SET status = $1, notes = NULL, duration = NULL, "timestamp" = NULL
WHERE id = $2
`
	res, err := r.db.ExecContext(ctx, q, StatusPending, id)
	if err != nil {
		return fmt.Errorf("reset lead: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepo) DeleteByStatus(ctx context.Context, s Status) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE status = $1`, s)
	if err != nil {
		return 0, fmt.Errorf("delete by status: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads`)
	if err != nil {
		return 0, fmt.Errorf("delete all: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config: %w", err)
	}
	return v, true, nil
}

func (r *PostgresRepo) SetConfig(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO config (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`
	_, err := r.db.ExecContext(ctx, q, key, value)
	return err
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
