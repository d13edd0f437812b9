package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
)

// PostgresLedger backs the trail with postgres for durability beyond the
// process lifetime. The contract only requires in-process durability, so this
// store is opt-in via DATABASE_URL.
type PostgresLedger struct {
	db *sql.DB
}

// OpenPostgres connects and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresLedger, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	l := &PostgresLedger{db: db}
	if err := l.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresLedger wraps an existing connection (used by the integration
// tests, which own the container lifecycle).
func NewPostgresLedger(ctx context.Context, db *sql.DB) (*PostgresLedger, error) {
	l := &PostgresLedger{db: db}
	if err := l.migrate(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PostgresLedger) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_records (
			id             BIGSERIAL PRIMARY KEY,
			ts             TEXT NOT NULL,
			action         TEXT NOT NULL,
			signature      TEXT NOT NULL DEFAULT '',
			program_id     TEXT NOT NULL DEFAULT '',
			namespace      TEXT NOT NULL DEFAULT '',
			address        TEXT NOT NULL DEFAULT '',
			target_address TEXT NOT NULL DEFAULT '',
			amount         TEXT NOT NULL DEFAULT '',
			reason         TEXT NOT NULL DEFAULT '',
			actor          TEXT NOT NULL DEFAULT '',
			raw_logs       JSONB,
			error_info     TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("create audit_records: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Close() error { return l.db.Close() }

// Append inserts the record with a timestamp assigned here, not in SQL, so
// the rendered format matches the in-memory store exactly.
func (l *PostgresLedger) Append(ctx context.Context, record Record) error {
	record.Timestamp = Now()

	var rawLogs any
	if len(record.RawLogs) > 0 {
		b, err := json.Marshal(record.RawLogs)
		if err != nil {
			return fmt.Errorf("marshal raw logs: %w", err)
		}
		rawLogs = b
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_records
			(ts, action, signature, program_id, namespace, address, target_address, amount, reason, actor, raw_logs, error_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.Timestamp, string(record.Type), record.Signature, record.ProgramID,
		record.Namespace, record.Address, record.TargetAddress, record.Amount,
		record.Reason, record.Actor, rawLogs, record.ErrorInfo,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Query returns matching records in reverse append order. Filters are ANDed
// in SQL; timestamp bounds rely on the fixed-width format sorting correctly
// as text.
func (l *PostgresLedger) Query(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT ts, action, signature, program_id, namespace, address, target_address, amount, reason, actor, raw_logs, error_info
		FROM audit_records
		WHERE ($1 = '' OR action = $1)
		  AND ($2 = '' OR namespace = $2)
		  AND ($3 = '' OR ts >= $3)
		  AND ($4 = '' OR ts <= $4)
		ORDER BY id DESC`

	rows, err := l.db.QueryContext(ctx, query,
		string(filter.Action), filter.Namespace, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			action  string
			rawLogs []byte
		)
		err := rows.Scan(&r.Timestamp, &action, &r.Signature, &r.ProgramID,
			&r.Namespace, &r.Address, &r.TargetAddress, &r.Amount,
			&r.Reason, &r.Actor, &rawLogs, &r.ErrorInfo)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Type = Action(action)
		if len(rawLogs) > 0 {
			if err := json.Unmarshal(rawLogs, &r.RawLogs); err != nil {
				return nil, fmt.Errorf("unmarshal raw logs: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}
