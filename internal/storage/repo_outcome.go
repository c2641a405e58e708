package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type outcomeRepository struct {
	db *sql.DB
}

// AppendWithTip inserts the record and advances the chain tip in one
// transaction, so the tip can never point past a row that was not written.
func (r *outcomeRepository) AppendWithTip(ctx context.Context, record *OutcomeRecord, tip string) error {
	if record == nil {
		return fmt.Errorf("append outcome: record is nil")
	}
	record.ID = ensureID(record.ID)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = nowUTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append outcome: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outcome_events(
			id, session_token, reason, modality, crypto_bound,
			confirm_latency_ms, total_latency_ms, prev_hash, event_hash, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.SessionToken, record.Reason, record.Modality, boolToInt(record.CryptoBound),
		record.ConfirmLatencyMS, record.TotalLatencyMS, record.PrevHash, record.EventHash,
		fmtTime(record.CreatedAt)); err != nil {
		return fmt.Errorf("append outcome: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, outcomeChainTipKey, tip); err != nil {
		return fmt.Errorf("append outcome: advance tip: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append outcome: commit: %w", err)
	}
	return nil
}

func (r *outcomeRepository) ChainTip(ctx context.Context) (string, error) {
	var tip string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, outcomeChainTipKey).Scan(&tip)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read outcome chain tip: %w", err)
	}
	return tip, nil
}

func (r *outcomeRepository) List(ctx context.Context, filter OutcomeFilter) ([]OutcomeRecord, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, session_token, reason, modality, crypto_bound,
		       confirm_latency_ms, total_latency_ms, prev_hash, event_hash, created_at
		FROM outcome_events
	`)
	var (
		clauses []string
		args    []any
	)
	if filter.Reason != "" {
		clauses = append(clauses, "reason = ?")
		args = append(args, filter.Reason)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, fmtTime(*filter.Since))
	}
	if len(clauses) > 0 {
		query.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	query.WriteString(" ORDER BY created_at ASC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []OutcomeRecord{}
	for rows.Next() {
		var (
			record      OutcomeRecord
			cryptoBound int
			createdAt   string
		)
		if err := rows.Scan(&record.ID, &record.SessionToken, &record.Reason, &record.Modality,
			&cryptoBound, &record.ConfirmLatencyMS, &record.TotalLatencyMS,
			&record.PrevHash, &record.EventHash, &createdAt); err != nil {
			return nil, fmt.Errorf("list outcomes: scan row: %w", err)
		}
		record.CryptoBound = cryptoBound != 0
		record.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outcomes: iterate: %w", err)
	}
	return records, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
