package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/service"
)

// RecordVerdict appends one validation outcome to the audit log.
func (s *SQLiteStorage) RecordVerdict(ctx context.Context, fileName string, verdict *model.Verdict) error {
	reasons, err := json.Marshal(verdict.FailureReasons)
	if err != nil {
		return fmt.Errorf("failed to encode failure reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validations (file_name, status, failure_reasons) VALUES (?, ?, ?)`,
		fileName, string(verdict.Status), string(reasons))
	if err != nil {
		return fmt.Errorf("failed to record verdict: %w", err)
	}
	return nil
}

// VerdictsByStatus returns logged verdicts with the given status, newest
// first. The review queue reads FAIL rows through this. A limit of zero
// or less means no limit.
func (s *SQLiteStorage) VerdictsByStatus(ctx context.Context, status model.Status, limit int) ([]service.LoggedVerdict, error) {
	query := `SELECT file_name, status, failure_reasons, recorded_at
		 FROM validations WHERE status = ? ORDER BY recorded_at DESC, id DESC`
	args := []any{string(status)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var verdicts []service.LoggedVerdict
	for rows.Next() {
		var v service.LoggedVerdict
		var statusStr, reasonsJSON string
		if err := rows.Scan(&v.FileName, &statusStr, &reasonsJSON, &v.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict row: %w", err)
		}
		v.Status = model.Status(statusStr)
		if reasonsJSON != "" {
			if err := json.Unmarshal([]byte(reasonsJSON), &v.FailureReasons); err != nil {
				return nil, fmt.Errorf("failed to decode failure reasons: %w", err)
			}
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
