package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ProcedureClass returns the (category, subcategory) pair for a CPT code
// from the procedure taxonomy. ok is false when the code has no entry or
// either column is empty, in which case the clinical matcher skips it.
func (s *SQLiteStorage) ProcedureClass(ctx context.Context, cpt string) (category, subcategory string, ok bool, err error) {
	query := `SELECT category, subcategory FROM dim_proc WHERE proc_cd = ?`

	var cat, sub sql.NullString
	scanErr := s.queryRow(ctx, query, cpt).Scan(&cat, &sub)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if scanErr != nil {
		return "", "", false, fmt.Errorf("taxonomy lookup: %w", scanErr)
	}

	if !cat.Valid || !sub.Valid || cat.String == "" || sub.String == "" {
		return "", "", false, nil
	}
	return cat.String, sub.String, true, nil
}

// UpsertProcedureClass inserts or replaces a taxonomy row.
func (s *SQLiteStorage) UpsertProcedureClass(ctx context.Context, cpt, category, subcategory string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dim_proc (proc_cd, category, subcategory) VALUES (?, ?, ?)
		 ON CONFLICT(proc_cd) DO UPDATE SET category = excluded.category, subcategory = excluded.subcategory`,
		cpt, category, subcategory)
	if err != nil {
		return fmt.Errorf("failed to upsert taxonomy row: %w", err)
	}
	return nil
}
