package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chrscato/cdx-billreview/internal/model"
)

// PPORate looks up the in-network rate for (CPT, TIN, modifier). An empty
// modifier matches rows with a NULL or empty modifier column. The boolean
// is false when no row exists.
func (s *SQLiteStorage) PPORate(ctx context.Context, cpt, tin, modifier string) (model.Cents, bool, error) {
	query := `SELECT rate FROM ppo
		WHERE proc_cd = ? AND TIN = ? AND (modifier = ? OR (? = '' AND (modifier IS NULL OR modifier = '')))
		LIMIT 1`

	var rate sql.NullFloat64
	err := s.queryRow(ctx, query, cpt, tin, modifier, modifier).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ppo rate lookup: %w", err)
	}
	if !rate.Valid {
		return 0, false, nil
	}
	return model.CentsFromFloat(rate.Float64), true, nil
}

// OTARate looks up the out-of-network one-time-agreement rate for
// (order, CPT, modifier). Rows with a NULL rate count as missing: an OTA
// row without a negotiated amount cannot price a line.
func (s *SQLiteStorage) OTARate(ctx context.Context, orderID, cpt, modifier string) (model.Cents, bool, error) {
	query := `SELECT rate FROM current_otas
		WHERE ID_Order_PrimaryKey = ? AND CPT = ? AND (modifier = ? OR (? = '' AND (modifier IS NULL OR modifier = '')))
		LIMIT 1`

	var rate sql.NullFloat64
	err := s.queryRow(ctx, query, orderID, cpt, modifier, modifier).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("ota rate lookup: %w", err)
	}
	if !rate.Valid {
		return 0, false, nil
	}
	return model.CentsFromFloat(rate.Float64), true, nil
}

// UpsertPPORate inserts an in-network rate row. Used by the loader
// tooling and by tests seeding reference data.
func (s *SQLiteStorage) UpsertPPORate(ctx context.Context, cpt, tin, modifier string, rate model.Cents) error {
	var mod any
	if modifier != "" {
		mod = modifier
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ppo (proc_cd, TIN, modifier, rate) VALUES (?, ?, ?, ?)`,
		cpt, tin, mod, rate.Dollars())
	if err != nil {
		return fmt.Errorf("failed to insert ppo rate: %w", err)
	}
	return nil
}

// UpsertOTARate inserts an out-of-network rate row.
func (s *SQLiteStorage) UpsertOTARate(ctx context.Context, orderID, cpt, modifier string, rate model.Cents) error {
	var mod any
	if modifier != "" {
		mod = modifier
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO current_otas (ID_Order_PrimaryKey, CPT, modifier, rate) VALUES (?, ?, ?, ?)`,
		orderID, cpt, mod, rate.Dollars())
	if err != nil {
		return fmt.Errorf("failed to insert ota rate: %w", err)
	}
	return nil
}
