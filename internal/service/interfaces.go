// Package service defines the interfaces between the validation engine
// and its collaborators: the claim store, the reference data sources, and
// the audit log.
package service

import (
	"context"
	"time"

	"github.com/chrscato/cdx-billreview/internal/model"
)

// ClaimStore is the object-storage boundary for claim records. The engine
// decides routing; the store performs the physical moves. Move must write
// the destination before deleting the source.
type ClaimStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) (*model.Claim, error)
	Put(ctx context.Context, key string, claim *model.Claim) error
	Delete(ctx context.Context, key string) error
	Move(ctx context.Context, srcKey, dstKey string, claim *model.Claim) error
}

// RateSource resolves negotiated reimbursement rates. PPO rates are
// per-provider (in network); OTA rates are per-order one-time agreements
// (out of network). The boolean is false when no row exists.
type RateSource interface {
	PPORate(ctx context.Context, cpt, tin, modifier string) (model.Cents, bool, error)
	OTARate(ctx context.Context, orderID, cpt, modifier string) (model.Cents, bool, error)
}

// Taxonomy classifies CPT codes for clinical-equivalence matching.
type Taxonomy interface {
	ProcedureClass(ctx context.Context, cpt string) (category, subcategory string, ok bool, err error)
}

// ValidationLog records verdicts for audit and the review queue.
type ValidationLog interface {
	RecordVerdict(ctx context.Context, fileName string, verdict *model.Verdict) error
	VerdictsByStatus(ctx context.Context, status model.Status, limit int) ([]LoggedVerdict, error)
}

// LoggedVerdict is one audit row from the validation log.
type LoggedVerdict struct {
	RecordedAt     time.Time
	FileName       string
	Status         model.Status
	FailureReasons []string
}

// RetryOptions configures retry behavior for storage operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
