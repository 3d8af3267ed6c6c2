package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrscato/cdx-billreview/internal/model"
)

func newTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	db, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Re-running is a no-op.
	require.NoError(t, db.Migrate(context.Background()))
}

func TestNewSQLiteStorageEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	assert.Error(t, err)
}

func TestPPORate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertPPORate(ctx, "73721", "123456789", "", 45000))
	require.NoError(t, db.UpsertPPORate(ctx, "73721", "123456789", "TC", 30000))

	tests := []struct {
		name      string
		cpt       string
		tin       string
		modifier  string
		wantRate  model.Cents
		wantFound bool
	}{
		{name: "base rate", cpt: "73721", tin: "123456789", modifier: "", wantRate: 45000, wantFound: true},
		{name: "modifier-specific rate", cpt: "73721", tin: "123456789", modifier: "TC", wantRate: 30000, wantFound: true},
		{name: "unknown modifier", cpt: "73721", tin: "123456789", modifier: "26", wantFound: false},
		{name: "unknown cpt", cpt: "70553", tin: "123456789", modifier: "", wantFound: false},
		{name: "unknown tin", cpt: "73721", tin: "999999999", modifier: "", wantFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, found, err := db.PPORate(ctx, tt.cpt, tt.tin, tt.modifier)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, tt.wantRate, rate)
			}
		})
	}
}

func TestPPORateEmptyModifierMatchesNull(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Loader writes empty modifiers as NULL; the lookup must still find
	// the row when asked without a modifier.
	require.NoError(t, db.UpsertPPORate(ctx, "72148", "123456789", "", 25000))

	rate, found, err := db.PPORate(ctx, "72148", "123456789", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, model.Cents(25000), rate)
}

func TestOTARate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertOTARate(ctx, "ORD-1", "73721", "", 52500))

	rate, found, err := db.OTARate(ctx, "ORD-1", "73721", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, model.Cents(52500), rate)

	_, found, err = db.OTARate(ctx, "ORD-2", "73721", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOTARateNullRateIsMissing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.db.ExecContext(ctx,
		`INSERT INTO current_otas (ID_Order_PrimaryKey, CPT, modifier, rate) VALUES (?, ?, NULL, NULL)`,
		"ORD-1", "73721")
	require.NoError(t, err)

	_, found, err := db.OTARate(ctx, "ORD-1", "73721", "")
	require.NoError(t, err)
	assert.False(t, found, "an OTA row without a negotiated amount cannot price a line")
}

func TestProcedureClass(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProcedureClass(ctx, "73721", "MRI", "Lower Extremity"))

	category, subcategory, ok, err := db.ProcedureClass(ctx, "73721")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "MRI", category)
	assert.Equal(t, "Lower Extremity", subcategory)

	_, _, ok, err = db.ProcedureClass(ctx, "00000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcedureClassEmptyColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProcedureClass(ctx, "73721", "MRI", ""))

	_, _, ok, err := db.ProcedureClass(ctx, "73721")
	require.NoError(t, err)
	assert.False(t, ok, "a partial taxonomy row cannot support equivalence matching")
}

func TestProcedureClassUpsertReplaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProcedureClass(ctx, "73721", "MRI", "Lower Extremity"))
	require.NoError(t, db.UpsertProcedureClass(ctx, "73721", "MRI", "Knee"))

	_, subcategory, ok, err := db.ProcedureClass(ctx, "73721")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Knee", subcategory)
}

func TestValidationLog(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.RecordVerdict(ctx, "claim_a.json", &model.Verdict{
		Status:         model.StatusFail,
		FailureReasons: []string{"UNMATCHED_CPT: 99999"},
	}))
	require.NoError(t, db.RecordVerdict(ctx, "claim_b.json", &model.Verdict{
		Status: model.StatusPass,
	}))
	require.NoError(t, db.RecordVerdict(ctx, "claim_c.json", &model.Verdict{
		Status:         model.StatusFail,
		FailureReasons: []string{"RATE_MISSING: 73721"},
	}))

	fails, err := db.VerdictsByStatus(ctx, model.StatusFail, 0)
	require.NoError(t, err)
	require.Len(t, fails, 2)
	assert.Equal(t, "claim_c.json", fails[0].FileName, "newest first")
	assert.Equal(t, "claim_a.json", fails[1].FileName)
	assert.Equal(t, []string{"RATE_MISSING: 73721"}, fails[0].FailureReasons)
	assert.False(t, fails[0].RecordedAt.IsZero())

	passes, err := db.VerdictsByStatus(ctx, model.StatusPass, 0)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, "claim_b.json", passes[0].FileName)
}

func TestValidationLogLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, name := range []string{"a.json", "b.json", "c.json"} {
		require.NoError(t, db.RecordVerdict(ctx, name, &model.Verdict{Status: model.StatusFail}))
	}

	fails, err := db.VerdictsByStatus(ctx, model.StatusFail, 2)
	require.NoError(t, err)
	assert.Len(t, fails, 2)
}
