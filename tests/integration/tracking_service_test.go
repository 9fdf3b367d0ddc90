package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"parttrack/internal/importer"
	"parttrack/internal/management"
	"parttrack/internal/tracking"
	pkgerrors "parttrack/pkg/errors"
	"parttrack/pkg/models"
)

func setupWorkstationWithRules(t *testing.T, infra *TestInfra, name string, req management.SaveRuleSetRequest) string {
	t.Helper()

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	workstation, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: name})
	require.NoError(t, err)

	_, err = svc.SaveRuleSet(ctx, workstation.ID, req)
	require.NoError(t, err)

	return workstation.ID
}

func insertTestParts(t *testing.T, infra *TestInfra, parts []models.Part) {
	t.Helper()

	now := time.Now().UTC()
	for i := range parts {
		if parts[i].ID == "" {
			parts[i].ID = uuid.New().String()
		}
		parts[i].CreatedAt = now
	}

	err := importer.NewRepository(infra.PostgresDB).InsertParts(context.Background(), parts)
	require.NoError(t, err)
}

func TestTrackingRepository_LoadRuleSet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	workstationID := setupWorkstationWithRules(t, infra, "smt_line_1",
		createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))

	repo := tracking.NewRepository(infra.PostgresDB)

	ruleSet, err := repo.LoadRuleSet(ctx, workstationID)
	require.NoError(t, err)
	assert.Equal(t, workstationID, ruleSet.WorkstationID)
	assert.Equal(t, int64(1), ruleSet.Version)
	require.Len(t, ruleSet.Rules, 1)
	assert.Equal(t, "AND", ruleSet.Rules[0].LogicOperator)
	require.Len(t, ruleSet.Rules[0].Conditions, 1)
	assert.Equal(t, "supplier", ruleSet.Rules[0].Conditions[0].ColumnName)
	assert.Equal(t, "equals", ruleSet.Rules[0].Conditions[0].Operator)
	require.NotNil(t, ruleSet.Rules[0].Conditions[0].Value)
	assert.Equal(t, "ACME", *ruleSet.Rules[0].Conditions[0].Value)
}

func TestTrackingRepository_LoadRuleSet_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := tracking.NewRepository(infra.PostgresDB)

	_, err := repo.LoadRuleSet(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestTrackingRepository_ListWorkstationIDs(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	mgmtRepo := management.NewRepository(infra.PostgresDB)

	first := &management.Workstation{Name: "station_a"}
	require.NoError(t, mgmtRepo.CreateWorkstation(ctx, first))
	time.Sleep(timestampDelay)
	second := &management.Workstation{Name: "station_b"}
	require.NoError(t, mgmtRepo.CreateWorkstation(ctx, second))

	ids, err := tracking.NewRepository(infra.PostgresDB).ListWorkstationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids)
}

func TestTrackingService_Decide_Tracked(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	workstationID := setupWorkstationWithRules(t, infra, "smt_line_1",
		createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))

	part := createTestPart(uuid.New().String(), "100-200-300", "ACME")
	insertTestParts(t, infra, []models.Part{*part})

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	decision, err := svc.Decide(ctx, workstationID, part)
	require.NoError(t, err)
	assert.True(t, decision.Tracked)
	assert.NotEmpty(t, decision.MatchedRuleID)
	assert.Equal(t, int64(1), decision.RuleSetVersion)
	assert.Equal(t, part.ID, decision.PartID)

	var count int
	err = infra.PostgresDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tracking_decisions WHERE part_id = $1 AND workstation_id = $2",
		part.ID, workstationID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTrackingService_Decide_Untracked(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	workstationID := setupWorkstationWithRules(t, infra, "smt_line_1",
		createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))

	part := createTestPart("", "100-200-300", "Bosch")

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	decision, err := svc.Decide(ctx, workstationID, part)
	require.NoError(t, err)
	assert.False(t, decision.Tracked)
	assert.Empty(t, decision.MatchedRuleID)
}

func TestTrackingService_Decide_CaseInsensitive(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	workstationID := setupWorkstationWithRules(t, infra, "smt_line_1",
		createTestRuleSetRequest("supplier", "equals", stringPtr("acme")))

	part := createTestPart("", "100-200-300", "ACME")

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	decision, err := svc.Decide(ctx, workstationID, part)
	require.NoError(t, err)
	assert.True(t, decision.Tracked)
}

func TestTrackingService_Decide_EmptyRuleSet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	mgmtRepo := management.NewRepository(infra.PostgresDB)
	workstation := &management.Workstation{Name: "smt_line_1"}
	require.NoError(t, mgmtRepo.CreateWorkstation(ctx, workstation))

	part := createTestPart("", "100-200-300", "ACME")

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	decision, err := svc.Decide(ctx, workstation.ID, part)
	require.NoError(t, err)
	assert.False(t, decision.Tracked)
}

func TestTrackingService_Decide_WorkstationNotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	part := createTestPart("", "100-200-300", "ACME")

	decision, err := svc.Decide(context.Background(), "00000000-0000-0000-0000-000000000000", part)
	assert.Error(t, err)
	assert.Nil(t, decision)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestTrackingService_Decide_NumericComparison(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	workstationID := setupWorkstationWithRules(t, infra, "smt_line_1",
		createTestRuleSetRequest("quantity", "greater_than", stringPtr("10")))

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	big := createTestPart("", "100-200-300", "ACME")
	big.Quantity = float64Ptr(25)
	decision, err := svc.Decide(ctx, workstationID, big)
	require.NoError(t, err)
	assert.True(t, decision.Tracked)

	small := createTestPart("", "100-200-301", "ACME")
	small.Quantity = float64Ptr(5)
	decision, err = svc.Decide(ctx, workstationID, small)
	require.NoError(t, err)
	assert.False(t, decision.Tracked)

	unset := createTestPart("", "100-200-302", "ACME")
	decision, err = svc.Decide(ctx, workstationID, unset)
	require.NoError(t, err)
	assert.False(t, decision.Tracked, "part without a quantity should not match a numeric comparison")
}

func TestTrackingService_Decide_UsesCachedRuleSet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	mgmtRepo := management.NewRepository(infra.PostgresDB)
	mgmtSvc := management.NewService(mgmtRepo)

	workstation, err := mgmtSvc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)
	_, err = mgmtSvc.SaveRuleSet(ctx, workstation.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))
	require.NoError(t, err)

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	part := createTestPart("", "100-200-300", "ACME")

	decision, err := svc.Decide(ctx, workstation.ID, part)
	require.NoError(t, err)
	assert.True(t, decision.Tracked)

	_, err = mgmtSvc.SaveRuleSet(ctx, workstation.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("Bosch")))
	require.NoError(t, err)

	decision, err = svc.Decide(ctx, workstation.ID, part)
	require.NoError(t, err)
	assert.True(t, decision.Tracked, "decision should still come from the cached rule set")
	assert.Equal(t, int64(1), decision.RuleSetVersion)

	err = svc.ReloadWorkstation(ctx, workstation.ID)
	require.NoError(t, err)

	decision, err = svc.Decide(ctx, workstation.ID, part)
	require.NoError(t, err)
	assert.False(t, decision.Tracked, "reload should pick up the replaced rule set")
	assert.Equal(t, int64(2), decision.RuleSetVersion)
}

func TestTrackingService_ReloadAll(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	firstID := setupWorkstationWithRules(t, infra, "station_a",
		createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))
	secondID := setupWorkstationWithRules(t, infra, "station_b",
		createTestRuleSetRequest("location", "is_empty", nil))

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())
	require.NoError(t, svc.ReloadAll(ctx, true))

	part := createTestPart(uuid.New().String(), "100-200-300", "ACME")
	insertTestParts(t, infra, []models.Part{*part})

	decisions, err := svc.EvaluateAll(ctx, part)
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	byWorkstation := make(map[string]tracking.Decision, len(decisions))
	for _, d := range decisions {
		byWorkstation[d.WorkstationID] = d
	}
	assert.True(t, byWorkstation[firstID].Tracked, "supplier rule should match")
	assert.True(t, byWorkstation[secondID].Tracked, "part without a location should match is_empty")
}

func TestTrackingService_RemoveWorkstation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	workstationID := setupWorkstationWithRules(t, infra, "smt_line_1",
		createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())
	require.NoError(t, svc.ReloadAll(ctx, true))

	part := createTestPart("", "100-200-300", "ACME")

	decisions, err := svc.EvaluateAll(ctx, part)
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	svc.RemoveWorkstation(ctx, workstationID)

	decisions, err = svc.EvaluateAll(ctx, part)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestTrackingService_ListTrackedParts(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	workstationID := setupWorkstationWithRules(t, infra, "smt_line_1",
		createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))

	tracked := createTestPart(uuid.New().String(), "100-200-300", "ACME")
	untracked := createTestPart(uuid.New().String(), "100-200-301", "Bosch")
	insertTestParts(t, infra, []models.Part{*tracked, *untracked})

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	_, err := svc.Decide(ctx, workstationID, tracked)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, workstationID, untracked)
	require.NoError(t, err)

	parts, err := svc.ListTrackedParts(ctx, workstationID, 100, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, tracked.ID, parts[0].Part.ID)
	assert.Equal(t, "ACME", parts[0].Part.Supplier)
	assert.True(t, parts[0].Tracked)
	assert.NotEmpty(t, parts[0].MatchedRuleID)
}

func TestTrackingService_ListTrackedParts_LatestDecisionWins(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	mgmtRepo := management.NewRepository(infra.PostgresDB)
	mgmtSvc := management.NewService(mgmtRepo)

	workstation, err := mgmtSvc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)
	_, err = mgmtSvc.SaveRuleSet(ctx, workstation.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))
	require.NoError(t, err)

	part := createTestPart(uuid.New().String(), "100-200-300", "ACME")
	insertTestParts(t, infra, []models.Part{*part})

	svc := tracking.NewService(tracking.NewRepository(infra.PostgresDB), createTestTrackingConfig(), createTestLogger())

	_, err = svc.Decide(ctx, workstation.ID, part)
	require.NoError(t, err)

	parts, err := svc.ListTrackedParts(ctx, workstation.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, parts, 1)

	_, err = mgmtSvc.SaveRuleSet(ctx, workstation.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("Bosch")))
	require.NoError(t, err)
	require.NoError(t, svc.ReloadWorkstation(ctx, workstation.ID))

	time.Sleep(timestampDelay)
	_, err = svc.Decide(ctx, workstation.ID, part)
	require.NoError(t, err)

	parts, err = svc.ListTrackedParts(ctx, workstation.ID, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, parts, "the most recent decision is untracked, so the part drops off the list")
}

func float64Ptr(f float64) *float64 {
	return &f
}
