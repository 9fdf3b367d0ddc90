package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"parttrack/internal/management"
	pkgerrors "parttrack/pkg/errors"
)

func TestManagementService_CreateWorkstation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	req := management.CreateWorkstationRequest{
		Name:        "smt_line_1",
		Description: "SMT line 1",
	}

	workstation, err := svc.CreateWorkstation(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, workstation.ID)
	assert.Equal(t, req.Name, workstation.Name)
	assert.Equal(t, req.Description, workstation.Description)
}

func TestManagementService_CreateWorkstation_ValidationError_EmptyName(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	req := management.CreateWorkstationRequest{
		Name: "",
	}

	workstation, err := svc.CreateWorkstation(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, workstation)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "name is required")
}

func TestManagementService_CreateWorkstation_DuplicateName(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	req := management.CreateWorkstationRequest{Name: "smt_line_1"}

	_, err := svc.CreateWorkstation(ctx, req)
	require.NoError(t, err)

	workstation, err := svc.CreateWorkstation(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, workstation)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestManagementService_GetWorkstation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	retrieved, err := svc.GetWorkstation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)
	assert.Equal(t, created.Name, retrieved.Name)
}

func TestManagementService_GetWorkstation_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	workstation, err := svc.GetWorkstation(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Error(t, err)
	assert.Nil(t, workstation)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_ListWorkstations(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	_, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "station_a"})
	require.NoError(t, err)
	time.Sleep(timestampDelay)
	_, err = svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "station_b"})
	require.NoError(t, err)

	workstations, err := svc.ListWorkstations(ctx, 100, 0)
	require.NoError(t, err)
	assert.Len(t, workstations, 2)
}

func TestManagementService_UpdateWorkstation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	updateReq := management.UpdateWorkstationRequest{
		Name:        stringPtr("smt_line_renamed"),
		Description: stringPtr("rework station"),
	}

	updated, err := svc.UpdateWorkstation(ctx, created.ID, updateReq)
	require.NoError(t, err)
	assert.Equal(t, "smt_line_renamed", updated.Name)
	assert.Equal(t, "rework station", updated.Description)
}

func TestManagementService_UpdateWorkstation_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	updateReq := management.UpdateWorkstationRequest{
		Name: stringPtr("renamed"),
	}

	updated, err := svc.UpdateWorkstation(ctx, "00000000-0000-0000-0000-000000000000", updateReq)
	assert.Error(t, err)
	assert.Nil(t, updated)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_DeleteWorkstation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	err = svc.DeleteWorkstation(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.GetWorkstation(ctx, created.ID)
	assert.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_DeleteWorkstation_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	err := svc.DeleteWorkstation(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_SaveRuleSet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	req := createTestRuleSetRequest("supplier", "equals", stringPtr("ACME"))

	ruleSet, err := svc.SaveRuleSet(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, ruleSet.WorkstationID)
	assert.Equal(t, int64(1), ruleSet.Version)
	require.Len(t, ruleSet.Rules, 1)
	assert.Equal(t, "AND", ruleSet.Rules[0].LogicOperator)
}

func TestManagementService_SaveRuleSet_ValidationError_UnknownColumn(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	req := createTestRuleSetRequest("no_such_column", "equals", stringPtr("x"))

	ruleSet, err := svc.SaveRuleSet(ctx, created.ID, req)
	assert.Error(t, err)
	assert.Nil(t, ruleSet)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "unknown column")
}

func TestManagementService_SaveRuleSet_ValidationError_UnknownOperator(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	req := createTestRuleSetRequest("supplier", "matches_regex", stringPtr("x"))

	ruleSet, err := svc.SaveRuleSet(ctx, created.ID, req)
	assert.Error(t, err)
	assert.Nil(t, ruleSet)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "unknown operator")
}

func TestManagementService_SaveRuleSet_ValidationError_MissingValue(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	req := createTestRuleSetRequest("supplier", "equals", nil)

	ruleSet, err := svc.SaveRuleSet(ctx, created.ID, req)
	assert.Error(t, err)
	assert.Nil(t, ruleSet)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "requires a value")
}

func TestManagementService_SaveRuleSet_ValidationError_ValueOnEmptyCheck(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	req := createTestRuleSetRequest("location", "is_empty", stringPtr("x"))

	ruleSet, err := svc.SaveRuleSet(ctx, created.ID, req)
	assert.Error(t, err)
	assert.Nil(t, ruleSet)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "does not take a value")
}

func TestManagementService_SaveRuleSet_ValidationError_NonNumericValue(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	req := createTestRuleSetRequest("quantity", "greater_than", stringPtr("lots"))

	ruleSet, err := svc.SaveRuleSet(ctx, created.ID, req)
	assert.Error(t, err)
	assert.Nil(t, ruleSet)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "not a number")
}

func TestManagementService_SaveRuleSet_VersionConflict(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	req := createTestRuleSetRequest("supplier", "equals", stringPtr("ACME"))
	_, err = svc.SaveRuleSet(ctx, created.ID, req)
	require.NoError(t, err)

	stale := createTestRuleSetRequest("supplier", "equals", stringPtr("Bosch"))
	stale.ExpectedVersion = int64Ptr(0)

	ruleSet, err := svc.SaveRuleSet(ctx, created.ID, stale)
	assert.Error(t, err)
	assert.Nil(t, ruleSet)
	assert.True(t, pkgerrors.IsConflict(err))

	current := createTestRuleSetRequest("supplier", "equals", stringPtr("Bosch"))
	current.ExpectedVersion = int64Ptr(1)

	ruleSet, err = svc.SaveRuleSet(ctx, created.ID, current)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ruleSet.Version)
}

func TestManagementService_SaveRuleSet_WorkstationNotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	req := createTestRuleSetRequest("supplier", "equals", stringPtr("ACME"))

	ruleSet, err := svc.SaveRuleSet(ctx, "00000000-0000-0000-0000-000000000000", req)
	assert.Error(t, err)
	assert.Nil(t, ruleSet)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_SaveRuleSet_WithVersioning(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	versioningRepo := management.NewVersioningRepository(infra.PostgresDB)
	svc := management.NewService(repo, management.WithVersioning(versioningRepo))

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	_, err = svc.SaveRuleSet(ctx, created.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))
	require.NoError(t, err)
	_, err = svc.SaveRuleSet(ctx, created.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("Bosch")))
	require.NoError(t, err)

	revisions, err := svc.GetRuleSetRevisions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, int64(2), revisions[0].Version)
	assert.Equal(t, int64(1), revisions[1].Version)

	revision, err := svc.GetRuleSetRevision(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), revision.Version)
	assert.Contains(t, revision.Snapshot, "ACME")
}

func TestManagementService_GetRuleSetRevision_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	versioningRepo := management.NewVersioningRepository(infra.PostgresDB)
	svc := management.NewService(repo, management.WithVersioning(versioningRepo))

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	revision, err := svc.GetRuleSetRevision(ctx, created.ID, 42)
	assert.Error(t, err)
	assert.Nil(t, revision)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_GetRuleSetRevisions_WithoutVersioning(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	revisions, err := svc.GetRuleSetRevisions(ctx, "any")
	assert.Error(t, err)
	assert.Nil(t, revisions)
}

func TestManagementService_GetAuditLogs(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	versioningRepo := management.NewVersioningRepository(infra.PostgresDB)
	svc := management.NewService(repo, management.WithVersioning(versioningRepo))

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	_, err = svc.SaveRuleSet(ctx, created.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))
	require.NoError(t, err)

	logs, err := svc.GetAuditLogs(ctx, &created.ID, "", 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(logs), 2, "Should have workstation create and rule set replace entries")

	hasCreate := false
	hasReplace := false
	for _, log := range logs {
		if log.Action == "create" {
			hasCreate = true
		}
		if log.Action == "replace" {
			hasReplace = true
		}
	}
	assert.True(t, hasCreate, "Should have create action")
	assert.True(t, hasReplace, "Should have replace action")
}

func TestManagementService_GetAuditLogs_FilterByEntityType(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	versioningRepo := management.NewVersioningRepository(infra.PostgresDB)
	svc := management.NewService(repo, management.WithVersioning(versioningRepo))

	created, err := svc.CreateWorkstation(ctx, management.CreateWorkstationRequest{Name: "smt_line_1"})
	require.NoError(t, err)

	_, err = svc.SaveRuleSet(ctx, created.ID, createTestRuleSetRequest("supplier", "equals", stringPtr("ACME")))
	require.NoError(t, err)

	logs, err := svc.GetAuditLogs(ctx, nil, "ruleset", 100)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	for _, log := range logs {
		assert.Equal(t, "ruleset", log.EntityType)
	}
}

func TestManagementService_GetAuditLogs_WithoutVersioning(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	logs, err := svc.GetAuditLogs(ctx, nil, "", 100)
	assert.Error(t, err)
	assert.Nil(t, logs)
}

func TestManagementService_ImportProfileCRUD(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	profileRepo := management.NewProfileRepository(infra.MongoDB)
	svc := management.NewService(repo, management.WithImportProfiles(profileRepo))

	req := management.CreateImportProfileRequest{
		Name:   "supplier_csv",
		Format: "csv",
		ColumnMappings: []management.ColumnMapping{
			{Source: "Artikelnummer", Target: "article_code", Required: true},
			{Source: "Lieferant", Target: "supplier"},
		},
	}

	created, err := svc.CreateImportProfile(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, req.Name, created.Name)
	assert.True(t, created.Enabled)
	assert.True(t, created.HasHeaderRow)

	retrieved, err := svc.GetImportProfile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, retrieved.ID)
	assert.Len(t, retrieved.ColumnMappings, 2)

	profiles, err := svc.ListImportProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	updated, err := svc.UpdateImportProfile(ctx, created.ID, management.UpdateImportProfileRequest{
		Name:    stringPtr("supplier_csv_v2"),
		Enabled: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "supplier_csv_v2", updated.Name)
	assert.False(t, updated.Enabled)

	err = svc.DeleteImportProfile(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.GetImportProfile(ctx, created.ID)
	assert.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestManagementService_CreateImportProfile_ValidationError_BadFormat(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	profileRepo := management.NewProfileRepository(infra.MongoDB)
	svc := management.NewService(repo, management.WithImportProfiles(profileRepo))

	req := management.CreateImportProfileRequest{
		Name:   "supplier_export",
		Format: "pdf",
		ColumnMappings: []management.ColumnMapping{
			{Source: "A", Target: "article_code"},
		},
	}

	profile, err := svc.CreateImportProfile(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, profile)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestManagementService_CreateImportProfile_ValidationError_InvalidCEL(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	profileRepo := management.NewProfileRepository(infra.MongoDB)
	svc := management.NewService(repo, management.WithImportProfiles(profileRepo))

	req := management.CreateImportProfileRequest{
		Name:   "supplier_csv",
		Format: "csv",
		ColumnMappings: []management.ColumnMapping{
			{Source: "A", Target: "article_code", Expression: "invalid syntax!!!"},
		},
	}

	profile, err := svc.CreateImportProfile(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, profile)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "invalid CEL expression")
}

func TestManagementService_CreateImportProfile_WithoutProfileRepo(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	req := management.CreateImportProfileRequest{
		Name:   "supplier_csv",
		Format: "csv",
		ColumnMappings: []management.ColumnMapping{
			{Source: "A", Target: "article_code"},
		},
	}

	profile, err := svc.CreateImportProfile(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, profile)
}

func TestManagementService_CreateWorkstation_ContextCancellation(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := management.NewRepository(infra.PostgresDB)
	svc := management.NewService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := management.CreateWorkstationRequest{Name: "smt_line_1"}

	workstation, err := svc.CreateWorkstation(ctx, req)
	assert.Error(t, err)
	assert.Nil(t, workstation)
	assert.Contains(t, err.Error(), "context canceled")
}

func boolPtr(b bool) *bool {
	return &b
}

func stringPtr(s string) *string {
	return &s
}

func int64Ptr(i int64) *int64 {
	return &i
}
