package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"parttrack/internal/catalog"
	"parttrack/internal/management"
)

const (
	managementServiceURL = "http://localhost:8084"
)

func TestManagementServiceHealth(t *testing.T) {
	url := fmt.Sprintf("%s/health", managementServiceURL)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.NotNil(t, health["status"])
}

func TestWorkstationCRUD(t *testing.T) {
	createReq := management.CreateWorkstationRequest{
		Name:        "e2e_assembly",
		Description: "Final assembly line",
	}

	workstationID := createWorkstation(t, createReq)
	defer deleteWorkstation(t, workstationID)

	workstation := getWorkstation(t, workstationID)
	assert.Equal(t, createReq.Name, workstation.Name)
	assert.Equal(t, createReq.Description, workstation.Description)

	workstations := listWorkstations(t)
	assert.GreaterOrEqual(t, len(workstations), 1)
	found := false
	for _, w := range workstations {
		if w.ID == workstationID {
			found = true
			break
		}
	}
	assert.True(t, found, "created workstation should be in the list")

	updateReq := management.UpdateWorkstationRequest{
		Name:        stringPtr("e2e_assembly_renamed"),
		Description: stringPtr("Moved to hall 2"),
	}
	updated := updateWorkstation(t, workstationID, updateReq)
	assert.Equal(t, *updateReq.Name, updated.Name)
	assert.Equal(t, *updateReq.Description, updated.Description)
}

func TestRuleSetSaveAndVersioning(t *testing.T) {
	workstationID := createWorkstation(t, management.CreateWorkstationRequest{Name: "e2e_rules"})
	defer deleteWorkstation(t, workstationID)

	saveReq := ruleSetRequest("supplier", "equals", stringPtr("ACME"))
	saved := putRuleSet(t, workstationID, saveReq, "")
	assert.Equal(t, int64(1), saved.Version)
	require.Len(t, saved.Rules, 1)
	assert.NotEmpty(t, saved.Rules[0].ID)

	ruleSet, etag := getRuleSet(t, workstationID)
	assert.Equal(t, int64(1), ruleSet.Version)
	assert.Equal(t, `"1"`, etag)

	updated := putRuleSet(t, workstationID, ruleSetRequest("supplier", "equals", stringPtr("Bosch")), etag)
	assert.Equal(t, int64(2), updated.Version)

	// The first writer bumped the version, so the same ETag must now be stale.
	resp := putRuleSetWithError(t, workstationID, ruleSetRequest("supplier", "equals", stringPtr("Siemens")), etag)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	current, _ := getRuleSet(t, workstationID)
	require.Len(t, current.Rules, 1)
	require.Len(t, current.Rules[0].Conditions, 1)
	assert.Equal(t, "Bosch", *current.Rules[0].Conditions[0].Value)

	revisions := getRuleSetRevisions(t, workstationID)
	require.GreaterOrEqual(t, len(revisions), 2)
	assert.Equal(t, int64(2), revisions[0].Version)

	revision := getRuleSetRevision(t, workstationID, 1)
	assert.Equal(t, int64(1), revision.Version)
	assert.Contains(t, revision.Snapshot, "ACME")
}

func TestAuditLogs(t *testing.T) {
	workstationID := createWorkstation(t, management.CreateWorkstationRequest{Name: "e2e_audit"})
	defer deleteWorkstation(t, workstationID)

	updateReq := management.UpdateWorkstationRequest{
		Name: stringPtr("e2e_audit_renamed"),
	}
	_ = updateWorkstation(t, workstationID, updateReq)

	time.Sleep(1 * time.Second)

	entityLogs := getAuditLogsWithFilter(t, workstationID, "")
	assert.GreaterOrEqual(t, len(entityLogs), 2)

	allLogs := getAllAuditLogs(t)
	assert.GreaterOrEqual(t, len(allLogs), 1)

	typedLogs := getAuditLogsWithFilter(t, "", "workstation")
	assert.GreaterOrEqual(t, len(typedLogs), 1)
}

func TestCatalog(t *testing.T) {
	columns := getCatalogColumns(t)
	assert.GreaterOrEqual(t, len(columns), 1)
	byName := make(map[string]catalog.Column, len(columns))
	for _, column := range columns {
		byName[column.Name] = column
	}
	assert.Equal(t, catalog.KindString, byName["supplier"].Kind)
	assert.Equal(t, catalog.KindNumber, byName["quantity"].Kind)
	assert.Equal(t, catalog.KindDate, byName["delivery_date"].Kind)

	operators := getCatalogOperators(t)
	assert.GreaterOrEqual(t, len(operators), 1)
	specs := make(map[string]catalog.OperatorSpec, len(operators))
	for _, op := range operators {
		specs[op.Name] = op
	}
	assert.True(t, specs["equals"].RequiresValue)
	assert.False(t, specs["is_empty"].RequiresValue)
	assert.NotContains(t, specs["greater_than"].Kinds, catalog.KindString)
}

func TestImportProfilesCRUD(t *testing.T) {
	createReq := management.CreateImportProfileRequest{
		Name:   "e2e_supplier_csv",
		Format: "csv",
		ColumnMappings: []management.ColumnMapping{
			{Source: "Artikelnummer", Target: "article_code", Required: true},
			{Source: "Lieferant", Target: "supplier"},
		},
	}

	profileID := createImportProfile(t, createReq)
	defer deleteImportProfile(t, profileID)

	profile := getImportProfile(t, profileID)
	assert.Equal(t, createReq.Name, profile.Name)
	assert.Equal(t, createReq.Format, profile.Format)
	assert.True(t, profile.Enabled)
	assert.True(t, profile.HasHeaderRow)

	profiles := listImportProfiles(t)
	assert.GreaterOrEqual(t, len(profiles), 1)
	found := false
	for _, p := range profiles {
		if p.ID == profileID {
			found = true
			break
		}
	}
	assert.True(t, found, "created profile should be in the list")

	updateReq := management.UpdateImportProfileRequest{
		Name:    stringPtr("e2e_supplier_csv_v2"),
		Enabled: boolPtr(false),
	}
	updated := updateImportProfile(t, profileID, updateReq)
	assert.Equal(t, *updateReq.Name, updated.Name)
	assert.False(t, updated.Enabled)
}

func TestValidationErrors(t *testing.T) {
	invalidWorkstation := management.CreateWorkstationRequest{
		Name: "",
	}
	resp := createWorkstationWithError(t, invalidWorkstation)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	workstationID := createWorkstation(t, management.CreateWorkstationRequest{Name: "e2e_validation"})
	defer deleteWorkstation(t, workstationID)

	badColumn := ruleSetRequest("warehouse", "equals", stringPtr("A1"))
	resp = putRuleSetWithError(t, workstationID, badColumn, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	badOperator := ruleSetRequest("supplier", "matches_regex", stringPtr("ACME.*"))
	resp = putRuleSetWithError(t, workstationID, badOperator, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	invalidProfile := management.CreateImportProfileRequest{
		Name:   "e2e_bad_profile",
		Format: "pdf",
		ColumnMappings: []management.ColumnMapping{
			{Source: "A", Target: "article_code"},
		},
	}
	resp = createImportProfileWithError(t, invalidProfile)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func ruleSetRequest(column, operator string, value *string) management.SaveRuleSetRequest {
	return management.SaveRuleSetRequest{
		Rules: []management.SaveRuleRequest{
			{
				LogicOperator: "AND",
				Conditions: []management.SaveConditionRequest{
					{ColumnName: column, Operator: operator, Value: value},
				},
			},
		},
	}
}

func createWorkstation(t *testing.T, req management.CreateWorkstationRequest) string {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/workstations", managementServiceURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var workstation management.Workstation
	err = json.NewDecoder(resp.Body).Decode(&workstation)
	require.NoError(t, err)

	return workstation.ID
}

func getWorkstation(t *testing.T, id string) management.Workstation {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workstations/%s", managementServiceURL, id))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workstation management.Workstation
	err = json.NewDecoder(resp.Body).Decode(&workstation)
	require.NoError(t, err)

	return workstation
}

func listWorkstations(t *testing.T) []management.Workstation {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workstations", managementServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workstations []management.Workstation
	err = json.NewDecoder(resp.Body).Decode(&workstations)
	require.NoError(t, err)

	return workstations
}

func updateWorkstation(t *testing.T, id string, req management.UpdateWorkstationRequest) management.Workstation {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		"PUT",
		fmt.Sprintf("%s/api/v1/workstations/%s", managementServiceURL, id),
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workstation management.Workstation
	err = json.NewDecoder(resp.Body).Decode(&workstation)
	require.NoError(t, err)

	return workstation
}

func deleteWorkstation(t *testing.T, id string) {
	t.Helper()

	httpReq, err := http.NewRequest(
		"DELETE",
		fmt.Sprintf("%s/api/v1/workstations/%s", managementServiceURL, id),
		nil,
	)
	require.NoError(t, err)

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func getRuleSet(t *testing.T, workstationID string) (management.RuleSet, string) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workstations/%s/rules", managementServiceURL, workstationID))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ruleSet management.RuleSet
	err = json.NewDecoder(resp.Body).Decode(&ruleSet)
	require.NoError(t, err)

	return ruleSet, resp.Header.Get("ETag")
}

func putRuleSet(t *testing.T, workstationID string, req management.SaveRuleSetRequest, ifMatch string) management.RuleSet {
	t.Helper()

	resp := doPutRuleSet(t, workstationID, req, ifMatch)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ruleSet management.RuleSet
	err := json.NewDecoder(resp.Body).Decode(&ruleSet)
	require.NoError(t, err)

	return ruleSet
}

func putRuleSetWithError(t *testing.T, workstationID string, req management.SaveRuleSetRequest, ifMatch string) *http.Response {
	t.Helper()
	return doPutRuleSet(t, workstationID, req, ifMatch)
}

func doPutRuleSet(t *testing.T, workstationID string, req management.SaveRuleSetRequest, ifMatch string) *http.Response {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		"PUT",
		fmt.Sprintf("%s/api/v1/workstations/%s/rules", managementServiceURL, workstationID),
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if ifMatch != "" {
		httpReq.Header.Set("If-Match", ifMatch)
	}

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)

	return resp
}

func getRuleSetRevisions(t *testing.T, workstationID string) []management.RuleSetRevision {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workstations/%s/rules/revisions", managementServiceURL, workstationID))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var revisions []management.RuleSetRevision
	err = json.NewDecoder(resp.Body).Decode(&revisions)
	require.NoError(t, err)

	return revisions
}

func getRuleSetRevision(t *testing.T, workstationID string, version int64) management.RuleSetRevision {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/workstations/%s/rules/revisions/%d", managementServiceURL, workstationID, version))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var revision management.RuleSetRevision
	err = json.NewDecoder(resp.Body).Decode(&revision)
	require.NoError(t, err)

	return revision
}

func getAllAuditLogs(t *testing.T) []management.AuditLog {
	t.Helper()
	return getAuditLogsWithFilter(t, "", "")
}

func getAuditLogsWithFilter(t *testing.T, entityID, entityType string) []management.AuditLog {
	t.Helper()

	url := fmt.Sprintf("%s/api/v1/audit/logs", managementServiceURL)
	if entityID != "" {
		url += fmt.Sprintf("?entity_id=%s", entityID)
	}
	if entityType != "" {
		if strings.Contains(url, "?") {
			url += "&"
		} else {
			url += "?"
		}
		url += fmt.Sprintf("entity_type=%s", entityType)
	}

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs []management.AuditLog
	err = json.NewDecoder(resp.Body).Decode(&logs)
	require.NoError(t, err)

	return logs
}

func getCatalogColumns(t *testing.T) []catalog.Column {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/catalog/columns", managementServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var columns []catalog.Column
	err = json.NewDecoder(resp.Body).Decode(&columns)
	require.NoError(t, err)

	return columns
}

func getCatalogOperators(t *testing.T) []catalog.OperatorSpec {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/catalog/operators", managementServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var operators []catalog.OperatorSpec
	err = json.NewDecoder(resp.Body).Decode(&operators)
	require.NoError(t, err)

	return operators
}

func createImportProfile(t *testing.T, req management.CreateImportProfileRequest) string {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/import-profiles", managementServiceURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var profile management.ImportProfile
	err = json.NewDecoder(resp.Body).Decode(&profile)
	require.NoError(t, err)

	return profile.ID
}

func getImportProfile(t *testing.T, id string) management.ImportProfile {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/import-profiles/%s", managementServiceURL, id))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile management.ImportProfile
	err = json.NewDecoder(resp.Body).Decode(&profile)
	require.NoError(t, err)

	return profile
}

func listImportProfiles(t *testing.T) []management.ImportProfile {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/import-profiles", managementServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profiles []management.ImportProfile
	err = json.NewDecoder(resp.Body).Decode(&profiles)
	require.NoError(t, err)

	return profiles
}

func updateImportProfile(t *testing.T, id string, req management.UpdateImportProfileRequest) management.ImportProfile {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		"PUT",
		fmt.Sprintf("%s/api/v1/import-profiles/%s", managementServiceURL, id),
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var profile management.ImportProfile
	err = json.NewDecoder(resp.Body).Decode(&profile)
	require.NoError(t, err)

	return profile
}

func deleteImportProfile(t *testing.T, id string) {
	t.Helper()

	httpReq, err := http.NewRequest(
		"DELETE",
		fmt.Sprintf("%s/api/v1/import-profiles/%s", managementServiceURL, id),
		nil,
	)
	require.NoError(t, err)

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func createWorkstationWithError(t *testing.T, req management.CreateWorkstationRequest) *http.Response {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/workstations", managementServiceURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)

	return resp
}

func createImportProfileWithError(t *testing.T, req management.CreateImportProfileRequest) *http.Response {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/import-profiles", managementServiceURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)

	return resp
}

func boolPtr(b bool) *bool {
	return &b
}

func stringPtr(s string) *string {
	return &s
}
