package management

import (
	"context"
	"encoding/json"
	"strings"

	"parttrack/internal/constants"
	pkgerrors "parttrack/pkg/errors"
	"parttrack/pkg/logging"
	"parttrack/pkg/metrics"
	"parttrack/pkg/models"
)

const (
	entityTypeWorkstation   = "workstation"
	entityTypeRuleSet       = "ruleset"
	entityTypeImportProfile = "import_profile"
)

type service struct {
	repo                Repository
	profileRepo         ProfileRepository
	versioningRepo      VersioningRepository
	configEventProducer *ConfigEventProducer
	auditEnabled        bool
}

type ServiceOption func(*service)

func WithVersioning(versioningRepo VersioningRepository) ServiceOption {
	return func(s *service) {
		s.versioningRepo = versioningRepo
		s.auditEnabled = true
	}
}

func WithImportProfiles(profileRepo ProfileRepository) ServiceOption {
	return func(s *service) {
		s.profileRepo = profileRepo
	}
}

func WithConfigEvents(configEventProducer *ConfigEventProducer) ServiceOption {
	return func(s *service) {
		s.configEventProducer = configEventProducer
	}
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:         repo,
		auditEnabled: false,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.versioningRepo != nil {
		s.auditEnabled = true
	}

	return s
}

func (s *service) CreateWorkstation(ctx context.Context, req CreateWorkstationRequest) (*Workstation, error) {
	if err := ValidateWorkstation(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	workstation := &Workstation{
		Name:        req.Name,
		Description: req.Description,
	}

	if err := s.repo.CreateWorkstation(ctx, workstation); err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	newValue, _ := toMap(workstation)
	s.audit(ctx, workstation.ID, entityTypeWorkstation, "create", nil, newValue)

	return workstation, nil
}

func (s *service) ListWorkstations(ctx context.Context, limit, offset int) ([]Workstation, error) {
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	workstations, err := s.repo.ListWorkstations(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return workstations, nil
}

func (s *service) GetWorkstation(ctx context.Context, id string) (*Workstation, error) {
	workstation, err := s.repo.GetWorkstation(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if workstation == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return workstation, nil
}

func (s *service) UpdateWorkstation(ctx context.Context, id string, req UpdateWorkstationRequest) (*Workstation, error) {
	if err := ValidateUpdateWorkstation(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	workstation, err := s.repo.GetWorkstation(ctx, id)
	if err != nil {
		return nil, s.handleNotFoundError(err, id)
	}
	if workstation == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := toMap(workstation)

	if req.Name != nil {
		workstation.Name = *req.Name
	}
	if req.Description != nil {
		workstation.Description = *req.Description
	}

	if err := s.repo.UpdateWorkstation(ctx, workstation); err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, err
		}
		return nil, s.handleNotFoundError(err, id)
	}

	newValue, _ := toMap(workstation)
	s.audit(ctx, id, entityTypeWorkstation, "update", oldValue, newValue)

	return workstation, nil
}

func (s *service) DeleteWorkstation(ctx context.Context, id string) error {
	workstation, err := s.repo.GetWorkstation(ctx, id)
	if err != nil {
		return s.handleNotFoundError(err, id)
	}
	if workstation == nil {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	oldValue, _ := toMap(workstation)

	if err := s.repo.DeleteWorkstation(ctx, id); err != nil {
		return s.handleNotFoundError(err, id)
	}

	s.audit(ctx, id, entityTypeWorkstation, "delete", oldValue, nil)

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishWorkstationDeletedEvent(ctx, id, getChangedBy(ctx))
	}
	return nil
}

func (s *service) LoadRuleSet(ctx context.Context, workstationID string) (*RuleSet, error) {
	ruleSet, err := s.repo.LoadRuleSet(ctx, workstationID)
	if err != nil {
		return nil, s.handleNotFoundError(err, workstationID)
	}
	return ruleSet, nil
}

// SaveRuleSet validates and persists the workstation's whole rule set as one
// replacement, then records a revision snapshot, an audit entry, and a config
// event for the tracking side.
func (s *service) SaveRuleSet(ctx context.Context, workstationID string, req SaveRuleSetRequest) (*RuleSet, error) {
	if err := ValidateSaveRuleSet(req); err != nil {
		metrics.RuleSetSavesTotal.WithLabelValues("validation_error").Inc()
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	var oldValue map[string]interface{}
	if s.auditEnabled {
		if previous, err := s.repo.LoadRuleSet(ctx, workstationID); err == nil {
			oldValue, _ = toMap(previous)
		}
	}

	rules := make([]TrackingRule, len(req.Rules))
	for i, ruleReq := range req.Rules {
		conditions := make([]TrackingCondition, len(ruleReq.Conditions))
		for j, condReq := range ruleReq.Conditions {
			conditions[j] = TrackingCondition{
				ColumnName: condReq.ColumnName,
				Operator:   condReq.Operator,
				Value:      condReq.Value,
			}
		}
		rules[i] = TrackingRule{
			LogicOperator: ruleReq.LogicOperator,
			Conditions:    conditions,
		}
	}

	ruleSet, err := s.repo.SaveRuleSet(ctx, workstationID, rules, req.ExpectedVersion, getChangedBy(ctx))
	if err != nil {
		if pkgerrors.IsConflict(err) {
			metrics.RuleSetSavesTotal.WithLabelValues("conflict").Inc()
			return nil, err
		}
		metrics.RuleSetSavesTotal.WithLabelValues("error").Inc()
		return nil, s.handleNotFoundError(err, workstationID)
	}

	metrics.RuleSetSavesTotal.WithLabelValues("success").Inc()
	s.createRevisionAndAudit(ctx, ruleSet, oldValue)

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishRuleSetEvent(ctx, models.ActionReplace, workstationID, getChangedBy(ctx))
	}

	return ruleSet, nil
}

func (s *service) GetRuleSetRevisions(ctx context.Context, workstationID string) ([]RuleSetRevision, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	revisions, err := s.versioningRepo.GetRevisions(ctx, workstationID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return revisions, nil
}

func (s *service) GetRuleSetRevision(ctx context.Context, workstationID string, version int64) (*RuleSetRevision, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	revision, err := s.versioningRepo.GetRevision(ctx, workstationID, version)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if revision == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("workstation_id", workstationID).WithDetail("version", version)
	}
	return revision, nil
}

func (s *service) GetAuditLogs(ctx context.Context, entityID *string, entityType string, limit int) ([]AuditLog, error) {
	if s.versioningRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "audit logging not enabled")
	}
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	logs, err := s.versioningRepo.GetAuditLogs(ctx, entityID, entityType, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return logs, nil
}

func (s *service) CreateImportProfile(ctx context.Context, req CreateImportProfileRequest) (*ImportProfile, error) {
	if err := ValidateImportProfile(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if s.profileRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "import profile repository not configured")
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	hasHeaderRow := true
	if req.HasHeaderRow != nil {
		hasHeaderRow = *req.HasHeaderRow
	}

	profile := &ImportProfile{
		Name:           req.Name,
		Format:         req.Format,
		Delimiter:      req.Delimiter,
		HasHeaderRow:   hasHeaderRow,
		ColumnMappings: req.ColumnMappings,
		Enabled:        enabled,
	}

	if err := s.profileRepo.CreateImportProfile(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishImportProfileEvent(ctx, models.ActionCreate, profile.ID, getChangedBy(ctx))
	}

	return profile, nil
}

func (s *service) ListImportProfiles(ctx context.Context) ([]ImportProfile, error) {
	if s.profileRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "import profile repository not configured")
	}

	profiles, err := s.profileRepo.ListImportProfiles(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return profiles, nil
}

func (s *service) GetImportProfile(ctx context.Context, id string) (*ImportProfile, error) {
	if s.profileRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "import profile repository not configured")
	}

	profile, err := s.profileRepo.GetImportProfile(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if profile == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return profile, nil
}

func (s *service) UpdateImportProfile(ctx context.Context, id string, req UpdateImportProfileRequest) (*ImportProfile, error) {
	if err := ValidateUpdateImportProfile(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	if s.profileRepo == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "import profile repository not configured")
	}

	profile, err := s.profileRepo.GetImportProfile(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if profile == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	if req.Name != nil {
		profile.Name = *req.Name
	}
	if req.Format != nil {
		profile.Format = *req.Format
	}
	if req.Delimiter != nil {
		profile.Delimiter = *req.Delimiter
	}
	if req.HasHeaderRow != nil {
		profile.HasHeaderRow = *req.HasHeaderRow
	}
	if req.ColumnMappings != nil {
		profile.ColumnMappings = *req.ColumnMappings
	}
	if req.Enabled != nil {
		profile.Enabled = *req.Enabled
	}

	if err := s.profileRepo.UpdateImportProfile(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishImportProfileEvent(ctx, models.ActionUpdate, profile.ID, getChangedBy(ctx))
	}

	return profile, nil
}

func (s *service) DeleteImportProfile(ctx context.Context, id string) error {
	if s.profileRepo == nil {
		return pkgerrors.ErrInternal.WithDetail("message", "import profile repository not configured")
	}

	profile, err := s.profileRepo.GetImportProfile(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if profile == nil {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	if err := s.profileRepo.DeleteImportProfile(ctx, id); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if s.configEventProducer != nil {
		_ = s.configEventProducer.PublishImportProfileEvent(ctx, models.ActionDelete, id, getChangedBy(ctx))
	}

	return nil
}

func (s *service) handleNotFoundError(err error, id string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "not found") {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

func (s *service) createRevisionAndAudit(ctx context.Context, ruleSet *RuleSet, oldValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	snapshot, err := json.Marshal(ruleSet)
	if err != nil {
		return
	}

	revision := &RuleSetRevision{
		WorkstationID: ruleSet.WorkstationID,
		Version:       ruleSet.Version,
		Snapshot:      string(snapshot),
		ChangedBy:     getChangedBy(ctx),
	}
	if err := s.versioningRepo.CreateRevision(ctx, revision); err != nil {
		return
	}

	newValue, err := toMap(ruleSet)
	if err != nil {
		return
	}

	s.audit(ctx, ruleSet.WorkstationID, entityTypeRuleSet, "replace", oldValue, newValue)
}

func (s *service) audit(ctx context.Context, entityID, entityType, action string, oldValue, newValue map[string]interface{}) {
	if !s.auditEnabled || s.versioningRepo == nil {
		return
	}

	auditLog := &AuditLog{
		EntityID:   &entityID,
		EntityType: entityType,
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
		ChangedBy:  getChangedBy(ctx),
	}
	_ = s.versioningRepo.CreateAuditLog(ctx, auditLog)
}

func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func getChangedBy(ctx context.Context) string {
	if actor := logging.GetActor(ctx); actor != "" {
		return actor
	}
	return "system"
}
