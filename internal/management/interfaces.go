package management

import (
	"context"
)

type Service interface {
	CreateWorkstation(ctx context.Context, req CreateWorkstationRequest) (*Workstation, error)
	ListWorkstations(ctx context.Context, limit, offset int) ([]Workstation, error)
	GetWorkstation(ctx context.Context, id string) (*Workstation, error)
	UpdateWorkstation(ctx context.Context, id string, req UpdateWorkstationRequest) (*Workstation, error)
	DeleteWorkstation(ctx context.Context, id string) error

	LoadRuleSet(ctx context.Context, workstationID string) (*RuleSet, error)
	SaveRuleSet(ctx context.Context, workstationID string, req SaveRuleSetRequest) (*RuleSet, error)
	GetRuleSetRevisions(ctx context.Context, workstationID string) ([]RuleSetRevision, error)
	GetRuleSetRevision(ctx context.Context, workstationID string, version int64) (*RuleSetRevision, error)
	GetAuditLogs(ctx context.Context, entityID *string, entityType string, limit int) ([]AuditLog, error)

	CreateImportProfile(ctx context.Context, req CreateImportProfileRequest) (*ImportProfile, error)
	ListImportProfiles(ctx context.Context) ([]ImportProfile, error)
	GetImportProfile(ctx context.Context, id string) (*ImportProfile, error)
	UpdateImportProfile(ctx context.Context, id string, req UpdateImportProfileRequest) (*ImportProfile, error)
	DeleteImportProfile(ctx context.Context, id string) error
}
