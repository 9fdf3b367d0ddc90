package config_handler

import (
	"context"
	"encoding/json"

	"parttrack/internal/logger"
	"parttrack/pkg/models"
	"parttrack/pkg/retry"
)

// RuleSetReloader refreshes one workstation's cached rule set when the
// management service announces a change.
type RuleSetReloader interface {
	ReloadWorkstation(ctx context.Context, workstationID string) error
	RemoveWorkstation(ctx context.Context, workstationID string)
}

// ProfileInvalidator drops a cached import profile after it changed.
type ProfileInvalidator interface {
	InvalidateProfile(profileID string)
}

type Handler struct {
	expectedServiceType string
	reloader            RuleSetReloader
	invalidator         ProfileInvalidator
	logger              logger.Logger
}

func NewHandler(expectedServiceType string, log logger.Logger) *Handler {
	return &Handler{
		expectedServiceType: expectedServiceType,
		logger:              log,
	}
}

func NewHandlerWithReloader(expectedServiceType string, reloader RuleSetReloader, log logger.Logger) *Handler {
	return NewHandler(expectedServiceType, log).WithReloader(reloader)
}

func NewHandlerWithInvalidator(expectedServiceType string, invalidator ProfileInvalidator, log logger.Logger) *Handler {
	return NewHandler(expectedServiceType, log).WithInvalidator(invalidator)
}

func (h *Handler) WithReloader(reloader RuleSetReloader) *Handler {
	h.reloader = reloader
	return h
}

func (h *Handler) WithInvalidator(invalidator ProfileInvalidator) *Handler {
	h.invalidator = invalidator
	return h
}

func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, payload []byte) error {
	var event models.ConfigUpdateEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Errorw("Failed to unmarshal config event", "error", err)
		return retry.Permanent(err)
	}

	if event.EventType == "" {
		h.logger.Warnw("Config event missing event_type")
		return nil
	}

	if event.ServiceType != h.expectedServiceType {
		return nil
	}

	h.logger.Infow("Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"workstation_id", event.WorkstationID,
		"profile_id", event.ProfileID,
	)

	switch event.EventType {
	case models.EventTypeRuleSetUpdated:
		if h.reloader == nil {
			return nil
		}
		if event.WorkstationID == "" {
			h.logger.Warnw("Config event missing workstation_id", "event_type", event.EventType)
			return nil
		}
		if err := h.reloader.ReloadWorkstation(ctx, event.WorkstationID); err != nil {
			h.logger.Errorw("Failed to reload rule set after config update",
				"error", err,
				"workstation_id", event.WorkstationID,
			)
			return err
		}
		h.logger.Infow("Rule set reloaded after config update",
			"workstation_id", event.WorkstationID,
			"action", event.Action,
		)
	case models.EventTypeWorkstationDeleted:
		if h.reloader == nil {
			return nil
		}
		if event.WorkstationID == "" {
			h.logger.Warnw("Config event missing workstation_id", "event_type", event.EventType)
			return nil
		}
		h.reloader.RemoveWorkstation(ctx, event.WorkstationID)
	case models.EventTypeImportProfileUpdated:
		if h.invalidator == nil {
			return nil
		}
		if event.ProfileID == "" {
			h.logger.Warnw("Config event missing profile_id", "event_type", event.EventType)
			return nil
		}
		h.invalidator.InvalidateProfile(event.ProfileID)
	default:
		h.logger.Debugw("Ignoring config event", "event_type", event.EventType)
	}

	return nil
}
