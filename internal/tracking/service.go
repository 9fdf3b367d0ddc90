package tracking

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"parttrack/internal/config"
	"parttrack/internal/constants"
	"parttrack/internal/logger"
	pkgerrors "parttrack/pkg/errors"
	"parttrack/pkg/metrics"
	"parttrack/pkg/models"
	"parttrack/pkg/tracing"
)

type Service struct {
	repo           Repository
	evaluator      *Evaluator
	ruleSets       map[string]*RuleSet
	ruleSetsMu     sync.RWMutex
	trackingConfig config.TrackingConfig
	logger         logger.Logger
}

func NewService(repo Repository, cfg config.TrackingConfig, log logger.Logger) *Service {
	return &Service{
		repo:           repo,
		evaluator:      NewEvaluator(log),
		ruleSets:       make(map[string]*RuleSet),
		trackingConfig: cfg,
		logger:         log,
	}
}

// Decide evaluates one part against the workstation's cached rule set and
// records the outcome. When the rule set cannot be loaded the configured
// fallback decides instead, and nothing is recorded.
func (s *Service) Decide(ctx context.Context, workstationID string, part *models.Part) (*Decision, error) {
	ctx, span := tracing.GetTracer("tracking-service").Start(ctx, "tracking.decide")
	defer span.End()

	start := time.Now()

	ruleSet, ok := s.getRuleSet(workstationID)
	if !ok {
		loaded, err := s.repo.LoadRuleSet(ctx, workstationID)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				return nil, err
			}
			return s.handleRuleSetError(ctx, workstationID, part, err)
		}
		s.storeRuleSet(loaded)
		ruleSet = loaded
	}

	tracked, matchedRuleID := s.evaluator.ShouldTrack(ctx, ruleSet, part)

	decision := &Decision{
		PartID:         part.ID,
		WorkstationID:  workstationID,
		Tracked:        tracked,
		MatchedRuleID:  matchedRuleID,
		RuleSetVersion: ruleSet.Version,
		EvaluatedAt:    time.Now().UTC(),
	}

	if part.ID != "" {
		if err := s.repo.InsertDecision(ctx, decision); err != nil {
			return nil, err
		}
	}

	s.recordMetrics(time.Since(start), tracked)
	return decision, nil
}

// EvaluateAll evaluates one part against every cached workstation rule set
// and records a decision per workstation. A failed decision insert does not
// stop the remaining workstations; the first error is returned so the
// consumer can retry the whole message. Re-inserted decisions are harmless
// because the tracked-parts listing only reads the most recent one.
func (s *Service) EvaluateAll(ctx context.Context, part *models.Part) ([]Decision, error) {
	ctx, span := tracing.GetTracer("tracking-service").Start(ctx, "tracking.evaluate_all")
	defer span.End()

	s.ruleSetsMu.RLock()
	ruleSets := make([]*RuleSet, 0, len(s.ruleSets))
	for _, ruleSet := range s.ruleSets {
		ruleSets = append(ruleSets, ruleSet)
	}
	s.ruleSetsMu.RUnlock()

	var firstErr error
	decisions := make([]Decision, 0, len(ruleSets))
	for _, ruleSet := range ruleSets {
		start := time.Now()
		tracked, matchedRuleID := s.evaluator.ShouldTrack(ctx, ruleSet, part)

		decision := Decision{
			PartID:         part.ID,
			WorkstationID:  ruleSet.WorkstationID,
			Tracked:        tracked,
			MatchedRuleID:  matchedRuleID,
			RuleSetVersion: ruleSet.Version,
			EvaluatedAt:    time.Now().UTC(),
		}

		if part.ID != "" {
			if err := s.repo.InsertDecision(ctx, &decision); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to record decision",
					"workstation_id", ruleSet.WorkstationID,
					"part_id", part.ID,
					"error", err,
				)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}

		s.recordMetrics(time.Since(start), tracked)
		decisions = append(decisions, decision)
	}

	return decisions, firstErr
}

func (s *Service) ListTrackedParts(ctx context.Context, workstationID string, limit, offset int) ([]TrackedPart, error) {
	return s.repo.ListTrackedParts(ctx, workstationID, limit, offset)
}

func (s *Service) getRuleSet(workstationID string) (*RuleSet, bool) {
	s.ruleSetsMu.RLock()
	defer s.ruleSetsMu.RUnlock()

	// Rule sets are replaced wholesale on reload, never mutated in place,
	// so handing out the pointer is safe.
	ruleSet, ok := s.ruleSets[workstationID]
	return ruleSet, ok
}

func (s *Service) storeRuleSet(ruleSet *RuleSet) {
	s.ruleSetsMu.Lock()
	s.ruleSets[ruleSet.WorkstationID] = ruleSet
	s.ruleSetsMu.Unlock()
}

func (s *Service) handleRuleSetError(ctx context.Context, workstationID string, part *models.Part, err error) (*Decision, error) {
	s.logger.ErrorwCtx(ctx, "Rule set unavailable",
		"workstation_id", workstationID,
		"error", err,
	)

	decision := &Decision{
		PartID:        part.ID,
		WorkstationID: workstationID,
		EvaluatedAt:   time.Now().UTC(),
	}

	switch s.trackingConfig.Fallback.OnError {
	case constants.FallbackAllow:
		metrics.FallbackUsageTotal.WithLabelValues("tracking", "allow_on_error", "ruleset_unavailable").Inc()
		s.logger.WarnwCtx(ctx, "Rule set unavailable, tracking part (fallback: allow)",
			"workstation_id", workstationID,
			"part_id", part.ID,
		)
		decision.Tracked = true
		return decision, nil
	case constants.FallbackDeny:
		metrics.FallbackUsageTotal.WithLabelValues("tracking", "deny_on_error", "ruleset_unavailable").Inc()
		s.logger.WarnwCtx(ctx, "Rule set unavailable, not tracking part (fallback: deny)",
			"workstation_id", workstationID,
			"part_id", part.ID,
		)
		decision.Tracked = false
		return decision, nil
	default:
		decision.Tracked = false
		return decision, nil
	}
}

func (s *Service) recordMetrics(duration time.Duration, tracked bool) {
	status := "untracked"
	if tracked {
		status = "tracked"
	}
	metrics.TrackingDecisionsTotal.WithLabelValues(status).Inc()
	metrics.ObserveDecisionDuration(duration, status)
}

// ReloadWorkstation refreshes one cached rule set. A workstation that no
// longer exists is evicted.
func (s *Service) ReloadWorkstation(ctx context.Context, workstationID string) error {
	ruleSet, err := s.repo.LoadRuleSet(ctx, workstationID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			s.RemoveWorkstation(ctx, workstationID)
			return nil
		}
		return err
	}

	s.storeRuleSet(ruleSet)
	s.logger.InfowCtx(ctx, "Reloaded rule set",
		"workstation_id", workstationID,
		"version", ruleSet.Version,
		"rules_count", len(ruleSet.Rules),
	)
	return nil
}

func (s *Service) RemoveWorkstation(ctx context.Context, workstationID string) {
	s.ruleSetsMu.Lock()
	delete(s.ruleSets, workstationID)
	size := len(s.ruleSets)
	s.ruleSetsMu.Unlock()

	metrics.SetTrackingCachedRuleSets(size)
	s.logger.InfowCtx(ctx, "Evicted rule set",
		"workstation_id", workstationID,
	)
}

func (s *Service) ReloadAll(ctx context.Context, skipJitter ...bool) error {
	shouldSkipJitter := len(skipJitter) > 0 && skipJitter[0]

	if err := s.applyJitter(ctx, shouldSkipJitter); err != nil {
		return err
	}

	ids, err := s.repo.ListWorkstationIDs(ctx)
	if err != nil {
		return err
	}

	ruleSets := make(map[string]*RuleSet, len(ids))
	for _, id := range ids {
		ruleSet, err := s.repo.LoadRuleSet(ctx, id)
		if err != nil {
			return err
		}
		ruleSets[id] = ruleSet
	}

	s.updateRuleSets(ctx, ruleSets)
	return nil
}

func (s *Service) applyJitter(ctx context.Context, skipJitter bool) error {
	if skipJitter || s.trackingConfig.Reload.JitterMaxMilliseconds == 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(s.trackingConfig.Reload.JitterMaxMilliseconds)) * time.Millisecond
	s.logger.DebugwCtx(ctx, "Reload scheduled with jitter",
		"jitter_ms", jitter.Milliseconds(),
	)

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) updateRuleSets(ctx context.Context, ruleSets map[string]*RuleSet) {
	s.ruleSetsMu.Lock()
	s.ruleSets = ruleSets
	s.ruleSetsMu.Unlock()

	metrics.SetTrackingCachedRuleSets(len(ruleSets))
	s.logger.InfowCtx(ctx, "Successfully reloaded rule sets",
		"workstations_count", len(ruleSets),
	)
}

func (s *Service) StartReloader(ctx context.Context) error {
	interval := s.trackingConfig.Reload.IntervalSeconds
	if interval <= 0 {
		interval = constants.DefaultReloadIntervalSeconds
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	if err := s.ReloadAll(ctx); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to reload rule sets",
			"error", err,
		)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadAll(ctx); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to reload rule sets",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
