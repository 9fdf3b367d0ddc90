package tracking

import (
	"context"
	"fmt"

	"parttrack/internal/config"
	"parttrack/pkg/circuitbreaker"
)

// CircuitBreakerRepository guards the rule set read path so a failing
// database trips fast and decision handling can fall back instead of
// stalling. Writes and listings are passed through untouched.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{
			repo: repo,
			cb:   nil,
		}
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(circuitbreaker.FromServiceConfig("postgres-rulesets", cfg)),
	}
}

func (r *CircuitBreakerRepository) LoadRuleSet(ctx context.Context, workstationID string) (*RuleSet, error) {
	if r.cb == nil {
		return r.repo.LoadRuleSet(ctx, workstationID)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.LoadRuleSet(ctx, workstationID)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		if r.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for postgres-rulesets: %w", err)
		}
		return nil, err
	}

	ruleSet, ok := result.(*RuleSet)
	if !ok {
		return nil, fmt.Errorf("repository returned invalid result type")
	}

	return ruleSet, nil
}

func (r *CircuitBreakerRepository) ListWorkstationIDs(ctx context.Context) ([]string, error) {
	if r.cb == nil {
		return r.repo.ListWorkstationIDs(ctx)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.repo.ListWorkstationIDs(ctx)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		if r.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for postgres-rulesets: %w", err)
		}
		return nil, err
	}

	ids, ok := result.([]string)
	if !ok {
		return nil, fmt.Errorf("repository returned invalid result type")
	}

	return ids, nil
}

func (r *CircuitBreakerRepository) InsertDecision(ctx context.Context, decision *Decision) error {
	return r.repo.InsertDecision(ctx, decision)
}

func (r *CircuitBreakerRepository) ListTrackedParts(ctx context.Context, workstationID string, limit, offset int) ([]TrackedPart, error) {
	return r.repo.ListTrackedParts(ctx, workstationID, limit, offset)
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}

func (r *CircuitBreakerRepository) IsOpen() bool {
	if r.cb == nil {
		return false
	}
	return r.cb.IsOpen()
}
