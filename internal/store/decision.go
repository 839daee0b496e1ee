package store

import (
	"context"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultDecisionLimit = 50

// DecisionStore is the Postgres decision log of routed mutation plans.
type DecisionStore struct {
	db *pgxpool.Pool
}

var _ domain.DecisionStore = (*DecisionStore)(nil)

func NewDecisionStore(db *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{db: db}
}

func (s *DecisionStore) Create(ctx context.Context, r *domain.DecisionRecord) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO mutation_decisions (plan_id, strategy_id, tier, mutation_type, risk_score, rationale, config, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		r.PlanID, r.StrategyID, r.Tier.Number(), r.MutationType, r.RiskScore, r.Rationale, r.Config, r.CreatedAt,
	).Scan(&r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *DecisionStore) GetByID(ctx context.Context, planID uuid.UUID) (*domain.DecisionRecord, error) {
	var r domain.DecisionRecord
	var tier int
	err := s.db.QueryRow(ctx,
		`SELECT plan_id, strategy_id, tier, mutation_type, risk_score, rationale, config, success, fitness_delta, created_at, resolved_at
		 FROM mutation_decisions WHERE plan_id = $1`,
		planID,
	).Scan(&r.PlanID, &r.StrategyID, &tier, &r.MutationType, &r.RiskScore, &r.Rationale, &r.Config,
		&r.Success, &r.FitnessDelta, &r.CreatedAt, &r.ResolvedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.Tier = domain.Tier(tier)
	return &r, nil
}

// Resolve attaches an outcome to an unresolved decision. A second resolution
// of the same plan returns ErrConflict.
func (s *DecisionStore) Resolve(ctx context.Context, planID uuid.UUID, success bool, fitnessDelta *float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE mutation_decisions
		 SET success = $2, fitness_delta = $3, resolved_at = NOW()
		 WHERE plan_id = $1 AND resolved_at IS NULL`,
		planID, success, fitnessDelta,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM mutation_decisions WHERE plan_id = $1)`,
		planID,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func (s *DecisionStore) ListRecent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = defaultDecisionLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT plan_id, strategy_id, tier, mutation_type, risk_score, rationale, config, success, fitness_delta, created_at, resolved_at
		 FROM mutation_decisions
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		var r domain.DecisionRecord
		var tier int
		if err := rows.Scan(&r.PlanID, &r.StrategyID, &tier, &r.MutationType, &r.RiskScore, &r.Rationale, &r.Config,
			&r.Success, &r.FitnessDelta, &r.CreatedAt, &r.ResolvedAt); err != nil {
			return nil, err
		}
		r.Tier = domain.Tier(tier)
		records = append(records, r)
	}
	return records, rows.Err()
}
