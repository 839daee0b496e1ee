package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LearnerStateStore persists the learner's state document as an opaque blob.
type LearnerStateStore interface {
	Save(ctx context.Context, blob []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// DecisionStore records issued mutation plans and their reported outcomes.
type DecisionStore interface {
	Create(ctx context.Context, r *DecisionRecord) error
	GetByID(ctx context.Context, planID uuid.UUID) (*DecisionRecord, error)
	Resolve(ctx context.Context, planID uuid.UUID, success bool, fitnessDelta *float64) error
	ListRecent(ctx context.Context, limit int) ([]DecisionRecord, error)
}

// StateSnapshot is a periodic checkpoint of the selection engine.
type StateSnapshot struct {
	ID        uuid.UUID `json:"id"`
	State     []byte    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

type SnapshotStore interface {
	Create(ctx context.Context, s *StateSnapshot) error
	Latest(ctx context.Context) (*StateSnapshot, error)
}

// PriceSeriesSource supplies close-price history for market risk assessment.
type PriceSeriesSource interface {
	CloseSeries(ctx context.Context, symbol string, limit int) (*PriceSeries, error)
}
