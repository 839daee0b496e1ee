package store

import (
	"context"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultLearnerStateName = "default"

// LearnerStateStore keeps one learner state document per name in Postgres.
type LearnerStateStore struct {
	db   *pgxpool.Pool
	name string
}

var _ domain.LearnerStateStore = (*LearnerStateStore)(nil)

func NewLearnerStateStore(db *pgxpool.Pool, name string) *LearnerStateStore {
	if name == "" {
		name = DefaultLearnerStateName
	}
	return &LearnerStateStore{db: db, name: name}
}

func (s *LearnerStateStore) Save(ctx context.Context, blob []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO learner_state (name, state, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (name) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		s.name, blob,
	)
	return err
}

func (s *LearnerStateStore) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(ctx,
		`SELECT state FROM learner_state WHERE name = $1`,
		s.name,
	).Scan(&blob)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return blob, nil
}
