package store

import (
	"context"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SnapshotStore struct {
	db *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(db *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Create(ctx context.Context, snap *domain.StateSnapshot) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO state_snapshots (id, state, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		snap.ID, snap.State, snap.CreatedAt,
	).Scan(&snap.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SnapshotStore) Latest(ctx context.Context) (*domain.StateSnapshot, error) {
	var snap domain.StateSnapshot
	err := s.db.QueryRow(ctx,
		`SELECT id, state, created_at FROM state_snapshots
		 ORDER BY created_at DESC
		 LIMIT 1`,
	).Scan(&snap.ID, &snap.State, &snap.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &snap, nil
}
