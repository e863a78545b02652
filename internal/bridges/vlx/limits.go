package vlx

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/vlx-bridge/internal/infrastructure/database"
)

// SQLLimitStore persists keep-open flags in the keep_open table.
type SQLLimitStore struct {
	db *database.DB
}

// NewLimitStore creates a store on a migrated database.
func NewLimitStore(db *database.DB) *SQLLimitStore {
	return &SQLLimitStore{db: db}
}

// LoadLimits returns every stored flag keyed by entity id.
func (s *SQLLimitStore) LoadLimits(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, limited FROM keep_open`)
	if err != nil {
		return nil, fmt.Errorf("loading keep-open flags: %w", err)
	}
	defer rows.Close()

	limits := make(map[string]bool)
	for rows.Next() {
		var (
			id      string
			limited bool
		)
		if err := rows.Scan(&id, &limited); err != nil {
			return nil, fmt.Errorf("scanning keep-open flag: %w", err)
		}
		limits[id] = limited
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keep-open flags: %w", err)
	}
	return limits, nil
}

// SaveLimit upserts the flag for entityID.
func (s *SQLLimitStore) SaveLimit(ctx context.Context, entityID string, limited bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keep_open (entity_id, limited, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET limited = excluded.limited, updated_at = excluded.updated_at`,
		entityID, limited, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving keep-open flag for %s: %w", entityID, err)
	}
	return nil
}
