package normalizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/pkg/db"
)

// OverrideStore manages owner merchant overrides in the database. An
// override maps an upper-cased merchant pattern to the category the owner
// chose for it.
type OverrideStore struct {
	db db.Querier
}

// NewOverrideStore creates a new override store
func NewOverrideStore(q db.Querier) *OverrideStore {
	return &OverrideStore{db: q}
}

// Save creates or updates an override. Saving the same pattern again counts
// as another correction.
func (s *OverrideStore) Save(ctx context.Context, ownerID uuid.UUID, pattern string, category categorization.Category) error {
	pattern = strings.ToUpper(strings.TrimSpace(pattern))
	if pattern == "" {
		return fmt.Errorf("override pattern is empty")
	}

	query := `
		INSERT INTO merchant_overrides (owner_id, pattern, category, match_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (owner_id, pattern) DO UPDATE SET
			category = EXCLUDED.category,
			match_count = merchant_overrides.match_count + 1,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, ownerID, pattern, string(category)); err != nil {
		return fmt.Errorf("failed to save merchant override: %w", err)
	}
	return nil
}

// Load returns the owner's overrides keyed by pattern. Unknown categories in
// the table are skipped.
func (s *OverrideStore) Load(ctx context.Context, ownerID uuid.UUID) (map[string]categorization.Category, error) {
	query := `
		SELECT pattern, category
		FROM merchant_overrides
		WHERE owner_id = $1
		ORDER BY match_count DESC, updated_at DESC`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load merchant overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[string]categorization.Category)
	for rows.Next() {
		var pattern, raw string
		if err := rows.Scan(&pattern, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan merchant override: %w", err)
		}
		if category, ok := categorization.Parse(raw); ok {
			overrides[pattern] = category
		}
	}
	return overrides, rows.Err()
}
