package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/pkg/db"
)

// Repository stores generated insights and chat history in Postgres.
type Repository struct {
	db db.Querier
}

// NewRepository creates an insights repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// Fresh returns the owner's unexpired insights for a window, highest
// priority first.
func (r *Repository) Fresh(ctx context.Context, ownerID uuid.UUID, windowDays int, now time.Time) ([]Insight, error) {
	query := `
		SELECT id, owner_id, kind, title, description, priority, category, window_days, created_at, expires_at
		FROM insights
		WHERE owner_id = $1 AND window_days = $2 AND expires_at > $3
		ORDER BY CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC, created_at ASC`

	rows, err := r.db.Query(ctx, query, ownerID, windowDays, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		var (
			in       Insight
			category *string
		)
		if err := rows.Scan(&in.ID, &in.OwnerID, &in.Kind, &in.Title, &in.Description, &in.Priority,
			&category, &in.WindowDays, &in.CreatedAt, &in.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		if category != nil {
			in.Category = categorization.Category(*category)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Replace swaps the owner's stored insights for a window in one transaction.
func (r *Repository) Replace(ctx context.Context, ownerID uuid.UUID, windowDays int, insights []Insight) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM insights WHERE owner_id = $1 AND window_days = $2`, ownerID, windowDays); err != nil {
		return fmt.Errorf("failed to clear insights: %w", err)
	}

	insertQuery := `
		INSERT INTO insights (id, owner_id, kind, title, description, priority, category, window_days, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, in := range insights {
		var category *string
		if in.Category != "" {
			c := string(in.Category)
			category = &c
		}
		_, err := tx.Exec(ctx, insertQuery,
			in.ID,
			ownerID,
			string(in.Kind),
			in.Title,
			in.Description,
			string(in.Priority),
			category,
			windowDays,
			in.CreatedAt,
			in.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert insight: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit insights: %w", err)
	}
	return nil
}

// PurgeExpired deletes insights whose expiry has passed.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM insights WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge insights: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecentTurns returns up to limit of the owner's latest chat turns, oldest
// first.
func (r *Repository) RecentTurns(ctx context.Context, ownerID uuid.UUID, limit int) ([]ChatTurn, error) {
	query := `
		SELECT owner_id, role, content, created_at FROM (
			SELECT id, owner_id, role, content, created_at
			FROM chat_messages
			WHERE owner_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var turns []ChatTurn
	for rows.Next() {
		var t ChatTurn
		if err := rows.Scan(&t.OwnerID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// AppendTurns stores chat turns in order.
func (r *Repository) AppendTurns(ctx context.Context, turns ...ChatTurn) error {
	for _, t := range turns {
		_, err := r.db.Exec(ctx,
			`INSERT INTO chat_messages (owner_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
			t.OwnerID, string(t.Role), t.Content, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert chat turn: %w", err)
		}
	}
	return nil
}
