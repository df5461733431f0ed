package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	"github.com/FACorreiaa/pennywise/pkg/db"
)

const transactionColumns = `id, owner_id, job_id, posted_at, amount, currency, direction,
		description, merchant, category, source, fingerprint, created_at`

// Repository is the Postgres ledger.
type Repository struct {
	db db.Querier
}

// NewRepository creates a ledger repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	err := row.Scan(
		&tx.ID,
		&tx.OwnerID,
		&tx.JobID,
		&tx.Date,
		&tx.Amount,
		&tx.Currency,
		&tx.Direction,
		&tx.Description,
		&tx.Merchant,
		&tx.Category,
		&tx.Source,
		&tx.Fingerprint,
		&tx.CreatedAt,
	)
	return tx, err
}

// InsertNew writes txs in one batch. Rows whose (owner_id, fingerprint) is
// already stored are skipped by the unique index.
func (r *Repository) InsertNew(ctx context.Context, txs []Transaction) ([]Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO transactions (id, owner_id, job_id, posted_at, amount, currency, direction,
			description, merchant, category, source, fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (owner_id, fingerprint) DO NOTHING`

	batch := &pgx.Batch{}
	for i := range txs {
		if txs[i].ID == uuid.Nil {
			txs[i].ID = uuid.New()
		}
		tx := txs[i]
		batch.Queue(query,
			tx.ID,
			tx.OwnerID,
			tx.JobID,
			tx.Date,
			tx.Amount,
			tx.Currency,
			string(tx.Direction),
			tx.Description,
			tx.Merchant,
			string(tx.Category),
			tx.Source,
			tx.Fingerprint,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	added := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("failed to insert transaction: %w", err)
		}
		if tag.RowsAffected() == 1 {
			added = append(added, tx)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("failed to close insert batch: %w", err)
	}
	return added, nil
}

// List returns a page of the owner's ledger, newest first.
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE owner_id = $1
		ORDER BY posted_at DESC, created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return collect(rows)
}

// Window returns the owner's transactions dated within [from, to], newest first.
func (r *Repository) Window(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE owner_id = $1 AND posted_at >= $2 AND posted_at <= $3
		ORDER BY posted_at DESC, created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction window: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// GetByID returns one of the owner's transactions.
func (r *Repository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1 AND owner_id = $2`

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &tx, nil
}

// UpdateCategory changes the category of a stored transaction and returns the
// updated row. No other column is ever rewritten.
func (r *Repository) UpdateCategory(ctx context.Context, ownerID, id uuid.UUID, category categorization.Category) (*Transaction, error) {
	query := `
		UPDATE transactions
		SET category = $3
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(r.db.QueryRow(ctx, query, id, ownerID, string(category)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return &tx, nil
}

// SetCategory is UpdateCategory for callers that do not need the row back.
func (r *Repository) SetCategory(ctx context.Context, ownerID, id uuid.UUID, category categorization.Category) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET category = $3 WHERE id = $1 AND owner_id = $2`,
		id, ownerID, string(category),
	)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
