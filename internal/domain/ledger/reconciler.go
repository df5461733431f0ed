package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/pkg/metrics"
)

// Inserter stores transactions whose fingerprint the owner does not have yet
// and returns the ones that were actually written.
type Inserter interface {
	InsertNew(ctx context.Context, txs []Transaction) ([]Transaction, error)
}

// Result of reconciling one batch.
type Result struct {
	Inserted   int
	Duplicates int
	// Added holds the rows written by this batch.
	Added []Transaction
}

// Reconciler merges normalized batches into the ledger without creating
// duplicates. Batches of the same owner never interleave.
type Reconciler struct {
	store   Inserter
	locks   *keyedMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store Inserter, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		store:   store,
		locks:   newKeyedMutex(),
		logger:  logger,
		metrics: m,
	}
}

// Reconcile inserts the new transactions of txs for owner. Rows repeated
// inside the batch and rows already stored both count as duplicates.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID uuid.UUID, txs []Transaction) (Result, error) {
	if len(txs) == 0 {
		return Result{}, nil
	}

	unlock := r.locks.Lock(ownerID)
	defer unlock()

	seen := make(map[string]struct{}, len(txs))
	unique := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.OwnerID != ownerID {
			return Result{}, fmt.Errorf("transaction %s belongs to another owner", tx.ID)
		}
		if _, dup := seen[tx.Fingerprint]; dup {
			continue
		}
		seen[tx.Fingerprint] = struct{}{}
		unique = append(unique, tx)
	}

	added, err := r.store.InsertNew(ctx, unique)
	if err != nil {
		return Result{}, fmt.Errorf("failed to reconcile transactions: %w", err)
	}

	res := Result{
		Inserted:   len(added),
		Duplicates: len(txs) - len(added),
		Added:      added,
	}
	r.metrics.Reconciled(res.Inserted, res.Duplicates)
	r.logger.Debug("batch reconciled",
		slog.String("owner_id", ownerID.String()),
		slog.Int("inserted", res.Inserted),
		slog.Int("duplicates", res.Duplicates),
	)
	return res, nil
}
