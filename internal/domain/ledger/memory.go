package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
)

// MemoryStore is an in-process ledger with the same uniqueness rule as the
// Postgres table. It backs the statementctl CLI and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Transaction
	byHash map[uuid.UUID]map[string]uuid.UUID
	now    func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[uuid.UUID]*Transaction),
		byHash: make(map[uuid.UUID]map[string]uuid.UUID),
		now:    time.Now,
	}
}

func (s *MemoryStore) InsertNew(_ context.Context, txs []Transaction) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		owned, ok := s.byHash[tx.OwnerID]
		if !ok {
			owned = make(map[string]uuid.UUID)
			s.byHash[tx.OwnerID] = owned
		}
		if _, exists := owned[tx.Fingerprint]; exists {
			continue
		}
		if tx.ID == uuid.Nil {
			tx.ID = uuid.New()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = s.now()
		}
		stored := tx
		s.byID[tx.ID] = &stored
		owned[tx.Fingerprint] = tx.ID
		added = append(added, tx)
	}
	return added, nil
}

func (s *MemoryStore) List(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	all := s.filter(ownerID, func(Transaction) bool { return true })
	if offset >= len(all) {
		return []Transaction{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) Window(_ context.Context, ownerID uuid.UUID, from, to time.Time) ([]Transaction, error) {
	return s.filter(ownerID, func(tx Transaction) bool {
		return !tx.Date.Before(from) && !tx.Date.After(to)
	}), nil
}

func (s *MemoryStore) GetByID(_ context.Context, ownerID, id uuid.UUID) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byID[id]
	if !ok || tx.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	out := *tx
	return &out, nil
}

func (s *MemoryStore) UpdateCategory(_ context.Context, ownerID, id uuid.UUID, category categorization.Category) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok || tx.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	tx.Category = category
	out := *tx
	return &out, nil
}

func (s *MemoryStore) SetCategory(ctx context.Context, ownerID, id uuid.UUID, category categorization.Category) error {
	_, err := s.UpdateCategory(ctx, ownerID, id, category)
	return err
}

// Len returns the number of stored rows for owner.
func (s *MemoryStore) Len(ownerID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHash[ownerID])
}

func (s *MemoryStore) filter(ownerID uuid.UUID, keep func(Transaction) bool) []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Transaction, 0)
	for _, tx := range s.byID {
		if tx.OwnerID == ownerID && keep(*tx) {
			out = append(out, *tx)
		}
	}
	slices.SortFunc(out, compareNewestFirst)
	return out
}

func compareNewestFirst(a, b Transaction) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}
