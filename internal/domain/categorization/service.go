package categorization

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Candidate is a stored transaction left as "other" after ingestion.
type Candidate struct {
	ID          uuid.UUID
	Merchant    string
	Description string
}

// Updater persists a refined category.
type Updater interface {
	SetCategory(ctx context.Context, ownerID, id uuid.UUID, category Category) error
}

// fuzzyThreshold is the minimum similarity for a fuzzy refinement.
const fuzzyThreshold = 80

// Service refines "other" transactions after they are stored: a local fuzzy
// pass first, then the model for whatever is still unplaced. Refinement only
// ever changes the category column.
type Service struct {
	fuzzy      *FuzzyMatcher
	classifier *Classifier
	updater    Updater
	timeout    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewService creates the refinement service. classifier may be nil, in which
// case only the fuzzy pass runs.
func NewService(updater Updater, classifier *Classifier, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		fuzzy:      NewFuzzyMatcher(DefaultRules()),
		classifier: classifier,
		updater:    updater,
		timeout:    timeout,
		logger:     logger,
	}
}

// Refine categorizes candidates and stores every improvement. It returns how
// many transactions changed.
func (s *Service) Refine(ctx context.Context, ownerID uuid.UUID, candidates []Candidate) (int, error) {
	updated := 0
	var remaining []Candidate

	for _, c := range candidates {
		m := s.fuzzy.Match(c.Merchant+" "+c.Description, fuzzyThreshold)
		if m == nil {
			remaining = append(remaining, c)
			continue
		}
		if err := s.updater.SetCategory(ctx, ownerID, c.ID, m.Category); err != nil {
			return updated, err
		}
		updated++
	}

	if len(remaining) == 0 || s.classifier == nil {
		return updated, nil
	}

	categories, err := s.classifier.Classify(ctx, remaining)
	for _, c := range remaining {
		cat, ok := categories[c.ID]
		if !ok {
			continue
		}
		if uerr := s.updater.SetCategory(ctx, ownerID, c.ID, cat); uerr != nil {
			return updated, uerr
		}
		updated++
	}
	return updated, err
}

// RefineAsync runs Refine in the background, detached from the caller's
// cancellation and bounded by the service timeout. Failures are logged.
func (s *Service) RefineAsync(ctx context.Context, ownerID uuid.UUID, candidates []Candidate) {
	if len(candidates) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		updated, err := s.Refine(ctx, ownerID, candidates)
		if err != nil {
			s.logger.Warn("category refinement incomplete",
				slog.String("owner_id", ownerID.String()),
				slog.Int("updated", updated),
				slog.Any("error", err),
			)
			return
		}
		s.logger.Debug("category refinement finished",
			slog.String("owner_id", ownerID.String()),
			slog.Int("candidates", len(candidates)),
			slog.Int("updated", updated),
		)
	}()
}

// Wait blocks until background refinements finish. Used at shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}
