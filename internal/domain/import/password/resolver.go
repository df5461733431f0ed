package password

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/pennywise/internal/domain/credentials"
	"github.com/FACorreiaa/pennywise/internal/domain/import/acquirer"
)

// ErrPasswordExhausted means no candidate unlocked the document.
var ErrPasswordExhausted = errors.New("no password candidate unlocked the document")

// Unlocker tests one password against a document.
type Unlocker interface {
	Unlock(data []byte, password string) error
}

// Resolver tries password candidates until one unlocks a document.
type Resolver struct {
	unlocker Unlocker
	logger   *slog.Logger
}

// NewResolver creates a resolver backed by the given unlocker.
func NewResolver(unlocker Unlocker, logger *slog.Logger) *Resolver {
	return &Resolver{unlocker: unlocker, logger: logger}
}

// Resolve sets doc.Password to the first candidate that unlocks it. Documents
// that are not encrypted are left untouched. Candidates are never logged.
func (r *Resolver) Resolve(ctx context.Context, doc *acquirer.Document, hints credentials.PasswordHints) error {
	if !doc.Encrypted {
		return nil
	}

	candidates := Candidates(hints, doc.Bank)
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.unlocker.Unlock(doc.Data, candidate); err != nil {
			continue
		}

		doc.Password = candidate
		doc.Status = acquirer.StatusUnlocked
		r.logger.Debug("document unlocked",
			slog.String("document", doc.Name),
			slog.String("bank", doc.Bank),
			slog.Int("attempts", i+1),
		)
		return nil
	}

	r.logger.Warn("password candidates exhausted",
		slog.String("document", doc.Name),
		slog.String("bank", doc.Bank),
		slog.Int("attempts", len(candidates)),
		slog.Any("hints", hints),
	)
	return fmt.Errorf("%w: %s after %d attempts", ErrPasswordExhausted, doc.Name, len(candidates))
}
