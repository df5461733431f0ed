package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/pennywise/internal/domain/analytics"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	"github.com/FACorreiaa/pennywise/pkg/llm"
	"github.com/FACorreiaa/pennywise/pkg/metrics"
	"github.com/FACorreiaa/pennywise/pkg/money"
)

// ErrEmptyMessage is returned for a blank chat message.
var ErrEmptyMessage = errors.New("message is required")

const (
	chatContextTransactions = 10
	defaultHistoryTurns     = 10
	defaultTTL              = 24 * time.Hour
	subscriptionDays        = 90
	anomalyDays             = 60
)

const narrativeSystem = `You are a friendly personal finance assistant for an Indian user.
Rewrite the given observation as one or two short sentences addressed to the user.
Keep every number exactly as given. Do not add advice that is not supported by the observation.
Answer with plain text only.`

const chatSystem = `You are a personal finance assistant. Answer the user's question using only the
financial data provided. Amounts are in Indian Rupees. Be concise and specific.
If the data does not answer the question, say so.`

// Store persists insights and chat history.
type Store interface {
	Fresh(ctx context.Context, ownerID uuid.UUID, windowDays int, now time.Time) ([]Insight, error)
	Replace(ctx context.Context, ownerID uuid.UUID, windowDays int, insights []Insight) error
	RecentTurns(ctx context.Context, ownerID uuid.UUID, limit int) ([]ChatTurn, error)
	AppendTurns(ctx context.Context, turns ...ChatTurn) error
}

// SnapshotSource computes a snapshot together with its transactions.
type SnapshotSource interface {
	SummaryWithTransactions(ctx context.Context, ownerID uuid.UUID, days int) (*analytics.Snapshot, []ledger.Transaction, error)
}

// Config tunes the insight engine.
type Config struct {
	DefaultDays  int
	TTL          time.Duration
	HistoryTurns int
	ModelTimeout time.Duration
}

// Service generates insights and answers chat messages.
type Service struct {
	store     Store
	snapshots SnapshotSource
	model     llm.Model
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService creates the insight engine.
func NewService(store Store, snapshots SnapshotSource, model llm.Model, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Service {
	if model == nil {
		model = llm.Disabled{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = defaultHistoryTurns
	}
	cfg.DefaultDays = analytics.NormalizeDays(cfg.DefaultDays, analytics.DefaultWindowDays)

	return &Service{
		store:     store,
		snapshots: snapshots,
		model:     model,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Generate returns up to MaxInsights for the owner's window, reusing stored
// insights until they expire.
func (s *Service) Generate(ctx context.Context, ownerID uuid.UUID, days int) ([]Insight, error) {
	ctx, span := otel.Tracer("github.com/FACorreiaa/pennywise/insights").Start(ctx, "insights.Generate")
	defer span.End()

	days = analytics.NormalizeDays(days, s.cfg.DefaultDays)
	now := s.now()
	span.SetAttributes(attribute.Int("window_days", days))

	fresh, err := s.store.Fresh(ctx, ownerID, days, now)
	if err != nil {
		s.logger.Warn("failed to load stored insights", "owner_id", ownerID, "error", err)
	} else if len(fresh) > 0 {
		span.SetAttributes(attribute.Bool("cached", true))
		return fresh, nil
	}

	snap, txs, err := s.snapshots.SummaryWithTransactions(ctx, ownerID, days)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	found := Detect(snap, txs)
	if len(found) > MaxInsights {
		found = found[:MaxInsights]
	}

	s.stamp(found, ownerID, days, now)
	s.narrateAll(ctx, found)

	if err := s.store.Replace(ctx, ownerID, days, found); err != nil {
		s.logger.Warn("failed to store insights", "owner_id", ownerID, "error", err)
	}

	s.logger.Info("insights generated", "owner_id", ownerID, "window_days", days, "count", len(found))
	return found, nil
}

// Subscriptions lists the owner's recurring debits over the last days days,
// 90 by default. Nothing is stored.
func (s *Service) Subscriptions(ctx context.Context, ownerID uuid.UUID, days int) ([]Insight, error) {
	return s.detectOnly(ctx, "insights.Subscriptions", ownerID, analytics.NormalizeDays(days, subscriptionDays), detectSubscriptions)
}

// Anomalies lists unusually large debits over the last days days, 60 by
// default. Nothing is stored.
func (s *Service) Anomalies(ctx context.Context, ownerID uuid.UUID, days int) ([]Insight, error) {
	return s.detectOnly(ctx, "insights.Anomalies", ownerID, analytics.NormalizeDays(days, anomalyDays), detectAnomalies)
}

func (s *Service) detectOnly(ctx context.Context, name string, ownerID uuid.UUID, days int, detect func([]ledger.Transaction) []Insight) ([]Insight, error) {
	ctx, span := otel.Tracer("github.com/FACorreiaa/pennywise/insights").Start(ctx, name)
	defer span.End()
	span.SetAttributes(attribute.Int("window_days", days))

	_, txs, err := s.snapshots.SummaryWithTransactions(ctx, ownerID, days)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	found := detect(txs)
	if found == nil {
		found = []Insight{}
	}
	s.stamp(found, ownerID, days, s.now())
	return found, nil
}

func (s *Service) stamp(found []Insight, ownerID uuid.UUID, days int, now time.Time) {
	for i := range found {
		found[i].ID = uuid.New()
		found[i].OwnerID = ownerID
		found[i].WindowDays = days
		found[i].CreatedAt = now
		found[i].ExpiresAt = now.Add(s.cfg.TTL)
	}
}

// narrateAll phrases every insight in parallel. All calls share one model
// deadline, so a slow model costs at most ModelTimeout per request.
func (s *Service) narrateAll(ctx context.Context, found []Insight) {
	ctx, cancel := context.WithTimeout(ctx, s.modelTimeout())
	defer cancel()

	var g errgroup.Group
	for i := range found {
		g.Go(func() error {
			found[i].Description = s.narrate(ctx, found[i])
			return nil
		})
	}
	_ = g.Wait()
}

// narrate asks the model to phrase one insight, keeping the detector text
// on any failure.
func (s *Service) narrate(ctx context.Context, in Insight) string {
	prompt := fmt.Sprintf("Observation (%s, priority %s): %s\n%s", in.Kind, in.Priority, in.Title, in.Description)
	text, err := s.model.Generate(ctx, narrativeSystem, prompt)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		s.metrics.ModelCall("insight", "error")
		if err != nil && !errors.Is(err, llm.ErrDisabled) {
			s.logger.Debug("insight narrative unavailable", "kind", in.Kind, "error", err)
		}
		return in.Description
	}

	s.metrics.ModelCall("insight", "ok")
	return text
}

// Chat answers message from the owner's snapshot, the most relevant
// transactions and the recent conversation. A model failure is answered
// with FallbackMessage.
func (s *Service) Chat(ctx context.Context, ownerID uuid.UUID, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := otel.Tracer("github.com/FACorreiaa/pennywise/insights").Start(ctx, "insights.Chat")
	defer span.End()

	asked := s.now()
	snap, txs, err := s.snapshots.SummaryWithTransactions(ctx, ownerID, s.cfg.DefaultDays)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return nil, fmt.Errorf("failed to build snapshot: %w", err)
	}

	history, err := s.store.RecentTurns(ctx, ownerID, s.cfg.HistoryTurns)
	if err != nil {
		s.logger.Warn("failed to load chat history", "owner_id", ownerID, "error", err)
		history = nil
	}

	prompt := buildChatPrompt(snap, relevantTransactions(txs, message, chatContextTransactions), history, message)

	modelCtx, cancel := context.WithTimeout(ctx, s.modelTimeout())
	answer, err := s.model.Generate(modelCtx, chatSystem, prompt)
	cancel()
	answer = strings.TrimSpace(answer)
	if err != nil || answer == "" {
		s.metrics.ModelCall("chat", "error")
		s.logger.Warn("chat model call failed", "owner_id", ownerID, "error", err)
		span.SetAttributes(attribute.Bool("fallback", true))
		answer = FallbackMessage
	} else {
		s.metrics.ModelCall("chat", "ok")
	}

	replied := s.now()
	err = s.store.AppendTurns(ctx,
		ChatTurn{OwnerID: ownerID, Role: RoleUser, Content: message, CreatedAt: asked},
		ChatTurn{OwnerID: ownerID, Role: RoleAssistant, Content: answer, CreatedAt: replied},
	)
	if err != nil {
		s.logger.Warn("failed to store chat turns", "owner_id", ownerID, "error", err)
	}

	return &ChatReply{Response: answer, Timestamp: replied}, nil
}

func (s *Service) modelTimeout() time.Duration {
	if s.cfg.ModelTimeout > 0 {
		return s.cfg.ModelTimeout
	}
	return 20 * time.Second
}

func buildChatPrompt(snap *analytics.Snapshot, txs []ledger.Transaction, history []ChatTurn, message string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Financial summary for the last %d days:\n", snap.WindowDays)
	fmt.Fprintf(&b, "- Income: %s\n", money.Format(snap.TotalIncome, money.INR))
	fmt.Fprintf(&b, "- Expenses: %s\n", money.Format(snap.TotalExpenses, money.INR))
	fmt.Fprintf(&b, "- Net savings: %s\n", money.Format(snap.NetSavings, money.INR))
	fmt.Fprintf(&b, "- Savings rate: %.1f%%\n", snap.SavingsRate*100)
	fmt.Fprintf(&b, "- Transactions: %d\n", snap.TransactionCount)

	if len(snap.Categories) > 0 {
		b.WriteString("\nSpending by category:\n")
		for _, c := range snap.Categories {
			fmt.Fprintf(&b, "- %s: %s (%d transactions, %.1f%%)\n", c.Category, money.Format(c.Amount, money.INR), c.Count, c.Percentage)
		}
	}

	if len(txs) > 0 {
		b.WriteString("\nRelevant transactions:\n")
		for _, tx := range txs {
			fmt.Fprintf(&b, "- %s | %s | %s | %s | %s\n",
				tx.Date.Format("2006-01-02"), tx.Merchant, tx.Category, tx.Direction, money.Format(tx.AbsAmount(), tx.Currency))
		}
	}

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
	}

	fmt.Fprintf(&b, "\nuser: %s\n", message)
	return b.String()
}
