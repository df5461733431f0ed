// Package insights turns an owner's ledger into short advisory insights and
// answers free-form questions about it.
package insights

import (
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
)

// MaxInsights caps how many insights one generation stores.
const MaxInsights = 5

// FallbackMessage answers a chat turn when the model is unavailable.
const FallbackMessage = "Sorry, I couldn't analyze your finances right now. Please try again in a little while."

// Kind identifies the detector that produced an insight.
type Kind string

const (
	KindSubscription Kind = "subscription_detected"
	KindAnomaly      Kind = "unusual_expense"
	KindSavingsRate  Kind = "savings_rate"
	KindTopCategory  Kind = "top_category"
)

// Priority orders insights for display.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Insight is a read-only observation about the owner's spending. It expires
// after the freshness window and is then regenerated.
type Insight struct {
	ID          uuid.UUID               `json:"id"`
	OwnerID     uuid.UUID               `json:"owner_id"`
	Kind        Kind                    `json:"kind"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Priority    Priority                `json:"priority"`
	Category    categorization.Category `json:"category,omitempty"`
	WindowDays  int                     `json:"window_days"`
	CreatedAt   time.Time               `json:"created_at"`
	ExpiresAt   time.Time               `json:"expires_at"`
}

// Role of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one stored chat message.
type ChatTurn struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatReply is the answer to one user message.
type ChatReply struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}
