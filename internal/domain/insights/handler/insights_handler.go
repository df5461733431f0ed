package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	analyticshandler "github.com/FACorreiaa/pennywise/internal/domain/analytics/handler"
	"github.com/FACorreiaa/pennywise/internal/domain/insights"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
	"github.com/FACorreiaa/pennywise/pkg/respond"
)

// Engine generates insights and answers chat messages.
type Engine interface {
	Generate(ctx context.Context, ownerID uuid.UUID, days int) ([]insights.Insight, error)
	Chat(ctx context.Context, ownerID uuid.UUID, message string) (*insights.ChatReply, error)
	Subscriptions(ctx context.Context, ownerID uuid.UUID, days int) ([]insights.Insight, error)
	Anomalies(ctx context.Context, ownerID uuid.UUID, days int) ([]insights.Insight, error)
}

// InsightsHandler serves the /ai endpoints.
type InsightsHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewInsightsHandler creates a new insights handler
func NewInsightsHandler(engine Engine, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{engine: engine, logger: logger}
}

// GetInsights handles GET /ai/insights?days=N.
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	days, err := analyticshandler.DaysParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "days must be an integer")
		return
	}

	found, err := h.engine.Generate(r.Context(), owner, days)
	if err != nil {
		h.logger.Error("failed to generate insights", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to generate insights")
		return
	}
	if found == nil {
		found = []insights.Insight{}
	}
	respond.JSON(w, http.StatusOK, found)
}

type subscriptionsResponse struct {
	Subscriptions []insights.Insight `json:"subscriptions"`
	Count         int                `json:"count"`
}

// Subscriptions handles GET /ai/subscriptions?days=N.
func (h *InsightsHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	owner, days, ok := ownerAndDays(w, r)
	if !ok {
		return
	}

	found, err := h.engine.Subscriptions(r.Context(), owner, days)
	if err != nil {
		h.logger.Error("failed to detect subscriptions", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to detect subscriptions")
		return
	}
	respond.JSON(w, http.StatusOK, subscriptionsResponse{Subscriptions: found, Count: len(found)})
}

type anomaliesResponse struct {
	Anomalies []insights.Insight `json:"anomalies"`
	Count     int                `json:"count"`
}

// DetectAnomalies handles POST /ai/detect-anomalies?days=N.
func (h *InsightsHandler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	owner, days, ok := ownerAndDays(w, r)
	if !ok {
		return
	}

	found, err := h.engine.Anomalies(r.Context(), owner, days)
	if err != nil {
		h.logger.Error("failed to detect anomalies", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to detect anomalies")
		return
	}
	respond.JSON(w, http.StatusOK, anomaliesResponse{Anomalies: found, Count: len(found)})
}

func ownerAndDays(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, bool) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, 0, false
	}
	days, err := analyticshandler.DaysParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "days must be an integer")
		return uuid.Nil, 0, false
	}
	return owner, days, true
}

type chatRequest struct {
	Message string `json:"message"`
}

// Chat handles POST /ai/chat.
func (h *InsightsHandler) Chat(w http.ResponseWriter, r *http.Request) {
	owner, ok := interceptors.OwnerFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chatRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.engine.Chat(r.Context(), owner, req.Message)
	switch {
	case errors.Is(err, insights.ErrEmptyMessage):
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("chat failed", slog.Any("error", err))
		respond.Error(w, http.StatusInternalServerError, "failed to answer message")
		return
	}
	respond.JSON(w, http.StatusOK, reply)
}
