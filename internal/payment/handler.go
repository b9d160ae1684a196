package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/austrian-business-infrastructure/fo/internal/api"
	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
)

// SubscriptionUpdater is the narrow slice of tenant.Service the webhook
// handler needs.
type SubscriptionUpdater interface {
	UpdateSubscriptionStatus(ctx context.Context, asaasSubscriptionID string, status tenant.SubscriptionStatus) error
}

// Handler receives Asaas webhook callbacks and applies subscription status
// changes to the matching tenant.
type Handler struct {
	tenants SubscriptionUpdater
	logger  *slog.Logger
}

func NewHandler(tenants SubscriptionUpdater, logger *slog.Logger) *Handler {
	return &Handler{tenants: tenants, logger: logger}
}

func (h *Handler) RegisterRoutes(router *api.Router) {
	router.HandleFunc("POST /api/v1/webhooks/asaas", h.Webhook)
}

// Webhook handles POST /api/v1/webhooks/asaas (spec §6 External Interfaces).
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var evt WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		apperr.Write(w, apperr.Validation("invalid webhook payload"))
		return
	}

	status := MapStatus(evt.Subscription.Status)
	if err := h.tenants.UpdateSubscriptionStatus(r.Context(), evt.Subscription.ID, status); err != nil {
		h.logger.Warn("asaas webhook update failed", "subscription_id", evt.Subscription.ID, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
