// Package payment is a thin client for the Asaas payment gateway (spec §6
// External Interfaces): the gateway itself stays an external collaborator
// (Non-goal), so this package only covers what Tenant actually persists —
// customer creation, subscription creation, and webhook status mapping for
// asaasCustomerId/asaasSubscriptionId/subscriptionStatus.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/austrian-business-infrastructure/fo/internal/tenant"
)

// Client talks to the Asaas REST API with the same
// bytes.NewReader/http.NewRequestWithContext shape internal/notification.Service
// uses for Resend/Z-API; the API key goes in the access_token header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// CreateCustomerInput is the subset of Asaas's customer-creation fields the
// platform needs at tenant registration time.
type CreateCustomerInput struct {
	Name  string
	Email string
	CPF   string
}

type customerResponse struct {
	ID string `json:"id"`
}

// CreateCustomer registers a new customer and returns its Asaas ID, stored
// as Tenant.AsaasCustomerID.
func (c *Client) CreateCustomer(ctx context.Context, in CreateCustomerInput) (string, error) {
	body, err := json.Marshal(map[string]string{
		"name":    in.Name,
		"email":   in.Email,
		"cpfCnpj": in.CPF,
	})
	if err != nil {
		return "", err
	}
	var out customerResponse
	if err := c.do(ctx, http.MethodPost, "/customers", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateSubscriptionInput is the subset of Asaas's subscription-creation
// fields needed to put a tenant on a paid plan.
type CreateSubscriptionInput struct {
	CustomerID string
	PlanSlug   string
	Price      float64
	Cycle      string // MONTHLY, YEARLY
}

type subscriptionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateSubscription starts billing for a tenant's plan upgrade, returning
// the Asaas subscription ID and its initial status.
func (c *Client) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (id string, status tenant.SubscriptionStatus, err error) {
	body, err := json.Marshal(map[string]any{
		"customer":    in.CustomerID,
		"value":       in.Price,
		"cycle":       in.Cycle,
		"description": "plan: " + in.PlanSlug,
	})
	if err != nil {
		return "", "", err
	}
	var out subscriptionResponse
	if err := c.do(ctx, http.MethodPost, "/subscriptions", body, &out); err != nil {
		return "", "", err
	}
	return out.ID, MapStatus(out.Status), nil
}

// WebhookEvent is the payload shape of an Asaas subscription-status
// webhook call (PAYMENT_CONFIRMED, PAYMENT_OVERDUE, SUBSCRIPTION_CANCELED).
type WebhookEvent struct {
	Event        string `json:"event"`
	Subscription struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"subscription"`
}

// MapStatus translates an Asaas subscription status string into the
// platform's SubscriptionStatus enum (spec §3 Tenant).
func MapStatus(asaasStatus string) tenant.SubscriptionStatus {
	switch asaasStatus {
	case "ACTIVE", "CONFIRMED":
		return tenant.SubscriptionActive
	case "OVERDUE":
		return tenant.SubscriptionOverdue
	case "CANCELED", "EXPIRED":
		return tenant.SubscriptionCanceled
	default:
		return tenant.SubscriptionPending
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("asaas request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("asaas returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
