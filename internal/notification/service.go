// Package notification implements the sendEmail/sendWhatsAppText adapter
// of spec §4.11: SMTP (or Resend's HTTP API when configured) for email,
// the Z-API HTTP contract for WhatsApp, with per-tenant credential
// override falling back to process-wide configuration.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/austrian-business-infrastructure/fo/internal/email"
	"github.com/austrian-business-infrastructure/fo/internal/tenant"
	"github.com/google/uuid"
)

// ProcessWideConfig is the fallback credential set (spec §4.11,
// env-sourced: RESEND_API_KEY/RESEND_FROM_EMAIL, ZAPI_INSTANCE_ID/TOKEN/CLIENT_TOKEN).
type ProcessWideConfig struct {
	ResendAPIKey   string
	ResendFrom     string
	ZAPIInstanceID string
	ZAPIToken      string
	ZAPIClient     string
}

// Service is the notification adapter invoked by internal/signer and
// internal/signature's finalization fan-out.
type Service struct {
	settings   *tenant.SettingsRepository
	smtp       email.Service
	fallback   ProcessWideConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewService(settings *tenant.SettingsRepository, smtp email.Service, fallback ProcessWideConfig, logger *slog.Logger) *Service {
	return &Service{settings: settings, smtp: smtp, fallback: fallback, httpClient: &http.Client{Timeout: 10 * time.Second}, logger: logger}
}

// SendEmail implements `sendEmail(tenantId, {to, subject, html})` (spec §4.11).
// Uses the Resend HTTP API when an active per-tenant or process-wide
// RESEND_API_KEY is available, else falls back to plain SMTP.
func (s *Service) SendEmail(ctx context.Context, tenantID uuid.UUID, to, subject, html string) error {
	apiKey := s.fallback.ResendAPIKey
	from := s.fallback.ResendFrom

	if settings, err := s.settings.ByTenantID(ctx, tenantID); err == nil && settings.Resend != nil && settings.Resend.Active && settings.Resend.APIKey != "" {
		apiKey = settings.Resend.APIKey
	}

	if apiKey != "" {
		return s.sendViaResend(ctx, apiKey, from, to, subject, html)
	}

	s.logger.Info("sending email via smtp fallback", "to", to, "subject", subject)
	return s.smtp.SendRaw(ctx, to, subject, html)
}

type resendPayload struct {
	From    string `json:"from"`
	To      []string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (s *Service) sendViaResend(ctx context.Context, apiKey, from, to, subject, html string) error {
	body, err := json.Marshal(resendPayload{From: from, To: []string{to}, Subject: subject, HTML: html})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.resend.com/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("resend returned status %d", resp.StatusCode)
	}
	return nil
}

// CompletionRecipient is one target of the post-finalization email fan-out
// (spec §4.9 step 8h).
type CompletionRecipient struct {
	Name  string
	Email string
}

const defaultCompletionTemplate = `<p>Ola {{signer_name}},</p><p>O documento "{{doc_title}}" foi assinado por todos os signatarios.</p><p><a href="{{doc_link}}">Baixar documento</a></p>`

// SendCompletionEmails fans out the finalization notice to the owner and
// every signer, substituting the per-tenant finalEmailTemplate when present,
// else the built-in fallback (spec §4.9 step 8h, §4.11 template contract).
// Delivery failures are logged only, never returned.
func (s *Service) SendCompletionEmails(ctx context.Context, tenantID uuid.UUID, docTitle, docID, docLink string, recipients []CompletionRecipient) {
	tmpl := defaultCompletionTemplate
	if settings, err := s.settings.ByTenantID(ctx, tenantID); err == nil && settings.FinalEmailTemplate != nil && *settings.FinalEmailTemplate != "" {
		tmpl = *settings.FinalEmailTemplate
	}

	for _, r := range recipients {
		html := renderTemplate(tmpl, map[string]string{
			"signer_name": r.Name, "doc_title": docTitle, "doc_link": docLink, "doc_id": docID,
		})
		if err := s.SendEmail(ctx, tenantID, r.Email, fmt.Sprintf("Documento assinado: %s", docTitle), html); err != nil {
			s.logger.Warn("completion email delivery failed", "recipient", r.Email, "error", err)
		}
	}
}

func renderTemplate(tmpl string, tokens map[string]string) string {
	out := tmpl
	for k, v := range tokens {
		out = regexp.MustCompile(`\{\{\s*`+k+`\s*\}\}`).ReplaceAllString(out, v)
	}
	return out
}

var nonDigit = regexp.MustCompile(`\D`)

// NormalizePhoneE164Digits strips non-digits and, per spec §4.11, prepends
// `55` when the remainder is 10 or 11 digits (assumes already-prefixed
// otherwise).
func NormalizePhoneE164Digits(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")
	if len(digits) == 10 || len(digits) == 11 {
		return "55" + digits
	}
	return digits
}

type zapiPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendWhatsAppText implements `sendWhatsAppText(tenantId, {phone, message})`
// via the Z-API HTTP contract (spec §4.11).
func (s *Service) SendWhatsAppText(ctx context.Context, tenantID uuid.UUID, phone, message string) error {
	instanceID, token, clientToken := s.fallback.ZAPIInstanceID, s.fallback.ZAPIToken, s.fallback.ZAPIClient

	if settings, err := s.settings.ByTenantID(ctx, tenantID); err == nil && settings.ZAPI != nil && settings.ZAPI.Active && settings.ZAPI.InstanceID != "" {
		instanceID, token, clientToken = settings.ZAPI.InstanceID, settings.ZAPI.Token, settings.ZAPI.ClientToken
	}
	if instanceID == "" || token == "" {
		s.logger.Warn("whatsapp send skipped: no z-api credentials configured", "tenant_id", tenantID)
		return nil
	}

	body, err := json.Marshal(zapiPayload{Phone: NormalizePhoneE164Digits(phone), Message: message})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("https://api.z-api.io/instances/%s/token/%s/send-text", instanceID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if clientToken != "" {
		req.Header.Set("Client-Token", clientToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("z-api request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("z-api returned status %d", resp.StatusCode)
	}
	return nil
}
