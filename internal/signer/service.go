package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/austrian-business-infrastructure/fo/internal/document"
	"github.com/austrian-business-infrastructure/fo/internal/otp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notifier is the minimal shape the signer service needs from
// internal/notification, accepted as an interface to avoid an import cycle.
type Notifier interface {
	SendEmail(ctx context.Context, tenantID uuid.UUID, to, subject, html string) error
	SendWhatsAppText(ctx context.Context, tenantID uuid.UUID, phone, message string) error
}

// Session bundles the {document, signer, shareToken} attached to the
// request context by ResolveToken (spec §4.8).
type Session struct {
	Document   *document.Document
	Signer     *Signer
	ShareToken *ShareToken
}

// Service implements spec §4.8's Signer Session & OTP operations.
type Service struct {
	pool     *pgxpool.Pool
	repo     *Repository
	docRepo  *document.Repository
	otpRepo  *otp.Repository
	auditLog *audit.Logger
	notifier Notifier
	logger   *slog.Logger
}

func NewService(pool *pgxpool.Pool, repo *Repository, docRepo *document.Repository, otpRepo *otp.Repository, auditLog *audit.Logger, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{pool: pool, repo: repo, docRepo: docRepo, otpRepo: otpRepo, auditLog: auditLog, notifier: notifier, logger: logger}
}

// ResolveToken implements spec §4.8's Resolve token middleware algorithm.
func (s *Service) ResolveToken(ctx context.Context, raw string) (*Session, error) {
	sum := sha256.Sum256([]byte(raw))
	hash := hex.EncodeToString(sum[:])

	token, err := s.repo.ByTokenHash(ctx, hash)
	if err != nil {
		return nil, apperr.NotFound("invalid signing link")
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, apperr.Expired("signing link has expired")
	}

	sg, err := s.repo.GetByID(ctx, token.SignerID)
	if err != nil {
		return nil, apperr.NotFound("invalid signing link")
	}
	if sg.Status == StatusSigned || sg.Status == StatusDeclined {
		return nil, apperr.LinkClosed("signing link is closed")
	}

	doc, err := s.docRepo.GetByIDAny(ctx, sg.DocumentID)
	if err != nil {
		return nil, apperr.NotFound("invalid signing link")
	}
	if doc.Status == document.StatusCancelled || doc.Status == document.StatusExpired || doc.Status == document.StatusSigned {
		return nil, apperr.LinkClosed("signing link is closed")
	}

	s.repo.IncrementUse(ctx, token.ID)
	return &Session{Document: doc, Signer: sg, ShareToken: token}, nil
}

// Summary implements spec §4.8's Summary GET: flips PENDING→VIEWED on
// first resolve and appends a VIEWED audit event.
func (s *Service) Summary(ctx context.Context, sess *Session, ip, userAgent string) error {
	if sess.Signer.Status != StatusPending {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.repo.MarkViewed(ctx, sess.Signer.ID); err != nil {
		return err
	}
	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: sess.Document.TenantID, ActorKind: audit.ActorSigner, ActorID: &sess.Signer.ID,
		EntityType: audit.EntityDocument, EntityID: sess.Document.ID, Action: audit.ActionViewed,
		IP: &ip, UserAgent: &userAgent,
	}); err != nil {
		return err
	}
	sess.Signer.Status = StatusViewed
	return tx.Commit(ctx)
}

// Identify persists {cpf, phone} on the signer row (spec §4.8 Identify).
func (s *Service) Identify(ctx context.Context, signerID uuid.UUID, cpf, phone *string) error {
	if cpf != nil && len(*cpf) != 11 {
		return apperr.Validation("cpf must be 11 digits")
	}
	return s.repo.Identify(ctx, signerID, cpf, phone)
}

// StartOTP mints and delivers an OTP per authChannel, fire-and-forget, and
// appends a masked-recipient OTP_SENT audit event (spec §4.8 Start OTP).
func (s *Service) StartOTP(ctx context.Context, sess *Session, ip, userAgent string) error {
	channels := sess.Signer.AuthChannels
	if len(channels) == 0 {
		channels = []string{string(ChannelEmail)}
	}

	for _, ch := range channels {
		recipient := sess.Signer.Email
		channel := otp.ChannelEmail
		switch ch {
		case string(ChannelSMS):
			channel, recipient = otp.ChannelSMS, phoneOf(sess.Signer)
		case string(ChannelWhatsapp):
			channel, recipient = otp.ChannelWhatsapp, phoneOf(sess.Signer)
		}
		if recipient == "" {
			continue
		}

		raw, _, err := s.otpRepo.Mint(ctx, recipient, channel, otp.ContextSigning, 10*time.Minute)
		if err != nil {
			return fmt.Errorf("mint otp: %w", err)
		}

		go s.deliver(sess.Document.TenantID, channel, recipient, raw)

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		masked := otp.MaskRecipient(recipient)
		err = s.auditLog.Log(ctx, tx, audit.Event{
			TenantID: sess.Document.TenantID, ActorKind: audit.ActorSigner, ActorID: &sess.Signer.ID,
			EntityType: audit.EntitySigner, EntityID: sess.Signer.ID, Action: audit.ActionOTPSent,
			IP: &ip, UserAgent: &userAgent, Payload: map[string]any{"recipient": masked, "channel": string(channel)},
		})
		if err == nil {
			err = tx.Commit(ctx)
		} else {
			tx.Rollback(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func phoneOf(s *Signer) string {
	if s.PhoneE164 == nil {
		return ""
	}
	return *s.PhoneE164
}

// deliver is the fire-and-forget send invoked from StartOTP; delivery
// errors are logged only and never roll back the mint.
func (s *Service) deliver(tenantID uuid.UUID, channel otp.Channel, recipient, code string) {
	ctx := context.Background()
	var err error
	switch channel {
	case otp.ChannelEmail:
		err = s.notifier.SendEmail(ctx, tenantID, recipient, "Seu codigo de verificacao", fmt.Sprintf("<p>Seu codigo: <b>%s</b></p>", code))
	default:
		err = s.notifier.SendWhatsAppText(ctx, tenantID, recipient, fmt.Sprintf("Seu codigo de verificacao: %s", code))
	}
	if err != nil {
		s.logger.Warn("otp delivery failed", "channel", channel, "error", err)
	}
}

// VerifyOTP implements spec §4.8 Verify OTP: locates the most recent
// SIGNING-context code for {email, phone}, verifies, and deletes on success.
func (s *Service) VerifyOTP(ctx context.Context, sess *Session, submitted, ip, userAgent string) error {
	recipients := []string{sess.Signer.Email}
	if sess.Signer.PhoneE164 != nil {
		recipients = append(recipients, *sess.Signer.PhoneE164)
	}

	code, err := s.otpRepo.MostRecentForRecipients(ctx, otp.ContextSigning, recipients)
	if err != nil {
		s.appendOTPFailed(ctx, sess, ip, userAgent, "not_found")
		return apperr.Expired("otp code has expired or was never requested")
	}

	if verr := otp.Verify(submitted, code); verr != nil {
		reason := "invalid"
		if verr == otp.ErrExpired {
			reason = "expired"
		}
		s.otpRepo.IncrementAttempts(ctx, code.ID)
		s.appendOTPFailed(ctx, sess, ip, userAgent, reason)
		if verr == otp.ErrExpired {
			return apperr.Expired("otp code has expired")
		}
		return apperr.Validation("otp code is invalid")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.otpRepo.Delete(ctx, tx, code.ID); err != nil {
		return err
	}
	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: sess.Document.TenantID, ActorKind: audit.ActorSigner, ActorID: &sess.Signer.ID,
		EntityType: audit.EntitySigner, EntityID: sess.Signer.ID, Action: audit.ActionOTPVerified,
		IP: &ip, UserAgent: &userAgent,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) appendOTPFailed(ctx context.Context, sess *Session, ip, userAgent, reason string) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return
	}
	defer tx.Rollback(ctx)
	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: sess.Document.TenantID, ActorKind: audit.ActorSigner, ActorID: &sess.Signer.ID,
		EntityType: audit.EntitySigner, EntityID: sess.Signer.ID, Action: audit.ActionOTPFailed,
		IP: &ip, UserAgent: &userAgent, Payload: map[string]any{"reason": reason},
	}); err == nil {
		tx.Commit(ctx)
	}
}

// SavePosition persists the signature field placement (spec §4.8 Save position).
func (s *Service) SavePosition(ctx context.Context, signerID uuid.UUID, x, y float64, page int) error {
	return s.repo.SavePosition(ctx, signerID, x, y, page)
}

// ConfirmArt persists the "confirm art" plain data-write (spec §4.8).
func (s *Service) ConfirmArt(ctx context.Context, signerID uuid.UUID) error {
	return s.repo.ConfirmArt(ctx, signerID)
}
