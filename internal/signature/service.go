package signature

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/austrian-business-infrastructure/fo/internal/apperr"
	"github.com/austrian-business-infrastructure/fo/internal/audit"
	"github.com/austrian-business-infrastructure/fo/internal/document"
	"github.com/austrian-business-infrastructure/fo/internal/identity"
	"github.com/austrian-business-infrastructure/fo/internal/notification"
	"github.com/austrian-business-infrastructure/fo/internal/sigfield"
	"github.com/austrian-business-infrastructure/fo/internal/signer"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service implements the invite operation and the commit/finalization
// algorithm of spec §4.9.
type Service struct {
	pool          *pgxpool.Pool
	repo          *Repository
	docRepo       *document.Repository
	signerRepo    *signer.Repository
	identityRepo  *identity.Repository
	storage       document.Storage
	embedder      *sigfield.Embedder
	auditLog      *audit.Logger
	notifier      *notification.Service
	appURL        string
	shareTokenTTL time.Duration
	logger        *slog.Logger
}

func NewService(pool *pgxpool.Pool, repo *Repository, docRepo *document.Repository, signerRepo *signer.Repository,
	identityRepo *identity.Repository, storage document.Storage, embedder *sigfield.Embedder, auditLog *audit.Logger,
	notifier *notification.Service, appURL string, logger *slog.Logger) *Service {
	return &Service{
		pool: pool, repo: repo, docRepo: docRepo, signerRepo: signerRepo, identityRepo: identityRepo, storage: storage,
		embedder: embedder, auditLog: auditLog, notifier: notifier, appURL: appURL, shareTokenTTL: 30 * 24 * time.Hour, logger: logger,
	}
}

// InviteInput is one signer to invite (spec §6 POST /documents/:id/invite body.signers[]).
type InviteInput struct {
	Name         string
	Email        string
	Qualification *string
	AuthChannels []string
	Order        int
}

// InviteResult pairs a created Signer with its raw share token (for delivery).
type InviteResult struct {
	Signer   *signer.Signer
	RawToken string
}

// Invite creates Signer and ShareToken rows for a document (spec §4.4/§6
// invite). Caller is responsible for the document-level authorization check.
func (s *Service) Invite(ctx context.Context, tenantID, documentID uuid.UUID, signers []InviteInput) ([]*InviteResult, error) {
	doc, err := s.docRepo.GetByID(ctx, tenantID, documentID)
	if err != nil {
		return nil, apperr.NotFound("document not found")
	}
	if doc.Status != document.StatusReady && doc.Status != document.StatusPartiallySigned {
		return nil, apperr.Validation("document is not in an invitable state")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer tx.Rollback(ctx)

	results := make([]*InviteResult, 0, len(signers))
	for _, in := range signers {
		sg := &signer.Signer{
			DocumentID: documentID, Name: in.Name, Email: in.Email,
			Qualification: in.Qualification, AuthChannels: in.AuthChannels, Order: in.Order,
		}
		if err := s.signerRepo.Create(ctx, tx, sg); err != nil {
			return nil, apperr.Internal(fmt.Errorf("create signer: %w", err))
		}

		raw, hash, err := signer.MintShareToken()
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("mint share token: %w", err))
		}
		token := &signer.ShareToken{DocumentID: documentID, SignerID: sg.ID, TokenHash: hash, ExpiresAt: time.Now().UTC().Add(s.shareTokenTTL)}
		if err := s.signerRepo.CreateShareToken(ctx, tx, token); err != nil {
			return nil, apperr.Internal(fmt.Errorf("create share token: %w", err))
		}

		results = append(results, &InviteResult{Signer: sg, RawToken: raw})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal(err)
	}
	return results, nil
}

// notifySigner delivers the raw share token link over every authChannel the
// signer was invited with (spec §4.4: EMAIL always available, WHATSAPP when
// configured). Delivery failures are logged only, consistent with
// internal/notification's never-propagate contract.
func (s *Service) notifySigner(ctx context.Context, tenantID uuid.UUID, res *InviteResult) {
	link := fmt.Sprintf("%s/sign/%s", s.appURL, res.RawToken)
	subject := fmt.Sprintf("Voce tem um documento para assinar: %s", res.Signer.DocumentID.String())
	html := fmt.Sprintf(`<p>Ola %s,</p><p>Voce foi convidado a assinar um documento.</p><p><a href="%s">Assinar documento</a></p>`, res.Signer.Name, link)

	for _, channel := range res.Signer.AuthChannels {
		switch channel {
		case string(signer.ChannelWhatsapp):
			if res.Signer.PhoneE164 != nil {
				if err := s.notifier.SendWhatsAppText(ctx, tenantID, *res.Signer.PhoneE164, "Voce tem um documento para assinar: "+link); err != nil {
					s.logger.Warn("signer whatsapp invite delivery failed", "signer_id", res.Signer.ID, "error", err)
				}
			}
		default:
			if err := s.notifier.SendEmail(ctx, tenantID, res.Signer.Email, subject, html); err != nil {
				s.logger.Warn("signer email invite delivery failed", "signer_id", res.Signer.ID, "error", err)
			}
		}
	}
}

// Commit implements spec §4.9's 8-step algorithm.
func (s *Service) Commit(ctx context.Context, sess *signer.Session, clientFingerprint, signatureImageBase64, ip, userAgent string) (*CommitResult, error) {
	sg, doc := sess.Signer, sess.Document

	if sg.Status != signer.StatusPending && sg.Status != signer.StatusViewed {
		return nil, apperr.Conflict("signer has already responded")
	}
	if doc.Status != document.StatusReady && doc.Status != document.StatusPartiallySigned {
		return nil, apperr.Conflict("document is not open for signing")
	}

	timestamp := time.Now().UTC()
	sum := sha256.Sum256([]byte(doc.SHA256 + sg.ID.String() + timestamp.Format(time.RFC3339Nano) + clientFingerprint))
	signatureHash := hex.EncodeToString(sum[:])
	shortCode := strings.ToUpper(signatureHash[:6])
	sigUUID := uuid.New()

	png, err := base64.StdEncoding.DecodeString(signatureImageBase64)
	if err != nil {
		return nil, apperr.Validation("invalid signature image")
	}
	artefactInfo, err := s.storage.Store(ctx, doc.TenantID.String(), "signatures", sg.ID.String()+".png", newBytesReader(png), "image/png")
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("persist signature image: %w", err))
	}
	artefactPath := artefactInfo.Path

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer tx.Rollback(ctx)

	if err := s.signerRepo.CommitSign(ctx, tx, sg.ID, signatureHash, artefactPath, ip, sigUUID, timestamp); err != nil {
		return nil, apperr.Conflict("signer has already responded")
	}
	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: doc.TenantID, ActorKind: audit.ActorSigner, ActorID: &sg.ID,
		EntityType: audit.EntitySigner, EntityID: sg.ID, Action: audit.ActionSigned,
		IP: &ip, UserAgent: &userAgent,
		Payload: map[string]any{"signatureHash": signatureHash, "artefactPath": artefactPath, "shortCode": shortCode, "clientFingerprint": clientFingerprint, "ip": ip},
	}); err != nil {
		return nil, apperr.Internal(err)
	}

	allSigners, err := s.signerRepo.ForDocumentTx(ctx, tx, doc.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	allSigned := true
	for _, other := range allSigners {
		if other.Status != signer.StatusSigned {
			allSigned = false
			break
		}
	}

	if !allSigned {
		if err := tx.Commit(ctx); err != nil {
			return nil, apperr.Internal(err)
		}
		return &CommitResult{ShortCode: shortCode, SignatureHash: signatureHash, IsComplete: false}, nil
	}

	result, err := s.finalize(ctx, tx, doc, allSigners, timestamp)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Internal(err)
	}

	go s.fanOutCompletionEmails(doc, allSigners)

	_ = result
	return &CommitResult{ShortCode: shortCode, SignatureHash: signatureHash, IsComplete: true}, nil
}

// finalize implements spec §4.9 step 8: re-select the document row with
// row-locking semantics, skip if another racing commit already finalized
// it (status already SIGNED), stamp the PDF, write the new storage key,
// and issue the Certificate.
func (s *Service) finalize(ctx context.Context, tx pgx.Tx, doc *document.Document, allSigners []*signer.Signer, timestamp time.Time) (*CommitResult, error) {
	locked, err := s.docRepo.GetForUpdate(ctx, tx, doc.ID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("lock document: %w", err))
	}
	if locked.Status == document.StatusSigned {
		return &CommitResult{IsComplete: true}, nil
	}

	original, _, err := s.storage.Get(ctx, locked.StorageKey)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("load original pdf: %w", err))
	}
	defer original.Close()
	originalBytes, err := io.ReadAll(original)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("read original pdf: %w", err))
	}

	stamps := make([]sigfield.SignerStamp, 0, len(allSigners))
	for _, sg := range allSigners {
		var png []byte
		if sg.SignatureArtefactPath != nil {
			if rc, _, err := s.storage.Get(ctx, *sg.SignatureArtefactPath); err == nil {
				png, _ = io.ReadAll(rc)
				rc.Close()
			}
		}
		signedAt := timestamp
		if sg.SignedAt != nil {
			signedAt = *sg.SignedAt
		}
		stamps = append(stamps, sigfield.SignerStamp{Name: sg.Name, Email: sg.Email, SignedAt: signedAt, SignatureImage: png})
	}

	stamped, err := s.embedder.EmbedSignatures(originalBytes, stamps, sigfield.RegistryInfo{Title: locked.Title, DocumentID: locked.ID.String()})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("stamp pdf: %w", err))
	}

	ext := filepath.Ext(locked.StorageKey)
	newInfo, err := s.storage.Store(ctx, locked.TenantID.String(), "finalized", locked.ID.String()+"-signed"+ext, newBytesReader(stamped), "application/pdf")
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("store stamped pdf: %w", err))
	}
	sum := sha256.Sum256(stamped)
	newSHA256 := hex.EncodeToString(sum[:])

	if err := s.docRepo.FinalizeSigned(ctx, tx, locked.ID, newInfo.Path, newSHA256); err != nil {
		return nil, apperr.Internal(fmt.Errorf("finalize document: %w", err))
	}
	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: locked.TenantID, ActorKind: audit.ActorSystem, EntityType: audit.EntityDocument,
		EntityID: locked.ID, Action: audit.ActionStatusChanged,
		Payload: map[string]any{"newStatus": document.StatusSigned, "newSha256": newSHA256},
	}); err != nil {
		return nil, apperr.Internal(err)
	}

	certSum := sha256.Sum256([]byte("CERT-" + locked.ID.String() + timestamp.Format(time.RFC3339Nano)))
	cert := &Certificate{
		DocumentID: locked.ID, StorageKey: fmt.Sprintf("certificates/%s.pdf", locked.ID.String()),
		SHA256: hex.EncodeToString(certSum[:]), IssuedAt: timestamp,
	}
	if err := s.repo.InsertCertificate(ctx, tx, cert); err != nil {
		return nil, apperr.Internal(fmt.Errorf("insert certificate: %w", err))
	}
	if err := s.auditLog.Log(ctx, tx, audit.Event{
		TenantID: locked.TenantID, ActorKind: audit.ActorSystem, EntityType: audit.EntityDocument,
		EntityID: locked.ID, Action: audit.ActionCertificateIssued,
		Payload: map[string]any{"certificateId": cert.ID.String()},
	}); err != nil {
		return nil, apperr.Internal(err)
	}

	return &CommitResult{IsComplete: true}, nil
}

// fanOutCompletionEmails implements spec §4.9 step 8h: best-effort, after
// commit, never rolls anything back on failure.
func (s *Service) fanOutCompletionEmails(doc *document.Document, allSigners []*signer.Signer) {
	ctx := context.Background()
	recipients := make([]notification.CompletionRecipient, 0, len(allSigners)+1)
	for _, sg := range allSigners {
		recipients = append(recipients, notification.CompletionRecipient{Name: sg.Name, Email: sg.Email})
	}
	if owner, err := s.identityRepo.ByID(ctx, doc.OwnerID); err == nil {
		recipients = append(recipients, notification.CompletionRecipient{Name: owner.Name, Email: owner.Email})
	}
	docLink := fmt.Sprintf("%s/documents/%s", s.appURL, doc.ID.String())
	s.notifier.SendCompletionEmails(ctx, doc.TenantID, doc.Title, doc.ID.String(), docLink, recipients)
}

// SendReminders implements the delivery half of spec §4.10's reminder
// scheduler hook: mints a fresh share token per still-pending signer of doc
// and re-delivers the signing link over their authChannels. Best-effort —
// a delivery failure for one signer never blocks the others.
func (s *Service) SendReminders(ctx context.Context, doc *document.Document) error {
	signers, err := s.signerRepo.ForDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("load signers: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	defer tx.Rollback(ctx)

	pending := make([]*InviteResult, 0, len(signers))
	for _, sg := range signers {
		if sg.Status == signer.StatusSigned || sg.Status == signer.StatusDeclined {
			continue
		}
		raw, hash, err := signer.MintShareToken()
		if err != nil {
			s.logger.Warn("reminder token mint failed", "signer_id", sg.ID, "error", err)
			continue
		}
		token := &signer.ShareToken{DocumentID: doc.ID, SignerID: sg.ID, TokenHash: hash, ExpiresAt: time.Now().UTC().Add(s.shareTokenTTL)}
		if err := s.signerRepo.CreateShareToken(ctx, tx, token); err != nil {
			s.logger.Warn("reminder token create failed", "signer_id", sg.ID, "error", err)
			continue
		}
		pending = append(pending, &InviteResult{Signer: sg, RawToken: raw})
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Internal(err)
	}

	for _, res := range pending {
		s.notifySigner(ctx, doc.TenantID, res)
	}
	return nil
}

func newBytesReader(b []byte) io.Reader { return bytesReader{b} }

type bytesReader struct{ b []byte }

func (r bytesReader) Read(p []byte) (int, error) {
	n := copy(p, r.b)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}
