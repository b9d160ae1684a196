// Package signature implements the signing commit & finalization algorithm
// of spec §4.9: per-signer commit, the allSigned re-read, and — for the
// last signer — PDF stamping, document finalization, and Certificate
// issuance. It also owns the invite operation that creates a document's
// Signer/ShareToken rows (spec §4.4/§6 POST /documents/:id/invite).
package signature

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is the completion artefact of a fully-signed document
// (spec §3 Certificate). Unique per documentId.
type Certificate struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	StorageKey string
	SHA256     string
	IssuedAt   time.Time
}

// CommitResult is the outcome of Commit (spec §4.9 steps 7/8).
type CommitResult struct {
	ShortCode     string
	SignatureHash string
	IsComplete    bool
}
