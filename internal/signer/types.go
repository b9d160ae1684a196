// Package signer owns the Signer and ShareToken entities and the
// unauthenticated signing-session surface of spec §4.8: token resolution,
// identify, OTP challenge/verify, and position capture.
package signer

import (
	"time"

	"github.com/google/uuid"
)

// Status is the Signer lifecycle state (spec §3 Signer).
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusViewed   Status = "VIEWED"
	StatusSigned   Status = "SIGNED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

// AuthChannel is a delivery channel a signer may authenticate over.
type AuthChannel string

const (
	ChannelEmail    AuthChannel = "EMAIL"
	ChannelSMS      AuthChannel = "SMS"
	ChannelWhatsapp AuthChannel = "WHATSAPP"
)

// Signer is an invited signatory of one document (spec §3 Signer).
type Signer struct {
	ID                     uuid.UUID
	DocumentID             uuid.UUID
	Name                   string
	Email                  string
	CPF                    *string
	PhoneE164              *string
	Qualification          *string
	AuthChannels           []string
	Order                  int
	Status                 Status
	SignedAt               *time.Time
	IP                     *string
	SignatureUUID          *uuid.UUID
	SignatureHash          *string
	SignatureArtefactPath  *string
	PositionX              *float64
	PositionY              *float64
	PositionPage           *int
	ArtConfirmed           bool
	CreatedAt              time.Time
}

// ShareToken is the opaque signer-authorization artifact (spec §3
// ShareToken). The raw token is never persisted, only its sha256 hex.
type ShareToken struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	SignerID   uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	TimesUsed  int
}
