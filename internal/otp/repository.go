// Package otp mints, stores, and verifies the 6-digit one-time codes used
// by both password reset and signer authentication (spec §3 OtpCode).
package otp

import (
	"context"
	"errors"
	"time"

	"github.com/austrian-business-infrastructure/fo/pkg/crypto"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("otp not found")
	ErrExpired  = errors.New("otp has expired")
	ErrInvalid  = errors.New("otp code is invalid")
)

// Channel is the delivery channel for an OTP (spec §3 OtpCode).
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsapp Channel = "WHATSAPP"
)

// Context distinguishes what the OTP authorizes (spec §3 OtpCode).
type Context string

const (
	ContextLogin          Context = "LOGIN"
	ContextSigning        Context = "SIGNING"
	ContextPasswordReset  Context = "PASSWORD_RESET"
)

// Code is a pending one-time code row.
type Code struct {
	ID        uuid.UUID
	Recipient string
	Channel   Channel
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	Context   Context
	CreatedAt time.Time
}

// Repository persists OtpCode rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Mint generates a 6-digit code, hashes it, and persists a Code row with
// the given ttl/context/recipient/channel (spec §4.3 requestPasswordReset,
// §4.8 Start OTP). Returns the raw (unhashed) code for delivery.
func (r *Repository) Mint(ctx context.Context, recipient string, channel Channel, otpContext Context, ttl time.Duration) (string, *Code, error) {
	raw, err := mintOtp6()
	if err != nil {
		return "", nil, err
	}
	hash, err := crypto.HashPassword(raw)
	if err != nil {
		return "", nil, err
	}
	c := &Code{
		ID:        uuid.New(),
		Recipient: recipient,
		Channel:   channel,
		CodeHash:  hash,
		ExpiresAt: time.Now().UTC().Add(ttl),
		Context:   otpContext,
	}
	const q = `INSERT INTO otp_codes (id, recipient, channel, code_hash, expires_at, attempts, context)
	           VALUES ($1,$2,$3,$4,$5,0,$6) RETURNING created_at`
	if err := r.pool.QueryRow(ctx, q, c.ID, c.Recipient, c.Channel, c.CodeHash, c.ExpiresAt, c.Context).Scan(&c.CreatedAt); err != nil {
		return "", nil, err
	}
	return raw, c, nil
}

// MostRecentForRecipients returns the most recent Code in otpContext whose
// recipient is in recipients (spec §4.3/§4.8 Verify).
func (r *Repository) MostRecentForRecipients(ctx context.Context, otpContext Context, recipients []string) (*Code, error) {
	const q = `SELECT id, recipient, channel, code_hash, expires_at, attempts, context, created_at
	           FROM otp_codes WHERE context = $1 AND recipient = ANY($2)
	           ORDER BY created_at DESC LIMIT 1`
	c := &Code{}
	err := r.pool.QueryRow(ctx, q, otpContext, recipients).Scan(
		&c.ID, &c.Recipient, &c.Channel, &c.CodeHash, &c.ExpiresAt, &c.Attempts, &c.Context, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// IncrementAttempts records a failed verification (spec §4.8: "attempt
// counter is maintained but hard locking is not required").
func (r *Repository) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE otp_codes SET attempts = attempts + 1 WHERE id = $1`, id)
	return err
}

// Delete removes a Code row — called on successful verify, inside tx when
// one is supplied (resetPassword commits the row deletion alongside the
// password update in a single transaction, spec §4.3).
func (r *Repository) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if tx != nil {
		_, err := tx.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, id)
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, id)
	return err
}

// Verify checks submitted against c.CodeHash using the same bcrypt
// comparison the rest of the codebase uses for passwords.
func Verify(submitted string, c *Code) error {
	if time.Now().After(c.ExpiresAt) {
		return ErrExpired
	}
	if err := crypto.VerifyPassword(submitted, c.CodeHash); err != nil {
		return ErrInvalid
	}
	return nil
}
