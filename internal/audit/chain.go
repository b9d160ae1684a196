package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const genesisSeed = "genesis_block_for_entity"

func genesisHash() string {
	sum := sha256.Sum256([]byte(genesisSeed))
	return hex.EncodeToString(sum[:])
}

// Event is the input to AppendEvent (spec §4.1).
type Event struct {
	TenantID   uuid.UUID
	ActorKind  ActorKind
	ActorID    *uuid.UUID
	EntityType EntityType
	EntityID   uuid.UUID
	Action     Action
	IP         *string
	UserAgent  *string
	Payload    map[string]any
}

// Chain appends and verifies the per-entity hash chain.
type Chain struct {
	repo *Repository
}

func NewChain(repo *Repository) *Chain {
	return &Chain{repo: repo}
}

// AppendEvent implements spec §4.1's exact algorithm. Must run inside tx:
// a transaction-scoped advisory lock keyed by entityId serializes
// concurrent appends to the same entityId across transactions until tx ends.
func (c *Chain) AppendEvent(ctx context.Context, tx pgx.Tx, e Event) (*AuditLog, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, e.EntityID.String()); err != nil {
		return nil, fmt.Errorf("lock entity chain: %w", err)
	}
	prior, err := c.repo.LatestForEntity(ctx, tx, e.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load prior event: %w", err)
	}
	prev := genesisHash()
	if prior != nil {
		prev = prior.EventHash
	}

	// Truncated to microsecond precision: Postgres TIMESTAMPTZ (and pgx's
	// round-trip of it) only keeps microseconds, so a nanosecond-precision
	// value here would hash differently than what a later SELECT re-scans,
	// breaking recomputeHash on every reload.
	now := time.Now().UTC().Truncate(time.Microsecond)
	serialized := canonicalPayload(e) + isoString(now)
	hash := sha256.Sum256([]byte(prev + serialized))

	a := &AuditLog{
		ID:            uuid.New(),
		TenantID:      e.TenantID,
		ActorKind:     e.ActorKind,
		ActorID:       e.ActorID,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		Action:        e.Action,
		IP:            e.IP,
		UserAgent:     e.UserAgent,
		PayloadJSON:   e.Payload,
		PrevEventHash: prev,
		EventHash:     hex.EncodeToString(hash[:]),
		CreatedAt:     now,
	}
	if err := c.repo.Insert(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return a, nil
}

// VerifyResult is the outcome of VerifyChainForDocument.
type VerifyResult struct {
	IsValid       bool
	BrokenEventID uuid.UUID
	Reason        string
	Count         int
}

// EventsForDocument returns the raw event sequence for a document's chain
// (spec §6 GET /documents/:id/audit), without the verification walk.
func (c *Chain) EventsForDocument(ctx context.Context, documentID uuid.UUID, signerIDs []uuid.UUID) ([]*AuditLog, error) {
	return c.repo.ForDocumentChain(ctx, documentID, signerIDs)
}

// VerifyChainForDocument implements spec §4.1's verification algorithm.
func (c *Chain) VerifyChainForDocument(ctx context.Context, documentID uuid.UUID, signerIDs []uuid.UUID) (*VerifyResult, error) {
	events, err := c.repo.ForDocumentChain(ctx, documentID, signerIDs)
	if err != nil {
		return nil, err
	}

	for i, ev := range events {
		if i > 0 {
			if ev.PrevEventHash != events[i-1].EventHash {
				return &VerifyResult{IsValid: false, BrokenEventID: ev.ID, Reason: "Broken Link"}, nil
			}
		}
		recomputed := recomputeHash(ev)
		if recomputed != ev.EventHash {
			return &VerifyResult{IsValid: false, BrokenEventID: ev.ID, Reason: "Hash Mismatch"}, nil
		}
	}

	return &VerifyResult{IsValid: true, Count: len(events)}, nil
}

func recomputeHash(a *AuditLog) string {
	e := Event{
		TenantID:   a.TenantID,
		ActorKind:  a.ActorKind,
		ActorID:    a.ActorID,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Action:     a.Action,
		IP:         a.IP,
		UserAgent:  a.UserAgent,
		Payload:    a.PayloadJSON,
	}
	serialized := canonicalPayload(e) + isoString(a.CreatedAt)
	hash := sha256.Sum256([]byte(a.PrevEventHash + serialized))
	return hex.EncodeToString(hash[:])
}

func isoString(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// canonicalPayload serializes {actorKind, actorId, entityType, entityId,
// action, ip, userAgent, ...payload} with that exact fixed key order
// (spec §4.1 step 2-3). encoding/json sorts map keys alphabetically, which
// would not reproduce the spec's order, so the object is built by hand.
func canonicalPayload(e Event) string {
	buf := []byte("{")
	write := func(key string, value any, first bool) {
		if !first {
			buf = append(buf, ',')
		}
		k, _ := json.Marshal(key)
		v, _ := json.Marshal(value)
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}

	write("actorKind", e.ActorKind, true)
	write("actorId", uuidPtrOrNil(e.ActorID), false)
	write("entityType", e.EntityType, false)
	write("entityId", e.EntityID.String(), false)
	write("action", e.Action, false)
	write("ip", strPtrOrNil(e.IP), false)
	write("userAgent", strPtrOrNil(e.UserAgent), false)

	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k, e.Payload[k], false)
	}

	buf = append(buf, '}')
	return string(buf)
}

func uuidPtrOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func strPtrOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
