package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Logger is the call-site-friendly facade over Chain.AppendEvent used by
// service layers that don't want to build an Event literal inline.
type Logger struct {
	chain  *Chain
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLogger(repo *Repository, pool *pgxpool.Pool, logger *slog.Logger) *Logger {
	return &Logger{chain: NewChain(repo), pool: pool, logger: logger}
}

// Log appends an event to entityID's chain within tx.
func (l *Logger) Log(ctx context.Context, tx pgx.Tx, e Event) error {
	a, err := l.chain.AppendEvent(ctx, tx, e)
	if err != nil {
		l.logger.Error("audit append failed", "entity_id", e.EntityID, "action", e.Action, "error", err)
		return err
	}
	l.logger.Debug("audit event appended", "id", a.ID, "entity_id", a.EntityID, "action", a.Action)
	return nil
}

// LogStandalone appends an event in its own transaction, for call sites
// (e.g. Login) that have no wider transaction of their own to join.
func (l *Logger) LogStandalone(ctx context.Context, e Event) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := l.Log(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Chain exposes the underlying Chain for callers that need
// VerifyChainForDocument directly.
func (l *Logger) Chain() *Chain { return l.chain }
