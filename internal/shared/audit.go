package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID       int64          `db:"id" json:"id"`
	ActorID  int64          `db:"actor_id" json:"actor_id"`
	Action   string         `db:"action" json:"action"`
	Entity   string         `db:"entity" json:"entity"`
	EntityID string         `db:"entity_id" json:"entity_id"`
	Meta     map[string]any `db:"meta" json:"meta,omitempty"`
	At       time.Time      `db:"occurred_at" json:"at"`
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct{}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

// Record persists the log entry through db, which is normally the open
// transaction of the change being audited.
func (l *AuditLogger) Record(ctx context.Context, db Execer, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = db.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// History returns the entries recorded for entity/entityID, oldest first.
func (l *AuditLogger) History(ctx context.Context, db pgxscan.Querier, entity, entityID string) ([]AuditLog, error) {
	if l == nil {
		return nil, errors.New("audit logger not initialised")
	}
	var logs []AuditLog
	err := pgxscan.Select(ctx, db, &logs, `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs WHERE entity=$1 AND entity_id=$2 ORDER BY occurred_at ASC, id ASC`, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit history: %w", err)
	}
	return logs, nil
}
