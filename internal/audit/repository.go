package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to the audit_events table. It never updates or deletes.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, application_id, screening_call_id, actor_user_id, actor_role, reason, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.ApplicationID,
		e.ScreeningCallID,
		e.ActorUserID,
		e.ActorRole,
		e.Reason,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
