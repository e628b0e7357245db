package screening

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NOTE: PostgresStore assumes the screening_calls table from migrations/ with:
// - UNIQUE (provider_call_id) where provider_call_id IS NOT NULL
// - a partial unique index allowing one completed row per application_id

const callColumns = `id, application_id, candidate_id, job_id, status, scheduled_at, started_at, completed_at,
       duration_seconds, transcript, audio_url, summary, evaluation, score,
       error_message, failure_reason, conflict_category, provider_call_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresStore implements Store on database/sql (pgx stdlib driver).
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

func (s *PostgresStore) Create(ctx context.Context, c Call) (Call, error) {
	if c.ApplicationID == "" {
		return Call{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	if c.ScheduledAt.IsZero() {
		c.ScheduledAt = now
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	const q = `
INSERT INTO screening_calls (
  id, application_id, candidate_id, job_id, status, scheduled_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	if _, err := s.db.ExecContext(ctx, q,
		c.ID,
		c.ApplicationID,
		c.CandidateID,
		c.JobID,
		c.Status,
		c.ScheduledAt,
		c.CreatedAt,
		c.UpdatedAt,
	); err != nil {
		return Call{}, err
	}
	return c, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM screening_calls WHERE id = $1`
	return scanCall(s.db.QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) GetByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, ErrNotFound
	}
	q := `SELECT ` + callColumns + ` FROM screening_calls WHERE provider_call_id = $1`
	return scanCall(s.db.QueryRowContext(ctx, q, providerCallID))
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Call, error) {
	q, args := buildListQuery(f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AttachProviderCall(ctx context.Context, id, providerCallID string, now time.Time) error {
	const q = `
UPDATE screening_calls
SET provider_call_id = $2, updated_at = $3
WHERE id = $1 AND status IN ('scheduled', 'in_progress')
`
	res, err := s.db.ExecContext(ctx, q, id, providerCallID, now.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrTerminal
	}
	return nil
}

func (s *PostgresStore) MarkInProgress(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	const q = `
UPDATE screening_calls
SET status = 'in_progress', started_at = $2, updated_at = $2
WHERE id = $1 AND status = 'scheduled'
`
	res, err := s.db.ExecContext(ctx, q, id, startedAt.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) Finalize(ctx context.Context, id string, f Finalization) (Call, bool, error) {
	if !f.Status.Terminal() {
		return Call{}, false, ErrInvalidArgument
	}
	var evaluation any
	if f.Evaluation != nil {
		raw, err := json.Marshal(f.Evaluation)
		if err != nil {
			return Call{}, false, err
		}
		evaluation = string(raw)
	}
	var score any
	if f.Score != nil {
		score = *f.Score
	}

	q := `
UPDATE screening_calls
SET status = $2,
    completed_at = $3,
    duration_seconds = COALESCE(NULLIF($4, 0), duration_seconds),
    transcript = $5,
    audio_url = $6,
    summary = $7,
    evaluation = $8,
    score = $9,
    error_message = $10,
    failure_reason = $11,
    conflict_category = $12,
    updated_at = $3
WHERE id = $1 AND status IN ('scheduled', 'in_progress')
RETURNING ` + callColumns

	c, err := scanCall(s.db.QueryRowContext(ctx, q,
		id,
		f.Status,
		f.CompletedAt.UTC(),
		f.DurationSeconds,
		f.Transcript,
		f.AudioURL,
		f.Summary,
		evaluation,
		score,
		f.ErrorMessage,
		string(f.FailureReason),
		f.ConflictCategory,
	))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Call{}, false, err
	}

	// Lost the compare-and-set: either the row is already terminal or it does not exist.
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Call{}, false, err
	}
	return existing, false, nil
}

func buildListQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ApplicationID != "" {
		add("application_id = $%d", f.ApplicationID)
	}
	if f.CandidateID != "" {
		add("candidate_id = $%d", f.CandidateID)
	}
	if f.JobID != "" {
		add("job_id = $%d", f.JobID)
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at < $%d", f.CreatedBefore.UTC())
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			args = append(args, string(st))
			ph = append(ph, fmt.Sprintf("$%d", len(args)))
		}
		where = append(where, "status IN ("+strings.Join(ph, ", ")+")")
	}

	q := `SELECT ` + callColumns + ` FROM screening_calls`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return q, args
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c              Call
		startedAt      sql.NullTime
		completedAt    sql.NullTime
		evaluation     []byte
		score          sql.NullFloat64
		failureReason  string
		providerCallID sql.NullString
	)
	if err := row.Scan(
		&c.ID,
		&c.ApplicationID,
		&c.CandidateID,
		&c.JobID,
		&c.Status,
		&c.ScheduledAt,
		&startedAt,
		&completedAt,
		&c.DurationSeconds,
		&c.Transcript,
		&c.AudioURL,
		&c.Summary,
		&evaluation,
		&score,
		&c.ErrorMessage,
		&failureReason,
		&c.ConflictCategory,
		&providerCallID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	if len(evaluation) > 0 {
		var ev Evaluation
		if err := json.Unmarshal(evaluation, &ev); err == nil {
			c.Evaluation = &ev
		}
	}
	if score.Valid {
		v := score.Float64
		c.Score = &v
	}
	c.FailureReason = Reason(failureReason)
	c.ProviderCallID = providerCallID.String
	return c, nil
}
