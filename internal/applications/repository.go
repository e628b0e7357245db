package applications

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"screening-platform/pkg/utils"

	"github.com/google/uuid"
)

// PostgresService implements Service over the applications, candidates, jobs and
// application_timeline tables. It assumes UNIQUE (application_id, dedupe_key) on
// application_timeline.
type PostgresService struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db, clock: time.Now}
}

func (s *PostgresService) Get(ctx context.Context, id string) (Application, error) {
	const q = `
SELECT a.id, a.candidate_id, a.job_id, a.status, c.name, c.phone, j.title, j.department, j.company_name, a.updated_at
FROM applications a
JOIN candidates c ON c.id = a.candidate_id
JOIN jobs j ON j.id = a.job_id
WHERE a.id = $1
`
	var a Application
	if err := s.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID,
		&a.CandidateID,
		&a.JobID,
		&a.Status,
		&a.CandidateName,
		&a.CandidatePhone,
		&a.JobTitle,
		&a.Department,
		&a.CompanyName,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, err
	}

	timeline, err := listTimeline(ctx, s.db, id)
	if err != nil {
		return Application{}, err
	}
	a.Timeline = timeline
	return a, nil
}

// UpdateStatus serializes concurrent updates per application with a row lock and
// deduplicates on DedupeKey inside the same transaction.
func (s *PostgresService) UpdateStatus(ctx context.Context, u StatusUpdate) (TimelineEntry, bool, error) {
	if err := u.validate(); err != nil {
		return TimelineEntry{}, false, err
	}

	var (
		out     TimelineEntry
		created bool
	)
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := lockApplication(ctx, tx, u.ApplicationID); err != nil {
			return err
		}

		existing, found, err := findTimelineByDedupe(ctx, tx, u.ApplicationID, u.DedupeKey)
		if err != nil {
			return err
		}
		if found {
			out = existing
			return nil
		}

		now := s.clock().UTC()
		e := TimelineEntry{
			ID:            uuid.NewString(),
			ApplicationID: u.ApplicationID,
			Step:          u.Step,
			Status:        u.Status,
			Note:          u.Note,
			Actor:         u.Actor,
			DedupeKey:     u.DedupeKey,
			CreatedAt:     now,
		}
		if err := insertTimeline(ctx, tx, e); err != nil {
			return err
		}
		if err := setStatus(ctx, tx, u.ApplicationID, u.Status, now); err != nil {
			return err
		}
		out = e
		created = true
		return nil
	})
	if err != nil {
		return TimelineEntry{}, false, err
	}
	return out, created, nil
}

func lockApplication(ctx context.Context, tx *sql.Tx, id string) error {
	const q = `SELECT id FROM applications WHERE id = $1 FOR UPDATE`
	var got string
	if err := tx.QueryRowContext(ctx, q, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func findTimelineByDedupe(ctx context.Context, tx *sql.Tx, applicationID, key string) (TimelineEntry, bool, error) {
	const q = `
SELECT id, application_id, step, status, note, actor, dedupe_key, created_at
FROM application_timeline
WHERE application_id = $1 AND dedupe_key = $2
LIMIT 1
`
	var e TimelineEntry
	err := tx.QueryRowContext(ctx, q, applicationID, key).Scan(
		&e.ID,
		&e.ApplicationID,
		&e.Step,
		&e.Status,
		&e.Note,
		&e.Actor,
		&e.DedupeKey,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TimelineEntry{}, false, nil
		}
		return TimelineEntry{}, false, err
	}
	return e, true, nil
}

func insertTimeline(ctx context.Context, tx *sql.Tx, e TimelineEntry) error {
	const q = `
INSERT INTO application_timeline (
  id, application_id, step, status, note, actor, dedupe_key, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.ApplicationID,
		e.Step,
		e.Status,
		e.Note,
		e.Actor,
		e.DedupeKey,
		e.CreatedAt,
	)
	return err
}

func setStatus(ctx context.Context, tx *sql.Tx, id string, status Status, now time.Time) error {
	const q = `UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, status, now)
	return err
}

func listTimeline(ctx context.Context, db *sql.DB, applicationID string) ([]TimelineEntry, error) {
	const q = `
SELECT id, application_id, step, status, note, actor, dedupe_key, created_at
FROM application_timeline
WHERE application_id = $1
ORDER BY created_at ASC
`
	rows, err := db.QueryContext(ctx, q, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Step, &e.Status, &e.Note, &e.Actor, &e.DedupeKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
