package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
)

const sessionSelect = `
	SELECT id, created_at, resumed_at, completed_at, status,
	       proposed_count, validated_count, skipped_count,
	       current_group_id, last_activity_at
	FROM selection_sessions
`

func scanSession(row interface{ Scan(dest ...interface{}) error }) (*SelectionSession, error) {
	var s SelectionSession
	err := row.Scan(&s.ID, &s.CreatedAt, &s.ResumedAt, &s.CompletedAt, &s.Status,
		&s.ProposedCount, &s.ValidatedCount, &s.SkippedCount,
		&s.CurrentGroupID, &s.LastActivityAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ActiveSession returns the single active session, if any. Spec.md §8
// property 6: at most one session may be active at a time; enforced by
// the partial unique index in schema.go as well as this lookup.
func ActiveSession(ctx context.Context, q queryRower) (*SelectionSession, error) {
	row := q.QueryRowContext(ctx, sessionSelect+` WHERE status = 'active'`)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("no_active_session", "no active selection session")
	}
	if err != nil {
		return nil, cmn.NewIO("active_session_failed", "failed to load active session", err)
	}
	return s, nil
}

func GetSession(ctx context.Context, q queryRower, id uuid.UUID) (*SelectionSession, error) {
	row := q.QueryRowContext(ctx, sessionSelect+` WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("session_not_found", "selection session not found")
	}
	if err != nil {
		return nil, cmn.NewIO("get_session_failed", "failed to load selection session", err)
	}
	return s, nil
}

// StartSession creates a new active session. Callers must first check
// ActiveSession to honor the "at most one active session" invariant;
// the unique partial index is the backstop against a race.
func StartSession(ctx context.Context, tx *sql.Tx) (*SelectionSession, error) {
	id := uuid.New()
	now := cmn.NormalizeUTC(time.Now())
	_, err := tx.ExecContext(ctx, `
		INSERT INTO selection_sessions (id, created_at, status, last_activity_at)
		VALUES ($1, $2, 'active', $3)
	`, id, now, now)
	if err != nil {
		return nil, cmn.NewConflict("session_start_failed", "failed to start selection session")
	}
	return GetSession(ctx, tx, id)
}

func ResumeSession(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	now := cmn.NormalizeUTC(time.Now())
	_, err := tx.ExecContext(ctx, `
		UPDATE selection_sessions SET status = 'active', resumed_at = $1, last_activity_at = $1
		WHERE id = $2
	`, now, id)
	if err != nil {
		return cmn.NewIO("resume_session_failed", "failed to resume selection session", err)
	}
	return nil
}

func TouchSession(ctx context.Context, tx *sql.Tx, id uuid.UUID, currentGroupID *uuid.UUID) error {
	now := cmn.NormalizeUTC(time.Now())
	_, err := tx.ExecContext(ctx, `
		UPDATE selection_sessions SET last_activity_at = $1, current_group_id = $2 WHERE id = $3
	`, now, currentGroupID, id)
	if err != nil {
		return cmn.NewIO("touch_session_failed", "failed to update session activity", err)
	}
	return nil
}

func IncrementSessionCounter(ctx context.Context, tx *sql.Tx, id uuid.UUID, field string) error {
	column := map[string]string{
		"proposed":  "proposed_count",
		"validated": "validated_count",
		"skipped":   "skipped_count",
	}[field]
	if column == "" {
		return cmn.NewValidation("bad_session_counter", "unknown session counter field")
	}
	_, err := tx.ExecContext(ctx, `UPDATE selection_sessions SET `+column+` = `+column+` + 1 WHERE id = $1`, id)
	if err != nil {
		return cmn.NewIO("increment_session_counter_failed", "failed to update session counter", err)
	}
	return nil
}

func CompleteSession(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	now := cmn.NormalizeUTC(time.Now())
	_, err := tx.ExecContext(ctx, `
		UPDATE selection_sessions SET status = 'completed', completed_at = $1 WHERE id = $2
	`, now, id)
	if err != nil {
		return cmn.NewIO("complete_session_failed", "failed to complete selection session", err)
	}
	return nil
}
