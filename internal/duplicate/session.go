package duplicate

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/store"
)

// Sessions implements spec.md §4.4.5, the review-session state machine.
// Kept as a separate type from Engine (rather than more Engine methods)
// since it owns a different invariant — "at most one active session" —
// and composes with Engine only through SetOriginal/AutoSelectOriginal.
type Sessions struct {
	db     *store.Store
	engine *Engine
}

func NewSessions(db *store.Store, engine *Engine) *Sessions {
	return &Sessions{db: db, engine: engine}
}

// Start implements spec.md §4.4.5 start(resumeExisting). If resumeExisting
// is true and an active session already exists, it re-attaches to it.
func (s *Sessions) Start(ctx context.Context, resumeExisting bool) (*store.SelectionSession, error) {
	existing, err := store.ActiveSession(ctx, s.db.DB())
	if err == nil {
		if resumeExisting {
			return existing, nil
		}
		return nil, cmn.NewConflict("session_active", "a selection session is already active")
	}
	if !cmn.Is(err, cmn.KindNotFound) {
		return nil, err
	}

	var created *store.SelectionSession
	txErr := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		sess, err := store.StartSession(ctx, tx)
		if err != nil {
			return err
		}
		created = sess
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// Propose implements spec.md §4.4.5 propose(groupId, fileId): it records
// the group as last-reviewed and triggers autoSelectOriginal's side
// effects on the group (same scoring path, just driven by the operator's
// chosen candidate rather than the scorer — we still run the shared
// SetOriginal path so the group ends up 'validated' directly since a
// human proposal is authoritative, unlike the scorer's conflict-averse
// auto pick).
func (s *Sessions) Propose(ctx context.Context, sessionID, groupID, fileID uuid.UUID) error {
	if err := s.engine.SetOriginal(ctx, groupID, fileID); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.IncrementSessionCounter(ctx, tx, sessionID, "proposed"); err != nil {
			return err
		}
		return store.TouchSession(ctx, tx, sessionID, &groupID)
	})
}

// Validate implements spec.md §4.4.5 validate(groupId): confirms the
// proposal already recorded by Propose and bumps the validated counter.
func (s *Sessions) Validate(ctx context.Context, sessionID, groupID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.IncrementSessionCounter(ctx, tx, sessionID, "validated"); err != nil {
			return err
		}
		return store.TouchSession(ctx, tx, sessionID, &groupID)
	})
}

// Skip implements spec.md §4.4.5 skip(groupId).
func (s *Sessions) Skip(ctx context.Context, sessionID, groupID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := store.IncrementSessionCounter(ctx, tx, sessionID, "skipped"); err != nil {
			return err
		}
		return store.TouchSession(ctx, tx, sessionID, &groupID)
	})
}

// Next implements spec.md §4.4.5 next(): returns the first pending group
// in store.ListGroups order. The session's current position is not
// consulted, so a skipped group, which stays pending, can be returned again.
func (s *Sessions) Next(ctx context.Context, sessionID uuid.UUID) (*store.DuplicateGroup, error) {
	pending := store.GroupPending
	groups, err := store.ListGroups(ctx, s.db.DB(), &pending, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, cmn.NewNotFound("no_more_groups", "no unresolved groups remain")
	}
	return groups[0], nil
}

// Complete implements spec.md §4.4.5 complete().
func (s *Sessions) Complete(ctx context.Context, sessionID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return store.CompleteSession(ctx, tx, sessionID)
	})
}
