package store

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// Store wraps a *sql.DB with the hand-rolled query methods in this
// package. Every multi-row update that touches a group and its members
// runs inside WithTx, which opens a serializable transaction per
// spec.md §5 ("keyed by the group id to prevent lost updates").
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func Open(connectionString string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, cmn.NewIO("db_open_failed", "failed to open database connection", err)
	}
	if err := db.Ping(); err != nil {
		return nil, cmn.NewIO("db_ping_failed", "database unreachable", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying *sql.DB for read-only query helpers in this
// package that accept the queryRower interface (*sql.DB or *sql.Tx).
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a SERIALIZABLE transaction, committing on success
// and rolling back on any error (including a panic, which it re-raises
// after rollback).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return cmn.NewIO("tx_begin_failed", "failed to begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return cmn.NewIO("tx_commit_failed", "failed to commit transaction", err)
	}
	return nil
}
