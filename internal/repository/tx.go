// Package repository contains the ClaimStore implementations: SQLite for
// production and an in-memory store for tests and local development.
package repository

import (
	"context"
	"database/sql"
)

type contextKey string

const txKey = contextKey("tx")

// executor abstracts *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxManager runs a function inside a database transaction carried through
// the context, so store methods called within it share one transaction.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a transaction manager over the database
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx begins a transaction, injects it into the context and commits
// when fn returns nil, rolling back otherwise.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// getExecutor returns the transaction from the context when present,
// falling back to the plain connection.
func getExecutor(ctx context.Context, db *sql.DB) executor {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return db
}
