// Package postgres provides the PostgreSQL data access layer.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"sermon-search-api/internal/domain/repository"
)

// TxManager implements repository.Transactor on GORM transactions.
type TxManager struct {
	client *Client
}

// NewTxManager creates a transaction manager.
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction runs fn inside a transaction. Nested calls reuse the
// transaction already carried by the context.
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := getTxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	return m.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, repository.TxKey{}, tx)
		if err := fn(txCtx); err != nil {
			return fmt.Errorf("transaction rolled back: %w", err)
		}
		return nil
	})
}

func getTxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// getDB resolves the handle for a context: the in-flight transaction if
// present, otherwise the shared pool.
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := getTxFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
