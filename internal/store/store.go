// Package store is the system of record for the venue programming data.
// Reads are served to the API layer; writes come only from the ingestion
// boundary and run inside transactions so that cross-reference updates land
// atomically.
package store

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func New(bdb *bun.DB) *DB {
	return &DB{Bun: bdb}
}

type txKey struct{}

// RunInTx runs fn inside a transaction. Every store method called with the
// context fn receives joins that transaction, so a logical update spanning
// several entities commits or rolls back as one unit. Nested calls reuse the
// transaction already on the context.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or the plain connection pool.
func (d *DB) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return d.Bun
}
