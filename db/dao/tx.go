package dao

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type txContextKey struct{}

// WithTx binds tx to ctx so every DAO call made with ctx joins it.
func WithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func TxFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sqlx.Tx)
	return tx, ok && tx != nil
}
