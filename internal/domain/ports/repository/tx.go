package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function
// within a database transaction, passing the underlying transaction
// handle via `tx`.
//
// Repository methods accept a `tx Tx` argument and MUST gracefully accept
// nil (non-transactional path). The concrete type is infra-defined
// (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
