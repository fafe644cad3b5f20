package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside one database transaction, passing the
// transaction handle as tx. Repositories accept that handle (or nil for the pool)
// so use cases never see driver types.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		p, err := intents.FindByID(ctx, tx, id)
//		...
//	})
//
// Repositories MUST accept a nil tx (non-transactional path). Side effects that
// must not be seen before the commit go through AfterCommit.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// WithCommitHooks returns a context that collects AfterCommit callbacks and the
// function that runs them. A TransactionManager calls run only once the
// transaction has committed.
func WithCommitHooks(ctx context.Context) (hooked context.Context, run func(context.Context)) {
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h.run
}

// AfterCommit defers fn until the surrounding transaction commits. A rolled back
// transaction drops it. Outside WithTx fn runs at once.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}

func (h *commitHooks) run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}
