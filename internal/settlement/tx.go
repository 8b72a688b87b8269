package settlement

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/db"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/inventory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/rewards"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

// Repos is the set of repositories bound to one transaction (or, from
// TxRunner.Read, to no transaction at all).
type Repos struct {
	Orders     order.Repository
	Products   inventory.Repository
	Complaints complaint.Repository
	Wallets    wallet.Repository
	Rewards    rewards.Repository
}

// TxRunner is the transactional boundary of every settlement command.
type TxRunner interface {
	// InTx runs fn in one transaction. fn returning an error rolls back every
	// write it made through r.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	// Read returns lock-free repositories for queries.
	Read() Repos
}

type postgresRunner struct {
	pg *db.Postgres
}

func NewPostgresRunner(pg *db.Postgres) TxRunner {
	return &postgresRunner{pg: pg}
}

func (p *postgresRunner) InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return p.pg.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, reposFor(tx))
	})
}

func (p *postgresRunner) Read() Repos {
	return reposFor(p.pg.Pool)
}

func reposFor(q db.Querier) Repos {
	return Repos{
		Orders:     order.NewRepository(q),
		Products:   inventory.NewRepository(q),
		Complaints: complaint.NewRepository(q),
		Wallets:    wallet.NewRepository(q),
		Rewards:    rewards.NewRepository(q),
	}
}
