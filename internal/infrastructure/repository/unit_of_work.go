package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/database"
	"github.com/ledgerline/finance-tracker-backend/internal/service/ledger"
)

// unitOfWork runs ledger operations inside one database transaction so the
// card and plan writes commit together or not at all.
type unitOfWork struct {
	pool *database.ConnectionPool
}

// NewUnitOfWork creates the transactional unit of work.
func NewUnitOfWork(pool *database.ConnectionPool) ledger.UnitOfWork {
	return &unitOfWork{pool: pool}
}

func (u *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, cards ledger.CardRepository, plans ledger.PlanRepository) error) error {
	return u.pool.Transaction(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewCardRepository(tx), NewPlanRepository(tx))
	})
}
