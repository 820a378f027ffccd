package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/card"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/plan"
)

// CardRepository persists credit card records.
type CardRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*card.CreditCard, error)
	Create(ctx context.Context, c *card.CreditCard) error
	// Save writes the card with an optimistic version check and returns
	// a concurrency error when another writer got there first.
	Save(ctx context.Context, c *card.CreditCard) error
	List(ctx context.Context, activeOnly bool) ([]*card.CreditCard, error)
}

// PlanRepository persists installment plan records, including the full
// append-only payment history.
type PlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*plan.Plan, error)
	Create(ctx context.Context, p *plan.Plan) error
	Save(ctx context.Context, p *plan.Plan) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]*plan.Plan, error)
	ListByStatus(ctx context.Context, status plan.Status) ([]*plan.Plan, error)
}

// UnitOfWork runs a closure over transaction-scoped repositories. Every
// mutation inside the closure commits together or not at all.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, cards CardRepository, plans PlanRepository) error) error
}

// Clock supplies the current time; injected so tests control it.
type Clock func() time.Time
