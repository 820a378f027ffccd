package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/card"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
	"github.com/ledgerline/finance-tracker-backend/internal/service/ledger"
)

// cardRepository implements ledger.CardRepository over PostgreSQL.
type cardRepository struct {
	db Querier
}

// NewCardRepository creates a card repository over a pool or transaction.
func NewCardRepository(db Querier) ledger.CardRepository {
	return &cardRepository{db: db}
}

const cardColumns = `
	id, name,
	total_limit::text, available_limit::text, current_balance::text,
	minimum_payment_rate::text, monthly_interest_rate::text, annual_interest_rate::text,
	statement_day, payment_due_day, is_active, version, created_at, updated_at`

func (r *cardRepository) GetByID(ctx context.Context, id uuid.UUID) (*card.CreditCard, error) {
	query := `SELECT` + cardColumns + ` FROM credit_cards WHERE id = $1`

	c, err := scanCard(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return c, nil
}

func (r *cardRepository) Create(ctx context.Context, c *card.CreditCard) error {
	query := `
		INSERT INTO credit_cards (
			id, name, total_limit, available_limit, current_balance,
			minimum_payment_rate, monthly_interest_rate, annual_interest_rate,
			statement_day, payment_due_day, is_active, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.Name,
		c.TotalLimit.Amount(), c.AvailableLimit.Amount(), c.CurrentBalance.Amount(),
		c.MinimumPaymentRate.Fraction(), c.MonthlyInterestRate.Fraction(), c.AnnualInterestRate.Fraction(),
		c.StatementDay, c.PaymentDueDay, c.IsActive, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}
	return nil
}

// Save updates the card guarded by its version: a stale version means
// another ledger operation won the race and the caller must retry.
func (r *cardRepository) Save(ctx context.Context, c *card.CreditCard) error {
	query := `
		UPDATE credit_cards SET
			name = $3,
			total_limit = $4, available_limit = $5, current_balance = $6,
			minimum_payment_rate = $7, monthly_interest_rate = $8, annual_interest_rate = $9,
			statement_day = $10, payment_due_day = $11, is_active = $12,
			version = version + 1, updated_at = $13
		WHERE id = $1 AND version = $2`

	tag, err := r.db.Exec(ctx, query,
		c.ID, c.Version, c.Name,
		c.TotalLimit.Amount(), c.AvailableLimit.Amount(), c.CurrentBalance.Amount(),
		c.MinimumPaymentRate.Fraction(), c.MonthlyInterestRate.Fraction(), c.AnnualInterestRate.Fraction(),
		c.StatementDay, c.PaymentDueDay, c.IsActive, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM credit_cards WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check card existence: %w", err)
		}
		if !exists {
			return errors.ErrCardNotFound
		}
		return errors.NewConcurrencyError("card was modified concurrently")
	}

	c.Version++
	return nil
}

func (r *cardRepository) List(ctx context.Context, activeOnly bool) ([]*card.CreditCard, error) {
	query := `SELECT` + cardColumns + ` FROM credit_cards`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*card.CreditCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func scanCard(row pgx.Row) (*card.CreditCard, error) {
	var c card.CreditCard
	err := row.Scan(
		&c.ID, &c.Name,
		&c.TotalLimit, &c.AvailableLimit, &c.CurrentBalance,
		&c.MinimumPaymentRate, &c.MonthlyInterestRate, &c.AnnualInterestRate,
		&c.StatementDay, &c.PaymentDueDay, &c.IsActive, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
