package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/plan"
	"github.com/ledgerline/finance-tracker-backend/internal/service/ledger"
)

// planRepository implements ledger.PlanRepository over PostgreSQL. The
// payment history is stored as an append-only JSONB array ordered by
// installment number; it is the audit source for early-payoff math.
type planRepository struct {
	db Querier
}

// NewPlanRepository creates a plan repository over a pool or transaction.
func NewPlanRepository(db Querier) ledger.PlanRepository {
	return &planRepository{db: db}
}

const planColumns = `
	id, card_id, category_id, description, tags, notes,
	original_amount::text, total_installments, completed_installments,
	interest_rate::text, interest_amount::text, total_amount_with_interest::text, installment_amount::text,
	plan_type, status,
	purchase_date, first_payment_date, next_payment_date, last_payment_date,
	early_payment_option, early_payment_discount::text,
	is_promotional, promotional_period, promotional_rate::text,
	payment_history, created_at, updated_at`

func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	query := `SELECT` + planColumns + ` FROM installment_plans WHERE id = $1`

	p, err := scanPlan(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

func (r *planRepository) Create(ctx context.Context, p *plan.Plan) error {
	history, err := json.Marshal(p.PaymentHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal payment history: %w", err)
	}

	query := `
		INSERT INTO installment_plans (
			id, card_id, category_id, description, tags, notes,
			original_amount, total_installments, completed_installments,
			interest_rate, interest_amount, total_amount_with_interest, installment_amount,
			plan_type, status,
			purchase_date, first_payment_date, next_payment_date, last_payment_date,
			early_payment_option, early_payment_discount,
			is_promotional, promotional_period, promotional_rate,
			payment_history, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)`

	_, err = r.db.Exec(ctx, query,
		p.ID, p.CardID, p.CategoryID, p.Description, p.Tags, p.Notes,
		p.OriginalAmount.Amount(), p.TotalInstallments, p.CompletedInstallments,
		p.InterestRate.Fraction(), p.InterestAmount.Amount(), p.TotalAmountWithInterest.Amount(), p.InstallmentAmount.Amount(),
		p.PlanType.String(), p.Status.String(),
		p.PurchaseDate, p.FirstPaymentDate, p.NextPaymentDate, p.LastPaymentDate,
		p.EarlyPaymentOption, p.EarlyPaymentDiscount.Fraction(),
		p.IsPromotional, p.PromotionalPeriod, p.PromotionalRate.Fraction(),
		history, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

func (r *planRepository) Save(ctx context.Context, p *plan.Plan) error {
	history, err := json.Marshal(p.PaymentHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal payment history: %w", err)
	}

	query := `
		UPDATE installment_plans SET
			description = $2, tags = $3, notes = $4,
			completed_installments = $5,
			interest_rate = $6, interest_amount = $7,
			total_amount_with_interest = $8, installment_amount = $9,
			status = $10, next_payment_date = $11,
			payment_history = $12, updated_at = $13
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		p.ID, p.Description, p.Tags, p.Notes,
		p.CompletedInstallments,
		p.InterestRate.Fraction(), p.InterestAmount.Amount(),
		p.TotalAmountWithInterest.Amount(), p.InstallmentAmount.Amount(),
		p.Status.String(), p.NextPaymentDate,
		history, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPlanNotFound
	}
	return nil
}

func (r *planRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM installment_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPlanNotFound
	}
	return nil
}

func (r *planRepository) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*plan.Plan, error) {
	query := `SELECT` + planColumns + ` FROM installment_plans WHERE card_id = $1 ORDER BY created_at`
	return r.list(ctx, query, cardID)
}

func (r *planRepository) ListByStatus(ctx context.Context, status plan.Status) ([]*plan.Plan, error) {
	query := `SELECT` + planColumns + ` FROM installment_plans WHERE status = $1 ORDER BY next_payment_date`
	return r.list(ctx, query, status.String())
}

func (r *planRepository) list(ctx context.Context, query string, args ...any) ([]*plan.Plan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var p plan.Plan
	var planType, status string
	var history []byte

	err := row.Scan(
		&p.ID, &p.CardID, &p.CategoryID, &p.Description, &p.Tags, &p.Notes,
		&p.OriginalAmount, &p.TotalInstallments, &p.CompletedInstallments,
		&p.InterestRate, &p.InterestAmount, &p.TotalAmountWithInterest, &p.InstallmentAmount,
		&planType, &status,
		&p.PurchaseDate, &p.FirstPaymentDate, &p.NextPaymentDate, &p.LastPaymentDate,
		&p.EarlyPaymentOption, &p.EarlyPaymentDiscount,
		&p.IsPromotional, &p.PromotionalPeriod, &p.PromotionalRate,
		&history, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PlanType = plan.ParsePlanType(planType)
	p.Status, err = plan.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &p.PaymentHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment history: %w", err)
		}
	}
	if p.PaymentHistory == nil {
		p.PaymentHistory = []plan.PaymentRecord{}
	}

	return &p, nil
}
