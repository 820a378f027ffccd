package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/card"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/plan"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/values"
)

// Service is the sole writer of cross-entity balance state: every mutation
// of a plan's outstanding principal is mirrored into its card's balance and
// available limit inside one transaction.
type Service struct {
	uow    UnitOfWork
	cards  CardRepository
	plans  PlanRepository
	logger *slog.Logger
	clock  Clock
}

// NewService creates the ledger service. The plain repositories serve
// read-only paths; all writes go through the unit of work.
func NewService(uow UnitOfWork, cards CardRepository, plans PlanRepository, logger *slog.Logger, clock Clock) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		uow:    uow,
		cards:  cards,
		plans:  plans,
		logger: logger,
		clock:  clock,
	}
}

// CreateCardRequest carries the fields for a new credit card.
type CreateCardRequest struct {
	Name                string
	TotalLimit          values.Money
	MinimumPaymentRate  values.Rate
	MonthlyInterestRate values.Rate
	AnnualInterestRate  values.Rate
	StatementDay        int
	PaymentDueDay       int
}

// CreateCard registers a new card.
func (s *Service) CreateCard(ctx context.Context, req CreateCardRequest) (*card.CreditCard, error) {
	c, err := card.NewCreditCard(req.Name, req.TotalLimit, req.MinimumPaymentRate,
		req.MonthlyInterestRate, req.AnnualInterestRate, req.StatementDay, req.PaymentDueDay)
	if err != nil {
		return nil, err
	}

	if err := s.cards.Create(ctx, c); err != nil {
		return nil, errors.NewInternalError("failed to create card").WithCause(err)
	}

	s.logger.InfoContext(ctx, "card created",
		slog.String("card_id", c.ID.String()),
		slog.String("total_limit", c.TotalLimit.String()))
	return c, nil
}

// GetCard fetches a card by id.
func (s *Service) GetCard(ctx context.Context, id uuid.UUID) (*card.CreditCard, error) {
	return s.cards.GetByID(ctx, id)
}

// ListCards lists cards, optionally only active ones.
func (s *Service) ListCards(ctx context.Context, activeOnly bool) ([]*card.CreditCard, error) {
	return s.cards.List(ctx, activeOnly)
}

// DeactivateCard soft-deletes a card. Refused while any plan still owes
// against it.
func (s *Service) DeactivateCard(ctx context.Context, id uuid.UUID) error {
	return s.withConcurrencyRetry(ctx, "deactivate_card", func(ctx context.Context) error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, cards CardRepository, plans PlanRepository) error {
			c, err := cards.GetByID(ctx, id)
			if err != nil {
				return err
			}

			owned, err := plans.ListByCard(ctx, id)
			if err != nil {
				return errors.NewInternalError("failed to list card plans").WithCause(err)
			}
			for _, p := range owned {
				if p.Status != plan.StatusCompleted && p.RemainingInstallments() > 0 {
					return errors.NewConflictError("card has plans with outstanding balance")
				}
			}

			if err := c.Deactivate(); err != nil {
				return err
			}
			return cards.Save(ctx, c)
		})
	})
}

// CreatePlanRequest carries the fields for registering a purchase.
type CreatePlanRequest struct {
	CardID   uuid.UUID
	Purchase plan.Purchase
}

// CreatePlan registers a purchase as an installment plan: the card's
// available limit drops and its balance rises by the purchase amount,
// atomically with the plan insert.
func (s *Service) CreatePlan(ctx context.Context, req CreatePlanRequest) (*plan.Plan, error) {
	var created *plan.Plan
	err := s.withConcurrencyRetry(ctx, "create_plan", func(ctx context.Context) error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, cards CardRepository, plans PlanRepository) error {
			c, err := cards.GetByID(ctx, req.CardID)
			if err != nil {
				return err
			}
			if !c.IsActive {
				return errors.NewInvalidStateError("card is inactive")
			}

			p, err := plan.NewPlan(c, req.Purchase)
			if err != nil {
				return err
			}

			if err := c.ApplyCharge(p.OriginalAmount); err != nil {
				return err
			}

			p.RecomputeDerived()
			if err := plans.Create(ctx, p); err != nil {
				return errors.NewInternalError("failed to persist plan").WithCause(err)
			}
			if err := cards.Save(ctx, c); err != nil {
				return err
			}

			created = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "installment plan created",
		slog.String("plan_id", created.ID.String()),
		slog.String("card_id", req.CardID.String()),
		slog.String("amount", created.OriginalAmount.String()),
		slog.Int("installments", created.TotalInstallments))
	return created, nil
}

// GetPlan fetches a plan by id.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*plan.Plan, error) {
	return s.plans.GetByID(ctx, id)
}

// Pay processes one installment payment. The card is touched only when the
// payment completes the plan: at that point the whole original amount rolls
// off the card's balance and the limit headroom returns. Partial paydown is
// not reflected in the available limit until then.
func (s *Service) Pay(ctx context.Context, planID uuid.UUID, amount values.Money, method string) (*plan.Plan, error) {
	var updated *plan.Plan
	err := s.withConcurrencyRetry(ctx, "pay_installment", func(ctx context.Context) error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, cards CardRepository, plans PlanRepository) error {
			p, err := plans.GetByID(ctx, planID)
			if err != nil {
				return err
			}

			result, err := p.ProcessPayment(amount, method, s.clock())
			if err != nil {
				return err
			}

			p.RecomputeDerived()
			if err := plans.Save(ctx, p); err != nil {
				return errors.NewInternalError("failed to persist plan").WithCause(err)
			}

			if result.Completed {
				c, err := cards.GetByID(ctx, p.CardID)
				if err != nil {
					return err
				}
				if err := c.ReleaseCharge(p.OriginalAmount); err != nil {
					return err
				}
				if err := cards.Save(ctx, c); err != nil {
					return err
				}
			}

			updated = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "installment payment processed",
		slog.String("plan_id", planID.String()),
		slog.String("amount", amount.String()),
		slog.Int("completed_installments", updated.CompletedInstallments),
		slog.Bool("plan_completed", updated.Status == plan.StatusCompleted))
	return updated, nil
}

// DeletePlan removes a plan that has no completed installments, restoring
// the card's limit by the original purchase amount.
func (s *Service) DeletePlan(ctx context.Context, planID uuid.UUID) error {
	err := s.withConcurrencyRetry(ctx, "delete_plan", func(ctx context.Context) error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, cards CardRepository, plans PlanRepository) error {
			p, err := plans.GetByID(ctx, planID)
			if err != nil {
				return err
			}
			if err := p.CanDelete(); err != nil {
				return err
			}

			c, err := cards.GetByID(ctx, p.CardID)
			if err != nil {
				return err
			}
			if err := c.ReleaseCharge(p.OriginalAmount); err != nil {
				return err
			}

			if err := plans.Delete(ctx, planID); err != nil {
				return errors.NewInternalError("failed to delete plan").WithCause(err)
			}
			return cards.Save(ctx, c)
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "installment plan deleted", slog.String("plan_id", planID.String()))
	return nil
}

// EarlyPayoffQuote quotes settling all remaining installments at once.
func (s *Service) EarlyPayoffQuote(ctx context.Context, planID uuid.UUID) (*plan.EarlyPayoffQuote, error) {
	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	quote := p.CalculateEarlyPayment()
	if quote == nil {
		return nil, errors.NewValidationError("EARLY_PAYMENT_DISABLED", "plan has no early payment option")
	}
	return quote, nil
}

// Schedule returns the projected payment schedule for a plan.
func (s *Service) Schedule(ctx context.Context, planID uuid.UUID) ([]plan.ProjectedRow, error) {
	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	return p.PaymentSchedule(), nil
}

// StatusAction is a manual plan transition requested by the client.
type StatusAction string

const (
	StatusActionPause   StatusAction = "pause"
	StatusActionResume  StatusAction = "resume"
	StatusActionDefault StatusAction = "default"
)

// UpdateStatus applies a manual state transition to a plan.
func (s *Service) UpdateStatus(ctx context.Context, planID uuid.UUID, action StatusAction) (*plan.Plan, error) {
	var updated *plan.Plan
	err := s.withConcurrencyRetry(ctx, "update_status", func(ctx context.Context) error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, cards CardRepository, plans PlanRepository) error {
			p, err := plans.GetByID(ctx, planID)
			if err != nil {
				return err
			}

			switch action {
			case StatusActionPause:
				err = p.Pause()
			case StatusActionResume:
				err = p.Resume()
			case StatusActionDefault:
				err = p.MarkDefaulted()
			default:
				err = errors.NewValidationError("INVALID_STATUS_ACTION", "unknown status action: "+string(action))
			}
			if err != nil {
				return err
			}

			if err := plans.Save(ctx, p); err != nil {
				return errors.NewInternalError("failed to persist plan").WithCause(err)
			}
			updated = p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// withConcurrencyRetry retries an operation once when the transactional
// commit lost a version race. Anything else surfaces immediately.
func (s *Service) withConcurrencyRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !errors.IsType(err, errors.ErrorTypeConcurrency) {
		return err
	}

	s.logger.WarnContext(ctx, "retrying after concurrent update", slog.String("operation", op))
	return fn(ctx)
}
