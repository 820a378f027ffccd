package reporting

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/plan"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/values"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/cache"
	"github.com/ledgerline/finance-tracker-backend/internal/service/ledger"
)

const utilizationCacheKey = "reports:utilization"

var oneHundred = decimal.NewFromInt(100)

// Service produces read-only projections over cards and plans. Reports are
// best-effort: a single plan that cannot be computed is logged and excluded
// rather than failing the whole report.
type Service struct {
	cards        ledger.CardRepository
	plans        ledger.PlanRepository
	cache        cache.Cache
	cacheTTL     time.Duration
	paymentFloor values.Money
	logger       *slog.Logger
	clock        ledger.Clock
}

// NewService creates the reporting service. The cache is injected so tests
// control time and eviction.
func NewService(cards ledger.CardRepository, plans ledger.PlanRepository, c cache.Cache, cacheTTL time.Duration, paymentFloor values.Money, logger *slog.Logger, clock ledger.Clock) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cards:        cards,
		plans:        plans,
		cache:        c,
		cacheTTL:     cacheTTL,
		paymentFloor: paymentFloor,
		logger:       logger,
		clock:        clock,
	}
}

// CardUtilization is the per-card slice of the utilization summary.
type CardUtilization struct {
	CardID          uuid.UUID       `json:"card_id"`
	Name            string          `json:"name"`
	TotalLimit      values.Money    `json:"total_limit"`
	AvailableLimit  values.Money    `json:"available_limit"`
	CurrentBalance  values.Money    `json:"current_balance"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"`
	MinimumPayment  values.Money    `json:"minimum_payment"`
}

// UtilizationSummary aggregates limit usage across all active cards.
type UtilizationSummary struct {
	TotalLimit      values.Money      `json:"total_limit"`
	TotalUsed       values.Money      `json:"total_used"`
	TotalDebt       values.Money      `json:"total_debt"`
	CardCount       int               `json:"card_count"`
	UtilizationRate decimal.Decimal   `json:"utilization_rate"`
	Cards           []CardUtilization `json:"cards"`
}

// CardUtilizationSummary returns the aggregate utilization across active
// cards, served from the cache within the configured TTL.
func (s *Service) CardUtilizationSummary(ctx context.Context) (*UtilizationSummary, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, utilizationCacheKey); err == nil {
			var summary UtilizationSummary
			if err := json.Unmarshal([]byte(cached), &summary); err == nil {
				return &summary, nil
			}
			// A corrupt entry is dropped and recomputed.
			_ = s.cache.Delete(ctx, utilizationCacheKey)
		}
	}

	cards, err := s.cards.List(ctx, true)
	if err != nil {
		return nil, err
	}

	summary := &UtilizationSummary{
		TotalLimit: values.ZeroMoney(),
		TotalUsed:  values.ZeroMoney(),
		TotalDebt:  values.ZeroMoney(),
		CardCount:  len(cards),
		Cards:      make([]CardUtilization, 0, len(cards)),
	}

	for _, c := range cards {
		used := c.TotalLimit.Sub(c.AvailableLimit)
		summary.TotalLimit = summary.TotalLimit.Add(c.TotalLimit)
		summary.TotalUsed = summary.TotalUsed.Add(used)
		summary.TotalDebt = summary.TotalDebt.Add(c.CurrentBalance)
		summary.Cards = append(summary.Cards, CardUtilization{
			CardID:          c.ID,
			Name:            c.Name,
			TotalLimit:      c.TotalLimit,
			AvailableLimit:  c.AvailableLimit,
			CurrentBalance:  c.CurrentBalance,
			UtilizationRate: c.UtilizationRate(),
			MinimumPayment:  c.MinimumPayment(s.paymentFloor),
		})
	}

	if summary.TotalLimit.IsZero() {
		summary.UtilizationRate = decimal.Zero
	} else {
		summary.UtilizationRate = summary.TotalUsed.Amount().
			Div(summary.TotalLimit.Amount()).Mul(oneHundred).Round(2)
	}

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, utilizationCacheKey, string(data), s.cacheTTL); err != nil {
				s.logger.WarnContext(ctx, "failed to cache utilization summary", slog.String("error", err.Error()))
			}
		}
	}

	return summary, nil
}

// InvalidateUtilization drops the cached summary; the ledger service calls
// it after balance-affecting writes.
func (s *Service) InvalidateUtilization(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, utilizationCacheKey); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate utilization cache", slog.String("error", err.Error()))
	}
}

// UpcomingPayment is one due installment within the requested window.
type UpcomingPayment struct {
	PlanID            uuid.UUID    `json:"plan_id"`
	CardID            uuid.UUID    `json:"card_id"`
	Description       string       `json:"description"`
	DueDate           time.Time    `json:"due_date"`
	Amount            values.Money `json:"amount"`
	InstallmentNumber int          `json:"installment_number"`
}

// UpcomingPayments lists active-plan installments due within the next
// withinDays days, ordered by due date.
func (s *Service) UpcomingPayments(ctx context.Context, withinDays int) ([]UpcomingPayment, error) {
	active, err := s.plans.ListByStatus(ctx, plan.StatusActive)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	cutoff := now.AddDate(0, 0, withinDays)

	payments := make([]UpcomingPayment, 0)
	for _, p := range active {
		if p.RemainingInstallments() == 0 {
			s.logger.WarnContext(ctx, "active plan with no remaining installments excluded from report",
				slog.String("plan_id", p.ID.String()))
			continue
		}
		due := p.NextPaymentDate
		if due.Before(now) || due.After(cutoff) {
			continue
		}
		payments = append(payments, UpcomingPayment{
			PlanID:            p.ID,
			CardID:            p.CardID,
			Description:       p.Description,
			DueDate:           due,
			Amount:            p.InstallmentAmount,
			InstallmentNumber: p.CompletedInstallments + 1,
		})
	}

	sort.Slice(payments, func(i, j int) bool {
		return payments[i].DueDate.Before(payments[j].DueDate)
	})
	return payments, nil
}

// ForecastBucket is the total installment outflow projected for one month.
type ForecastBucket struct {
	Month string       `json:"month"` // YYYY-MM
	Total values.Money `json:"total"`
}

// MonthlyPaymentForecast projects each active plan's remaining payments
// onto calendar months, up to the given horizon.
func (s *Service) MonthlyPaymentForecast(ctx context.Context, horizonMonths int) ([]ForecastBucket, error) {
	active, err := s.plans.ListByStatus(ctx, plan.StatusActive)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	horizon := plan.AddMonths(now, horizonMonths)

	buckets := make(map[string]values.Money)
	for _, p := range active {
		remaining := p.RemainingInstallments()
		if remaining == 0 {
			s.logger.WarnContext(ctx, "active plan with no remaining installments excluded from forecast",
				slog.String("plan_id", p.ID.String()))
			continue
		}
		due := p.NextPaymentDate
		for i := 0; i < remaining; i++ {
			if due.After(horizon) {
				break
			}
			key := due.Format("2006-01")
			buckets[key] = buckets[key].Add(p.InstallmentAmount)
			due = plan.AddMonths(due, 1)
		}
	}

	result := make([]ForecastBucket, 0, len(buckets))
	for month, total := range buckets {
		result = append(result, ForecastBucket{Month: month, Total: total.RoundCents()})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Month < result[j].Month
	})
	return result, nil
}
