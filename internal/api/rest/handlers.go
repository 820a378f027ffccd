package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/plan"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/values"
	"github.com/ledgerline/finance-tracker-backend/internal/service/ledger"
	"github.com/ledgerline/finance-tracker-backend/internal/service/reporting"
)

// Handler carries the services behind the HTTP surface.
type Handler struct {
	ledger   *ledger.Service
	reports  *reporting.Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(ledgerSvc *ledger.Service, reportsSvc *reporting.Service, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:   ledgerSvc,
		reports:  reportsSvc,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewValidationError("INVALID_JSON", "request body is not valid JSON")
	}
	if err := h.validate.Struct(dst); err != nil {
		return errors.NewValidationError("INVALID_INPUT", err.Error())
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", "id is not a valid UUID")
	}
	return id, nil
}

func parseMoney(s, field string) (values.Money, error) {
	m, err := values.NewMoneyFromString(s)
	if err != nil {
		return values.Money{}, errors.NewValidationError("INVALID_AMOUNT", field+" is not a valid amount")
	}
	return m, nil
}

func parseRate(f float64, field string) (values.Rate, error) {
	r, err := values.NewRateFromFloat(f)
	if err != nil {
		return values.Rate{}, errors.NewValidationError("INVALID_RATE", field+" must be between 0 and 1")
	}
	return r, nil
}

// POST /api/v1/cards
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	totalLimit, err := parseMoney(req.TotalLimit, "total_limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	minRate, err := parseRate(req.MinimumPaymentRate, "minimum_payment_rate")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	monthlyRate, err := parseRate(req.MonthlyInterestRate, "monthly_interest_rate")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	annualRate, err := parseRate(req.AnnualInterestRate, "annual_interest_rate")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	c, err := h.ledger.CreateCard(r.Context(), ledger.CreateCardRequest{
		Name:                req.Name,
		TotalLimit:          totalLimit,
		MinimumPaymentRate:  minRate,
		MonthlyInterestRate: monthlyRate,
		AnnualInterestRate:  annualRate,
		StatementDay:        req.StatementDay,
		PaymentDueDay:       req.PaymentDueDay,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/v1/cards
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	cards, err := h.ledger.ListCards(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
		"total": len(cards),
	})
}

// GET /api/v1/cards/{id}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.ledger.GetCard(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DELETE /api/v1/cards/{id}
func (h *Handler) DeactivateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.ledger.DeactivateCard(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/installment-plans
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		writeError(w, r, h.logger, errors.NewValidationError("INVALID_ID", "card_id is not a valid UUID"))
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeError(w, r, h.logger, errors.NewValidationError("INVALID_ID", "category_id is not a valid UUID"))
		return
	}
	amount, err := parseMoney(req.OriginalAmount, "original_amount")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var purchaseDate time.Time
	if req.PurchaseDate != "" {
		purchaseDate, err = time.Parse(time.RFC3339, req.PurchaseDate)
		if err != nil {
			writeError(w, r, h.logger, errors.NewValidationError("INVALID_DATE", "purchase_date must be RFC 3339"))
			return
		}
	}

	var interestRate *values.Rate
	if req.InterestRate != nil {
		rate, err := parseRate(*req.InterestRate, "interest_rate")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		interestRate = &rate
	}
	discount, err := parseRate(req.EarlyPaymentDiscount, "early_payment_discount")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	promoRate, err := parseRate(req.PromotionalRate, "promotional_rate")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.ledger.CreatePlan(r.Context(), ledger.CreatePlanRequest{
		CardID: cardID,
		Purchase: plan.Purchase{
			Description:          req.Description,
			CategoryID:           categoryID,
			OriginalAmount:       amount,
			TotalInstallments:    req.TotalInstallments,
			PurchaseDate:         purchaseDate,
			InterestRate:         interestRate,
			PlanType:             plan.ParsePlanType(req.PlanType),
			EarlyPaymentOption:   req.EarlyPaymentOption,
			EarlyPaymentDiscount: discount,
			IsPromotional:        req.IsPromotional,
			PromotionalPeriod:    req.PromotionalPeriod,
			PromotionalRate:      promoRate,
			Tags:                 req.Tags,
			Notes:                req.Notes,
		},
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /api/v1/installment-plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.ledger.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/v1/installment-plans/{id}/payments
func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req PayInstallmentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	amount, err := parseMoney(req.PaymentAmount, "payment_amount")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.ledger.Pay(r.Context(), id, amount, req.Method)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/v1/installment-plans/{id}/early-payoff
func (h *Handler) EarlyPayoffQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	quote, err := h.ledger.EarlyPayoffQuote(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// GET /api/v1/installment-plans/{id}/schedule
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rows, err := h.ledger.Schedule(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"schedule": rows,
		"total":    len(rows),
	})
}

// DELETE /api/v1/installment-plans/{id}
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.ledger.DeletePlan(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PATCH /api/v1/installment-plans/{id}/status
func (h *Handler) UpdatePlanStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpdatePlanStatusRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.ledger.UpdateStatus(r.Context(), id, ledger.StatusAction(req.Action))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /api/v1/reports/utilization
func (h *Handler) UtilizationSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.CardUtilizationSummary(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /api/v1/reports/upcoming-payments?days=N
func (h *Handler) UpcomingPayments(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			writeError(w, r, h.logger, errors.NewValidationError("INVALID_DAYS", "days must be between 1 and 365"))
			return
		}
		days = parsed
	}

	payments, err := h.reports.UpcomingPayments(r.Context(), days)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"total":    len(payments),
	})
}

// GET /api/v1/reports/payment-forecast?months=N
func (h *Handler) PaymentForecast(w http.ResponseWriter, r *http.Request) {
	months := 12
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 36 {
			writeError(w, r, h.logger, errors.NewValidationError("INVALID_MONTHS", "months must be between 1 and 36"))
			return
		}
		months = parsed
	}

	forecast, err := h.reports.MonthlyPaymentForecast(r.Context(), months)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"forecast": forecast,
	})
}
