package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/card"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/plan"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/cache"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/config"
	"github.com/ledgerline/finance-tracker-backend/internal/service/ledger"
	"github.com/ledgerline/finance-tracker-backend/internal/service/reporting"
)

type memCardRepo struct {
	cards map[uuid.UUID]*card.CreditCard
}

func (r *memCardRepo) GetByID(_ context.Context, id uuid.UUID) (*card.CreditCard, error) {
	c, ok := r.cards[id]
	if !ok {
		return nil, errors.ErrCardNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memCardRepo) Create(_ context.Context, c *card.CreditCard) error {
	copied := *c
	r.cards[c.ID] = &copied
	return nil
}

func (r *memCardRepo) Save(_ context.Context, c *card.CreditCard) error {
	if _, ok := r.cards[c.ID]; !ok {
		return errors.ErrCardNotFound
	}
	copied := *c
	r.cards[c.ID] = &copied
	return nil
}

func (r *memCardRepo) List(_ context.Context, activeOnly bool) ([]*card.CreditCard, error) {
	out := make([]*card.CreditCard, 0, len(r.cards))
	for _, c := range r.cards {
		if activeOnly && !c.IsActive {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

type memPlanRepo struct {
	plans map[uuid.UUID]*plan.Plan
}

func (r *memPlanRepo) GetByID(_ context.Context, id uuid.UUID) (*plan.Plan, error) {
	p, ok := r.plans[id]
	if !ok {
		return nil, errors.ErrPlanNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memPlanRepo) Create(_ context.Context, p *plan.Plan) error {
	copied := *p
	r.plans[p.ID] = &copied
	return nil
}

func (r *memPlanRepo) Save(_ context.Context, p *plan.Plan) error {
	if _, ok := r.plans[p.ID]; !ok {
		return errors.ErrPlanNotFound
	}
	copied := *p
	r.plans[p.ID] = &copied
	return nil
}

func (r *memPlanRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.plans, id)
	return nil
}

func (r *memPlanRepo) ListByCard(_ context.Context, cardID uuid.UUID) ([]*plan.Plan, error) {
	var out []*plan.Plan
	for _, p := range r.plans {
		if p.CardID == cardID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memPlanRepo) ListByStatus(_ context.Context, status plan.Status) ([]*plan.Plan, error) {
	var out []*plan.Plan
	for _, p := range r.plans {
		if p.Status == status {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

type memUnitOfWork struct {
	cards *memCardRepo
	plans *memPlanRepo
}

func (u *memUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, cards ledger.CardRepository, plans ledger.PlanRepository) error) error {
	cardSnapshot := make(map[uuid.UUID]*card.CreditCard, len(u.cards.cards))
	for id, c := range u.cards.cards {
		copied := *c
		cardSnapshot[id] = &copied
	}
	planSnapshot := make(map[uuid.UUID]*plan.Plan, len(u.plans.plans))
	for id, p := range u.plans.plans {
		copied := *p
		planSnapshot[id] = &copied
	}

	if err := fn(ctx, u.cards, u.plans); err != nil {
		u.cards.cards = cardSnapshot
		u.plans.plans = planSnapshot
		return err
	}
	return nil
}

type apiFixture struct {
	server  *httptest.Server
	healthy bool
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cards := &memCardRepo{cards: make(map[uuid.UUID]*card.CreditCard)}
	plans := &memPlanRepo{plans: make(map[uuid.UUID]*plan.Plan)}
	uow := &memUnitOfWork{cards: cards, plans: plans}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ledgerSvc := ledger.NewService(uow, cards, plans, logger, clock)
	reportsSvc := reporting.NewService(cards, plans,
		cache.NewMemoryCache(cache.Clock(clock)), time.Minute,
		card.DefaultMinimumPaymentFloor, logger, clock)

	cfg := &config.Config{}
	cfg.Server.RateLimit.RequestsPerSecond = 1000
	cfg.Server.RateLimit.BurstSize = 1000

	f := &apiFixture{healthy: true}
	router := NewRouter(NewHandler(ledgerSvc, reportsSvc, logger), cfg, logger, func() error {
		if !f.healthy {
			return fmt.Errorf("db down")
		}
		return nil
	})

	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	decodeBody(t, resp, &out)
	return out
}

func (f *apiFixture) createCard(t *testing.T, limit string) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/cards", map[string]interface{}{
		"name":                  "Visa Signature",
		"total_limit":           limit,
		"minimum_payment_rate":  0.05,
		"monthly_interest_rate": 0.02,
		"annual_interest_rate":  0.24,
		"statement_day":         5,
		"payment_due_day":       15,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func (f *apiFixture) createPlan(t *testing.T, cardID, amount string, months int) map[string]interface{} {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/installment-plans", map[string]interface{}{
		"card_id":            cardID,
		"category_id":        uuid.NewString(),
		"description":        "new phone",
		"original_amount":    amount,
		"total_installments": months,
		"purchase_date":      "2026-03-10T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]interface{}
	decodeBody(t, resp, &created)
	return created
}

func TestAPI_CreateCard(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("success", func(t *testing.T) {
		id := f.createCard(t, "5000")

		resp := f.do(t, http.MethodGet, "/api/v1/cards/"+id, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Name           string `json:"name"`
			TotalLimit     string `json:"total_limit"`
			AvailableLimit string `json:"available_limit"`
		}
		decodeBody(t, resp, &got)
		assert.Equal(t, "Visa Signature", got.Name)
		assert.Equal(t, "5000.00", got.TotalLimit)
		assert.Equal(t, "5000.00", got.AvailableLimit)
	})

	t.Run("missing required fields", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/cards", map[string]interface{}{
			"name": "No Limit",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "validation", decodeError(t, resp).Error.Type)
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/v1/cards", bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		resp, err := f.server.Client().Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_JSON", decodeError(t, resp).Error.Code)
	})

	t.Run("bad amount string", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/cards", map[string]interface{}{
			"name":            "Bad Amount",
			"total_limit":     "lots",
			"statement_day":   5,
			"payment_due_day": 15,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_AMOUNT", decodeError(t, resp).Error.Code)
	})
}

func TestAPI_GetCard_Errors(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/cards/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/v1/cards/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, resp).Error.Type)
}

func TestAPI_ListCards(t *testing.T) {
	f := newAPIFixture(t)
	f.createCard(t, "5000")
	inactiveID := f.createCard(t, "2000")

	resp := f.do(t, http.MethodDelete, "/api/v1/cards/"+inactiveID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	var all struct {
		Total int `json:"total"`
	}
	resp = f.do(t, http.MethodGet, "/api/v1/cards", nil)
	decodeBody(t, resp, &all)
	assert.Equal(t, 2, all.Total)

	var active struct {
		Total int `json:"total"`
	}
	resp = f.do(t, http.MethodGet, "/api/v1/cards?active=true", nil)
	decodeBody(t, resp, &active)
	assert.Equal(t, 1, active.Total)
}

func TestAPI_CreatePlan(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")

	created := f.createPlan(t, cardID, "1200", 12)
	assert.Equal(t, "active", created["status"])
	assert.Equal(t, "1200.00", created["original_amount"])
	assert.NotEmpty(t, created["installment_amount"])

	// The card reflects the charge.
	resp := f.do(t, http.MethodGet, "/api/v1/cards/"+cardID, nil)
	var got struct {
		AvailableLimit string `json:"available_limit"`
		CurrentBalance string `json:"current_balance"`
	}
	decodeBody(t, resp, &got)
	assert.Equal(t, "3800.00", got.AvailableLimit)
	assert.Equal(t, "1200.00", got.CurrentBalance)
}

func TestAPI_CreatePlan_InsufficientLimit(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "1000")

	resp := f.do(t, http.MethodPost, "/api/v1/installment-plans", map[string]interface{}{
		"card_id":            cardID,
		"category_id":        uuid.NewString(),
		"original_amount":    "1500",
		"total_installments": 12,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "insufficient_limit", decodeError(t, resp).Error.Type)
}

func TestAPI_PayInstallment(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")
	created := f.createPlan(t, cardID, "300", 3)
	planID := created["id"].(string)
	installment := created["installment_amount"].(string)

	pay := func() *http.Response {
		return f.do(t, http.MethodPost, "/api/v1/installment-plans/"+planID+"/payments", map[string]interface{}{
			"payment_amount": installment,
			"method":         "bank_transfer",
		})
	}

	resp := pay()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var afterFirst map[string]interface{}
	decodeBody(t, resp, &afterFirst)
	assert.Equal(t, float64(1), afterFirst["completed_installments"])
	assert.Equal(t, "active", afterFirst["status"])

	resp = pay()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = pay()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var final map[string]interface{}
	decodeBody(t, resp, &final)
	assert.Equal(t, "completed", final["status"])

	// Completion restored the card's limit.
	resp = f.do(t, http.MethodGet, "/api/v1/cards/"+cardID, nil)
	var got struct {
		AvailableLimit string `json:"available_limit"`
	}
	decodeBody(t, resp, &got)
	assert.Equal(t, "5000.00", got.AvailableLimit)

	// Paying a completed plan fails cleanly.
	resp = pay()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_state", decodeError(t, resp).Error.Type)
}

func TestAPI_PayInstallment_BadMethod(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")
	planID := f.createPlan(t, cardID, "300", 3)["id"].(string)

	resp := f.do(t, http.MethodPost, "/api/v1/installment-plans/"+planID+"/payments", map[string]interface{}{
		"payment_amount": "100",
		"method":         "barter",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", decodeError(t, resp).Error.Type)
}

func TestAPI_EarlyPayoff(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")

	t.Run("disabled", func(t *testing.T) {
		planID := f.createPlan(t, cardID, "300", 3)["id"].(string)
		resp := f.do(t, http.MethodGet, "/api/v1/installment-plans/"+planID+"/early-payoff", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "EARLY_PAYMENT_DISABLED", decodeError(t, resp).Error.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/installment-plans", map[string]interface{}{
			"card_id":                cardID,
			"category_id":            uuid.NewString(),
			"original_amount":        "600",
			"total_installments":     6,
			"early_payment_option":   true,
			"early_payment_discount": 0.05,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created map[string]interface{}
		decodeBody(t, resp, &created)

		resp = f.do(t, http.MethodGet, "/api/v1/installment-plans/"+created["id"].(string)+"/early-payoff", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var quote struct {
			RemainingAmount    string `json:"remaining_amount"`
			EarlyPaymentAmount string `json:"early_payment_amount"`
		}
		decodeBody(t, resp, &quote)
		assert.NotEmpty(t, quote.RemainingAmount)
		assert.NotEmpty(t, quote.EarlyPaymentAmount)
	})
}

func TestAPI_Schedule(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")
	planID := f.createPlan(t, cardID, "600", 6)["id"].(string)

	resp := f.do(t, http.MethodGet, "/api/v1/installment-plans/"+planID+"/schedule", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Total    int               `json:"total"`
		Schedule []json.RawMessage `json:"schedule"`
	}
	decodeBody(t, resp, &got)
	assert.Equal(t, 6, got.Total)
	assert.Len(t, got.Schedule, 6)
}

func TestAPI_DeletePlan(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")

	t.Run("fresh plan deletes", func(t *testing.T) {
		planID := f.createPlan(t, cardID, "600", 6)["id"].(string)

		resp := f.do(t, http.MethodDelete, "/api/v1/installment-plans/"+planID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		resp = f.do(t, http.MethodGet, "/api/v1/installment-plans/"+planID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("paid plan refuses", func(t *testing.T) {
		created := f.createPlan(t, cardID, "600", 6)
		planID := created["id"].(string)

		resp := f.do(t, http.MethodPost, "/api/v1/installment-plans/"+planID+"/payments", map[string]interface{}{
			"payment_amount": created["installment_amount"].(string),
			"method":         "cash",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = f.do(t, http.MethodDelete, "/api/v1/installment-plans/"+planID, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "conflict", decodeError(t, resp).Error.Type)
	})
}

func TestAPI_UpdatePlanStatus(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")
	planID := f.createPlan(t, cardID, "600", 6)["id"].(string)

	resp := f.do(t, http.MethodPatch, "/api/v1/installment-plans/"+planID+"/status", map[string]interface{}{
		"action": "pause",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]interface{}
	decodeBody(t, resp, &got)
	assert.Equal(t, "paused", got["status"])

	resp = f.do(t, http.MethodPatch, "/api/v1/installment-plans/"+planID+"/status", map[string]interface{}{
		"action": "archive",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_Reports(t *testing.T) {
	f := newAPIFixture(t)
	cardID := f.createCard(t, "5000")
	f.createPlan(t, cardID, "1200", 12)

	t.Run("utilization", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/reports/utilization", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			CardCount  int    `json:"card_count"`
			TotalLimit string `json:"total_limit"`
			TotalUsed  string `json:"total_used"`
		}
		decodeBody(t, resp, &got)
		assert.Equal(t, 1, got.CardCount)
		assert.Equal(t, "5000.00", got.TotalLimit)
		assert.Equal(t, "1200.00", got.TotalUsed)
	})

	t.Run("upcoming payments", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/reports/upcoming-payments?days=30", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Total int `json:"total"`
		}
		decodeBody(t, resp, &got)
		assert.Equal(t, 1, got.Total)
	})

	t.Run("upcoming payments rejects bad window", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "366"} {
			resp := f.do(t, http.MethodGet, "/api/v1/reports/upcoming-payments?days="+q, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "days=%s", q)
			resp.Body.Close()
		}
	})

	t.Run("forecast", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/reports/payment-forecast?months=12", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			Forecast []struct {
				Month string `json:"month"`
				Total string `json:"total"`
			} `json:"forecast"`
		}
		decodeBody(t, resp, &got)
		assert.NotEmpty(t, got.Forecast)
	})

	t.Run("forecast rejects bad horizon", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/v1/reports/payment-forecast?months=40", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	f.healthy = false
	resp = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
