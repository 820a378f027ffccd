package card

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/values"
)

// DefaultMinimumPaymentFloor is the fixed floor applied when the rate-based
// minimum payment falls below it.
var DefaultMinimumPaymentFloor = values.MustMoneyFromString("50.00")

var oneHundred = decimal.NewFromInt(100)

// CreditCard is the aggregate owning a card's limit and balance state.
// AvailableLimit is derived from TotalLimit and CurrentBalance and is
// recomputed after every balance-affecting mutation; it is never trusted
// from input.
type CreditCard struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	TotalLimit     values.Money `json:"total_limit"`
	AvailableLimit values.Money `json:"available_limit"`
	CurrentBalance values.Money `json:"current_balance"`

	MinimumPaymentRate  values.Rate `json:"minimum_payment_rate"`
	MonthlyInterestRate values.Rate `json:"monthly_interest_rate"`
	AnnualInterestRate  values.Rate `json:"annual_interest_rate"`

	StatementDay  int `json:"statement_day"`
	PaymentDueDay int `json:"payment_due_day"`

	IsActive bool `json:"is_active"`

	// Version guards the read-modify-write of balance state against
	// concurrent ledger operations on the same card.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCreditCard creates an active card with a fresh limit.
func NewCreditCard(name string, totalLimit values.Money, minimumPaymentRate, monthlyRate, annualRate values.Rate, statementDay, paymentDueDay int) (*CreditCard, error) {
	if name == "" {
		return nil, errors.NewValidationError("INVALID_CARD_NAME", "card name is required")
	}
	if !totalLimit.IsPositive() {
		return nil, errors.NewValidationError("INVALID_CARD_LIMIT", "total limit must be positive")
	}
	if statementDay < 1 || statementDay > 31 {
		return nil, errors.NewValidationError("INVALID_STATEMENT_DAY", "statement day must be between 1 and 31")
	}
	if paymentDueDay < 1 || paymentDueDay > 31 {
		return nil, errors.NewValidationError("INVALID_DUE_DAY", "payment due day must be between 1 and 31")
	}

	now := time.Now().UTC()
	return &CreditCard{
		ID:                  uuid.New(),
		Name:                name,
		TotalLimit:          totalLimit,
		AvailableLimit:      totalLimit,
		CurrentBalance:      values.ZeroMoney(),
		MinimumPaymentRate:  minimumPaymentRate,
		MonthlyInterestRate: monthlyRate,
		AnnualInterestRate:  annualRate,
		StatementDay:        statementDay,
		PaymentDueDay:       paymentDueDay,
		IsActive:            true,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// HasAvailableLimit reports whether a charge of the given amount fits.
func (c *CreditCard) HasAvailableLimit(amount values.Money) bool {
	return !amount.GreaterThan(c.AvailableLimit)
}

// ApplyCharge increases the balance by amount and recomputes the available
// limit. Only the ledger service calls this.
func (c *CreditCard) ApplyCharge(amount values.Money) error {
	if !amount.IsPositive() {
		return errors.NewValidationError("INVALID_CHARGE_AMOUNT", "charge amount must be positive")
	}
	if !c.IsActive {
		return errors.NewInvalidStateError("card is inactive")
	}
	if !c.HasAvailableLimit(amount) {
		return errors.NewInsufficientLimitError("purchase amount exceeds available limit")
	}

	c.CurrentBalance = c.CurrentBalance.Add(amount)
	c.UpdateAvailableLimit()
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ReleaseCharge decreases the balance by amount, clamped at zero, and
// recomputes the available limit.
func (c *CreditCard) ReleaseCharge(amount values.Money) error {
	if amount.IsNegative() {
		return errors.NewValidationError("INVALID_RELEASE_AMOUNT", "release amount cannot be negative")
	}

	c.CurrentBalance = c.CurrentBalance.SubFloor(amount)
	c.UpdateAvailableLimit()
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateAvailableLimit recomputes availableLimit = totalLimit - currentBalance,
// clamped to [0, totalLimit].
func (c *CreditCard) UpdateAvailableLimit() {
	available := c.TotalLimit.SubFloor(c.CurrentBalance)
	if available.GreaterThan(c.TotalLimit) {
		available = c.TotalLimit
	}
	c.AvailableLimit = available
}

// MinimumPayment returns max(currentBalance x minimumPaymentRate, floor).
func (c *CreditCard) MinimumPayment(floor values.Money) values.Money {
	rateBased := c.MinimumPaymentRate.ApplyTo(c.CurrentBalance).RoundCents()
	if rateBased.LessThan(floor) {
		return floor
	}
	return rateBased
}

// UtilizationRate returns the used share of the limit as a percentage.
// A zero-limit card reports zero.
func (c *CreditCard) UtilizationRate() decimal.Decimal {
	if c.TotalLimit.IsZero() {
		return decimal.Zero
	}
	used := c.TotalLimit.Sub(c.AvailableLimit)
	return used.Amount().Div(c.TotalLimit.Amount()).Mul(oneHundred).Round(2)
}

// Deactivate soft-deletes the card. The ledger service verifies no plan
// still owes against it; the card itself only checks its own balance.
func (c *CreditCard) Deactivate() error {
	if !c.CurrentBalance.IsZero() {
		return errors.NewConflictError("card has outstanding balance")
	}
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
	return nil
}
