package plan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/card"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/errors"
	"github.com/ledgerline/finance-tracker-backend/internal/domain/values"
)

// MaxInstallments caps the term length of any plan.
const MaxInstallments = 36

// Status is the lifecycle state of an installment plan.
type Status int

const (
	StatusActive Status = iota
	StatusCompleted
	StatusPaused
	StatusDefaulted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusPaused:
		return "paused"
	case StatusDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// ParseStatus maps a wire string to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "active":
		return StatusActive, nil
	case "completed":
		return StatusCompleted, nil
	case "paused":
		return StatusPaused, nil
	case "defaulted":
		return StatusDefaulted, nil
	default:
		return StatusActive, errors.NewValidationError("INVALID_STATUS", "unknown plan status: "+s)
	}
}

// PaymentRecord is one entry of the append-only payment history, ordered by
// installment number.
type PaymentRecord struct {
	InstallmentNumber     int          `json:"installment_number"`
	PaymentDate           time.Time    `json:"payment_date"`
	PaidAmount            values.Money `json:"paid_amount"`
	PrincipalPortion      values.Money `json:"principal_portion"`
	InterestPortion       values.Money `json:"interest_portion"`
	RemainingBalanceAfter values.Money `json:"remaining_balance_after"`
	Method                string       `json:"method"`
}

// Plan is a single purchase being repaid over multiple periods against a
// credit card. The card reference is immutable after creation.
type Plan struct {
	ID         uuid.UUID `json:"id"`
	CardID     uuid.UUID `json:"card_id"`
	CategoryID uuid.UUID `json:"category_id"`

	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Notes       string   `json:"notes,omitempty"`

	OriginalAmount        values.Money `json:"original_amount"`
	TotalInstallments     int          `json:"total_installments"`
	CompletedInstallments int          `json:"completed_installments"`

	// InterestRate is annualized; per-payment interest uses rate/12.
	InterestRate values.Rate `json:"interest_rate"`

	// Derived, cached fields. Never mutated independently; RecomputeDerived
	// refreshes them whenever the financial inputs change.
	InterestAmount          values.Money `json:"interest_amount"`
	TotalAmountWithInterest values.Money `json:"total_amount_with_interest"`
	InstallmentAmount       values.Money `json:"installment_amount"`

	PlanType PlanType `json:"plan_type"`
	Status   Status   `json:"status"`

	PurchaseDate     time.Time `json:"purchase_date"`
	FirstPaymentDate time.Time `json:"first_payment_date"`
	NextPaymentDate  time.Time `json:"next_payment_date"`
	LastPaymentDate  time.Time `json:"last_payment_date"`

	EarlyPaymentOption   bool        `json:"early_payment_option"`
	EarlyPaymentDiscount values.Rate `json:"early_payment_discount"`

	IsPromotional     bool        `json:"is_promotional"`
	PromotionalPeriod int         `json:"promotional_period,omitempty"`
	PromotionalRate   values.Rate `json:"promotional_rate,omitempty"`

	PaymentHistory []PaymentRecord `json:"payment_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purchase carries the client-supplied fields for a new plan.
type Purchase struct {
	Description          string
	CategoryID           uuid.UUID
	OriginalAmount       values.Money
	TotalInstallments    int
	PurchaseDate         time.Time
	InterestRate         *values.Rate
	PlanType             PlanType
	EarlyPaymentOption   bool
	EarlyPaymentDiscount values.Rate
	IsPromotional        bool
	PromotionalPeriod    int
	PromotionalRate      values.Rate
	Tags                 []string
	Notes                string
}

// NewPlan registers a purchase against a card. The caller (ledger service)
// applies the matching charge to the card in the same transaction.
func NewPlan(c *card.CreditCard, p Purchase) (*Plan, error) {
	if !p.OriginalAmount.IsPositive() {
		return nil, errors.NewValidationError("INVALID_AMOUNT", "original amount must be positive")
	}
	if p.TotalInstallments < 1 || p.TotalInstallments > MaxInstallments {
		return nil, errors.NewValidationError("INVALID_TERM", "total installments must be between 1 and 36")
	}
	if p.CategoryID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_CATEGORY", "category is required")
	}
	if !c.HasAvailableLimit(p.OriginalAmount) {
		return nil, errors.NewInsufficientLimitError("purchase amount exceeds available limit")
	}
	if p.IsPromotional && p.PromotionalPeriod < 1 {
		return nil, errors.NewValidationError("INVALID_PROMO_PERIOD", "promotional period must be at least 1")
	}

	rate := c.MonthlyInterestRate
	if p.InterestRate != nil {
		rate = *p.InterestRate
	}

	purchaseDate := p.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now().UTC()
	}

	firstPayment := NextDueDate(c.PaymentDueDay, purchaseDate)
	lastPayment := AddMonths(firstPayment, p.TotalInstallments-1)

	now := time.Now().UTC()
	pl := &Plan{
		ID:                   uuid.New(),
		CardID:               c.ID,
		CategoryID:           p.CategoryID,
		Description:          p.Description,
		Tags:                 p.Tags,
		Notes:                p.Notes,
		OriginalAmount:       p.OriginalAmount,
		TotalInstallments:    p.TotalInstallments,
		InterestRate:         rate,
		PlanType:             p.PlanType,
		Status:               StatusActive,
		PurchaseDate:         purchaseDate,
		FirstPaymentDate:     firstPayment,
		NextPaymentDate:      firstPayment,
		LastPaymentDate:      lastPayment,
		EarlyPaymentOption:   p.EarlyPaymentOption,
		EarlyPaymentDiscount: p.EarlyPaymentDiscount,
		IsPromotional:        p.IsPromotional,
		PromotionalPeriod:    p.PromotionalPeriod,
		PromotionalRate:      p.PromotionalRate,
		PaymentHistory:       []PaymentRecord{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	pl.RecomputeDerived()
	return pl, nil
}

// RemainingInstallments returns totalInstallments - completedInstallments.
func (p *Plan) RemainingInstallments() int {
	remaining := p.TotalInstallments - p.CompletedInstallments
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingAmount is the outstanding balance on the plan:
// installmentAmount x remainingInstallments. Computed, never stored.
func (p *Plan) RemainingAmount() values.Money {
	n := decimal.NewFromInt(int64(p.RemainingInstallments()))
	return p.InstallmentAmount.Mul(n).RoundCents()
}

// RecomputeDerived refreshes the cached financial fields from the plan's
// inputs. The ledger service calls it before every persistence so the
// stored values never drift from the schedule. Status is promoted to
// completed when all installments are done and never demoted.
func (p *Plan) RecomputeDerived() {
	sched := p.buildSchedule()
	p.InstallmentAmount = sched.InstallmentAmount
	p.TotalAmountWithInterest = sched.TotalAmountWithInterest
	p.InterestAmount = sched.TotalInterest

	if p.CompletedInstallments >= p.TotalInstallments && p.Status != StatusCompleted {
		p.Status = StatusCompleted
	}
}

func (p *Plan) buildSchedule() Schedule {
	if p.IsPromotional {
		base := CalculateSchedule(p.PlanType, p.OriginalAmount, p.TotalInstallments, p.PromotionalRate.Monthly())
		return ApplyPromotionalTerms(base, p.InterestRate.Monthly(), p.PromotionalPeriod)
	}
	return CalculateSchedule(p.PlanType, p.OriginalAmount, p.TotalInstallments, p.InterestRate.Monthly())
}

// PaymentResult reports what a processed payment did, so the ledger service
// can mirror it onto the card.
type PaymentResult struct {
	Record    PaymentRecord
	Completed bool
}

// ProcessPayment records one installment payment. On the final installment
// the plan transitions to completed; the caller restores the card limit at
// that point (and only then).
func (p *Plan) ProcessPayment(amount values.Money, method string, now time.Time) (PaymentResult, error) {
	if p.Status != StatusActive {
		return PaymentResult{}, errors.NewInvalidStateError("plan is not active: " + p.Status.String())
	}
	if p.RemainingInstallments() == 0 {
		return PaymentResult{}, errors.NewExhaustedPlanError("plan has no remaining installments")
	}
	if !amount.IsPositive() {
		return PaymentResult{}, errors.NewValidationError("INVALID_PAYMENT_AMOUNT", "payment amount must be positive")
	}

	remaining := p.RemainingAmount()
	interestPortion := p.InterestRate.Monthly().ApplyTo(remaining).RoundCents()
	principalPortion := amount.SubFloor(interestPortion).RoundCents()

	record := PaymentRecord{
		InstallmentNumber:     p.CompletedInstallments + 1,
		PaymentDate:           now,
		PaidAmount:            amount,
		PrincipalPortion:      principalPortion,
		InterestPortion:       interestPortion,
		RemainingBalanceAfter: remaining.SubFloor(principalPortion),
		Method:                method,
	}
	p.PaymentHistory = append(p.PaymentHistory, record)

	p.CompletedInstallments++
	completed := false
	if p.RemainingInstallments() > 0 {
		p.NextPaymentDate = AddMonths(p.NextPaymentDate, 1)
	} else {
		p.Status = StatusCompleted
		completed = true
	}
	p.UpdatedAt = now

	return PaymentResult{Record: record, Completed: completed}, nil
}

// EarlyPayoffQuote is the settlement offer for clearing all remaining
// installments at once.
type EarlyPayoffQuote struct {
	RemainingAmount    values.Money `json:"remaining_amount"`
	DiscountAmount     values.Money `json:"discount_amount"`
	EarlyPaymentAmount values.Money `json:"early_payment_amount"`
	Savings            values.Money `json:"savings"`
}

// CalculateEarlyPayment quotes an early payoff, or nil when the plan was
// not sold with that option.
func (p *Plan) CalculateEarlyPayment() *EarlyPayoffQuote {
	if !p.EarlyPaymentOption {
		return nil
	}

	remaining := p.RemainingAmount()
	discount := p.EarlyPaymentDiscount.ApplyTo(remaining).RoundCents()
	payAmount := remaining.Sub(discount).RoundCents()

	unusedShare := decimal.NewFromInt(int64(p.RemainingInstallments())).
		Div(decimal.NewFromInt(int64(p.TotalInstallments)))
	savings := discount.Add(p.InterestAmount.Mul(unusedShare)).RoundCents()

	return &EarlyPayoffQuote{
		RemainingAmount:    remaining,
		DiscountAmount:     discount,
		EarlyPaymentAmount: payAmount,
		Savings:            savings,
	}
}

// ProjectedRow is one row of the projected payment schedule.
type ProjectedRow struct {
	ScheduleRow
	DueDate     time.Time `json:"due_date"`
	IsCompleted bool      `json:"is_completed"`
}

// PaymentSchedule regenerates the full projected schedule from the plan's
// financial inputs, independent of the payment history. Calling it twice
// without intervening payments yields identical output.
func (p *Plan) PaymentSchedule() []ProjectedRow {
	sched := p.buildSchedule()
	rows := make([]ProjectedRow, 0, len(sched.Rows))
	for i, row := range sched.Rows {
		rows = append(rows, ProjectedRow{
			ScheduleRow: row,
			DueDate:     AddMonths(p.FirstPaymentDate, i),
			IsCompleted: row.Period <= p.CompletedInstallments,
		})
	}
	return rows
}

// CanDelete reports whether the plan may be removed. Plans with any
// completed installment are kept for their payment history.
func (p *Plan) CanDelete() error {
	if p.CompletedInstallments > 0 {
		return errors.NewConflictError("plan has completed installments and cannot be deleted")
	}
	return nil
}

// Pause suspends an active plan.
func (p *Plan) Pause() error {
	if p.Status != StatusActive {
		return errors.NewInvalidStateError("only active plans can be paused")
	}
	p.Status = StatusPaused
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Resume reactivates a paused plan.
func (p *Plan) Resume() error {
	if p.Status != StatusPaused {
		return errors.NewInvalidStateError("only paused plans can be resumed")
	}
	p.Status = StatusActive
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkDefaulted moves an active plan to defaulted. Terminal, like completed.
func (p *Plan) MarkDefaulted() error {
	if p.Status != StatusActive {
		return errors.NewInvalidStateError("only active plans can be defaulted")
	}
	p.Status = StatusDefaulted
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// NextDueDate returns the next occurrence of dueDay strictly after the
// given date, clamping to the last day of short months.
func NextDueDate(dueDay int, after time.Time) time.Time {
	year, month, _ := after.Date()
	candidate := dateWithClampedDay(year, month, dueDay, after.Location())
	if !candidate.After(after) {
		year, month, _ = after.AddDate(0, 1, 0).Date()
		candidate = dateWithClampedDay(year, month, dueDay, after.Location())
	}
	return candidate
}

// AddMonths advances a date by n months, clamping the day-of-month instead
// of letting it normalize past the end of a short month.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	return dateWithClampedDay(first.Year(), first.Month(), day, t.Location())
}

func dateWithClampedDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
