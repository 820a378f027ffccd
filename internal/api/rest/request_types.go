package rest

// CreateCardRequest registers a new credit card.
type CreateCardRequest struct {
	Name                string  `json:"name" validate:"required,max=100"`
	TotalLimit          string  `json:"total_limit" validate:"required"`
	MinimumPaymentRate  float64 `json:"minimum_payment_rate" validate:"gte=0,lte=1"`
	MonthlyInterestRate float64 `json:"monthly_interest_rate" validate:"gte=0,lte=1"`
	AnnualInterestRate  float64 `json:"annual_interest_rate" validate:"gte=0,lte=1"`
	StatementDay        int     `json:"statement_day" validate:"required,min=1,max=31"`
	PaymentDueDay       int     `json:"payment_due_day" validate:"required,min=1,max=31"`
}

// CreatePlanRequest registers a purchase paid in installments.
type CreatePlanRequest struct {
	CardID               string   `json:"card_id" validate:"required,uuid"`
	CategoryID           string   `json:"category_id" validate:"required,uuid"`
	Description          string   `json:"description" validate:"max=255"`
	OriginalAmount       string   `json:"original_amount" validate:"required"`
	TotalInstallments    int      `json:"total_installments" validate:"required,min=1,max=36"`
	PurchaseDate         string   `json:"purchase_date,omitempty"` // RFC 3339; defaults to now
	InterestRate         *float64 `json:"interest_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	PlanType             string   `json:"plan_type,omitempty"`
	EarlyPaymentOption   bool     `json:"early_payment_option,omitempty"`
	EarlyPaymentDiscount float64  `json:"early_payment_discount,omitempty" validate:"gte=0,lte=1"`
	IsPromotional        bool     `json:"is_promotional,omitempty"`
	PromotionalPeriod    int      `json:"promotional_period,omitempty" validate:"gte=0"`
	PromotionalRate      float64  `json:"promotional_rate,omitempty" validate:"gte=0,lte=1"`
	Tags                 []string `json:"tags,omitempty"`
	Notes                string   `json:"notes,omitempty" validate:"max=1000"`
}

// PayInstallmentRequest records one payment against a plan.
type PayInstallmentRequest struct {
	PaymentAmount string `json:"payment_amount" validate:"required"`
	Method        string `json:"method" validate:"required,oneof=bank_transfer debit_card cash other"`
}

// UpdatePlanStatusRequest applies a manual state transition.
type UpdatePlanStatusRequest struct {
	Action string `json:"action" validate:"required,oneof=pause resume default"`
}
