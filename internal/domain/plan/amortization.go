package plan

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/values"
)

// PlanType selects the payment-plan shape a schedule is computed for.
type PlanType int

const (
	PlanTypeEqual PlanType = iota
	PlanTypeBalloon
	PlanTypeInterestFirst
	PlanTypePrincipalFirst
)

func (t PlanType) String() string {
	switch t {
	case PlanTypeEqual:
		return "equal"
	case PlanTypeBalloon:
		return "balloon"
	case PlanTypeInterestFirst:
		return "interest_first"
	case PlanTypePrincipalFirst:
		return "principal_first"
	default:
		return "equal"
	}
}

// ParsePlanType maps a wire string to a PlanType. Unrecognized values fall
// back to the equal plan.
func ParsePlanType(s string) PlanType {
	switch s {
	case "balloon":
		return PlanTypeBalloon
	case "interest_first":
		return PlanTypeInterestFirst
	case "principal_first":
		return PlanTypePrincipalFirst
	default:
		return PlanTypeEqual
	}
}

// DefaultBalloonFraction is the share of principal deferred to the final
// balloon payment.
var DefaultBalloonFraction = decimal.NewFromFloat(0.3)

var one = decimal.NewFromInt(1)

// ScheduleRow is one period of an amortization schedule. Monetary fields are
// rounded to cents independently per row.
type ScheduleRow struct {
	Period           int          `json:"period"`
	Payment          values.Money `json:"payment"`
	PrincipalPayment values.Money `json:"principal_payment"`
	InterestPayment  values.Money `json:"interest_payment"`
	RemainingBalance values.Money `json:"remaining_balance"`
	IsBalloonPayment bool         `json:"is_balloon_payment,omitempty"`
}

// Schedule is the result of an amortization calculation. Aggregate totals
// are rounded independently of the per-row values, so the sum of rounded
// rows may drift from TotalAmountWithInterest by a few cents over long
// terms.
type Schedule struct {
	InstallmentAmount       values.Money  `json:"installment_amount"`
	TotalAmountWithInterest values.Money  `json:"total_amount_with_interest"`
	TotalInterest           values.Money  `json:"total_interest"`
	Rows                    []ScheduleRow `json:"rows"`
}

type calculatorFunc func(principal values.Money, months int, monthlyRate values.Rate) Schedule

// Calculator dispatch table. One implementation per plan type; adding a
// type without an entry falls back to the equal calculator.
var calculators = map[PlanType]calculatorFunc{
	PlanTypeEqual:          CalculateEqualInstallments,
	PlanTypeBalloon:        calculateBalloonDefault,
	PlanTypeInterestFirst:  CalculateInterestFirstInstallments,
	PlanTypePrincipalFirst: CalculatePrincipalFirstInstallments,
}

func calculateBalloonDefault(principal values.Money, months int, monthlyRate values.Rate) Schedule {
	return CalculateBalloonInstallments(principal, months, monthlyRate, DefaultBalloonFraction)
}

// CalculateSchedule dispatches to the calculator for planType.
func CalculateSchedule(planType PlanType, principal values.Money, months int, monthlyRate values.Rate) Schedule {
	calc, ok := calculators[planType]
	if !ok {
		calc = CalculateEqualInstallments
	}
	return calc(principal, months, monthlyRate)
}

// CalculateEqualInstallments computes a standard fixed-payment amortization
// schedule using installment = P*r*(1+r)^n / ((1+r)^n - 1); a zero rate
// splits the principal evenly.
func CalculateEqualInstallments(principal values.Money, months int, monthlyRate values.Rate) Schedule {
	if months <= 0 || !principal.IsPositive() {
		return Schedule{}
	}

	n := decimal.NewFromInt(int64(months))
	r := monthlyRate.Fraction()

	var installment values.Money
	if r.IsZero() {
		installment = values.NewMoney(principal.Amount().Div(n)).RoundCents()
	} else {
		factor := one.Add(r).Pow(n)
		payment := principal.Amount().Mul(r).Mul(factor).Div(factor.Sub(one))
		installment = values.NewMoney(payment).RoundCents()
	}

	total := installment.Mul(n).RoundCents()
	totalInterest := total.SubFloor(principal).RoundCents()

	rows := make([]ScheduleRow, 0, months)
	remaining := principal
	for period := 1; period <= months; period++ {
		interest := values.NewMoney(remaining.Amount().Mul(r)).RoundCents()
		principalPart := installment.Sub(interest).RoundCents()
		remaining = remaining.SubFloor(principalPart).RoundCents()

		rows = append(rows, ScheduleRow{
			Period:           period,
			Payment:          installment,
			PrincipalPayment: principalPart,
			InterestPayment:  interest,
			RemainingBalance: remaining,
		})
	}

	return Schedule{
		InstallmentAmount:       installment,
		TotalAmountWithInterest: total,
		TotalInterest:           totalInterest,
		Rows:                    rows,
	}
}

// CalculateBalloonInstallments defers balloonFraction of the principal to a
// single final payment and amortizes the remainder over months-1 periods.
// The final row carries the balloon plus its simple interest accrued over
// the term and is flagged IsBalloonPayment.
func CalculateBalloonInstallments(principal values.Money, months int, monthlyRate values.Rate, balloonFraction decimal.Decimal) Schedule {
	if months <= 0 || !principal.IsPositive() {
		return Schedule{}
	}

	r := monthlyRate.Fraction()

	// A one-period plan is all balloon.
	if months == 1 {
		interest := values.NewMoney(principal.Amount().Mul(r)).RoundCents()
		payment := principal.Add(interest).RoundCents()
		row := ScheduleRow{
			Period:           1,
			Payment:          payment,
			PrincipalPayment: principal,
			InterestPayment:  interest,
			RemainingBalance: values.ZeroMoney(),
			IsBalloonPayment: true,
		}
		return Schedule{
			InstallmentAmount:       payment,
			TotalAmountWithInterest: payment,
			TotalInterest:           interest,
			Rows:                    []ScheduleRow{row},
		}
	}

	balloon := principal.Mul(balloonFraction).RoundCents()
	amortized := principal.Sub(balloon)

	regular := CalculateEqualInstallments(amortized, months-1, monthlyRate)

	balloonInterest := values.NewMoney(balloon.Amount().Mul(r).Mul(decimal.NewFromInt(int64(months)))).RoundCents()
	balloonPayment := balloon.Add(balloonInterest).RoundCents()

	rows := make([]ScheduleRow, 0, months)
	rows = append(rows, regular.Rows...)
	// Regular rows amortize only the non-balloon share; the balloon stays
	// outstanding until the last period.
	for i := range rows {
		rows[i].RemainingBalance = rows[i].RemainingBalance.Add(balloon)
	}
	rows = append(rows, ScheduleRow{
		Period:           months,
		Payment:          balloonPayment,
		PrincipalPayment: balloon,
		InterestPayment:  balloonInterest,
		RemainingBalance: values.ZeroMoney(),
		IsBalloonPayment: true,
	})

	total := regular.TotalAmountWithInterest.Add(balloonPayment).RoundCents()
	totalInterest := regular.TotalInterest.Add(balloonInterest).RoundCents()

	return Schedule{
		InstallmentAmount:       regular.InstallmentAmount,
		TotalAmountWithInterest: total,
		TotalInterest:           totalInterest,
		Rows:                    rows,
	}
}

// CalculateInterestFirstInstallments levies totalInterest = P*r*n upfront:
// the constant payment first drains the interest pool, then the remaining
// periods retire principal until the balance reaches zero.
func CalculateInterestFirstInstallments(principal values.Money, months int, monthlyRate values.Rate) Schedule {
	if months <= 0 || !principal.IsPositive() {
		return Schedule{}
	}

	n := decimal.NewFromInt(int64(months))
	r := monthlyRate.Fraction()

	totalInterest := values.NewMoney(principal.Amount().Mul(r).Mul(n)).RoundCents()
	total := principal.Add(totalInterest).RoundCents()
	installment := values.NewMoney(total.Amount().Div(n)).RoundCents()

	rows := make([]ScheduleRow, 0, months)
	pool := totalInterest
	remaining := principal
	for period := 1; period <= months; period++ {
		interest := installment
		if pool.LessThan(interest) {
			interest = pool
		}
		pool = pool.Sub(interest)

		principalPart := installment.Sub(interest).RoundCents()
		if period == months {
			// Final period absorbs any principal left by rounding.
			principalPart = remaining
		}
		remaining = remaining.SubFloor(principalPart).RoundCents()

		payment := principalPart.Add(interest).RoundCents()
		rows = append(rows, ScheduleRow{
			Period:           period,
			Payment:          payment,
			PrincipalPayment: principalPart,
			InterestPayment:  interest,
			RemainingBalance: remaining,
		})
	}

	return Schedule{
		InstallmentAmount:       installment,
		TotalAmountWithInterest: total,
		TotalInterest:           totalInterest,
		Rows:                    rows,
	}
}

// CalculatePrincipalFirstInstallments pays equal principal each period with
// interest on the declining balance, so actual payments shrink over the
// term. The reported installment amount is the per-period average of the
// varying payments.
func CalculatePrincipalFirstInstallments(principal values.Money, months int, monthlyRate values.Rate) Schedule {
	if months <= 0 || !principal.IsPositive() {
		return Schedule{}
	}

	n := decimal.NewFromInt(int64(months))
	r := monthlyRate.Fraction()

	principalPerMonth := values.NewMoney(principal.Amount().Div(n)).RoundCents()

	rows := make([]ScheduleRow, 0, months)
	remaining := principal
	totalPaid := values.ZeroMoney()
	totalInterest := values.ZeroMoney()
	for period := 1; period <= months; period++ {
		interest := values.NewMoney(remaining.Amount().Mul(r)).RoundCents()
		principalPart := principalPerMonth
		if period == months {
			principalPart = remaining
		}
		remaining = remaining.SubFloor(principalPart).RoundCents()

		payment := principalPart.Add(interest).RoundCents()
		totalPaid = totalPaid.Add(payment)
		totalInterest = totalInterest.Add(interest)

		rows = append(rows, ScheduleRow{
			Period:           period,
			Payment:          payment,
			PrincipalPayment: principalPart,
			InterestPayment:  interest,
			RemainingBalance: remaining,
		})
	}

	avg := values.NewMoney(totalPaid.Amount().Div(n)).RoundCents()

	return Schedule{
		InstallmentAmount:       avg,
		TotalAmountWithInterest: totalPaid.RoundCents(),
		TotalInterest:           totalInterest.RoundCents(),
		Rows:                    rows,
	}
}

// ApplyPromotionalTerms reprices the rows from index promotionalPeriod
// onward at the regular rate, leaving the promotional-rate rows untouched.
// Each repriced row keeps its payment; the interest/principal split and the
// running balance are recomputed, and the aggregate interest total is
// re-summed across the mixed-rate rows.
func ApplyPromotionalTerms(s Schedule, regularRate values.Rate, promotionalPeriod int) Schedule {
	if promotionalPeriod < 0 {
		promotionalPeriod = 0
	}
	if promotionalPeriod >= len(s.Rows) {
		return s
	}

	r := regularRate.Fraction()
	rows := make([]ScheduleRow, len(s.Rows))
	copy(rows, s.Rows)

	entering := values.ZeroMoney()
	if promotionalPeriod > 0 {
		entering = rows[promotionalPeriod-1].RemainingBalance
	} else {
		// Balance entering the first row is the full outstanding amount.
		entering = rows[0].RemainingBalance.Add(rows[0].PrincipalPayment)
	}

	for i := promotionalPeriod; i < len(rows); i++ {
		interest := values.NewMoney(entering.Amount().Mul(r)).RoundCents()
		principalPart := rows[i].Payment.Sub(interest).RoundCents()
		entering = entering.SubFloor(principalPart).RoundCents()

		rows[i].InterestPayment = interest
		rows[i].PrincipalPayment = principalPart
		rows[i].RemainingBalance = entering
	}

	totalInterest := values.ZeroMoney()
	for _, row := range rows {
		totalInterest = totalInterest.Add(row.InterestPayment)
	}

	s.Rows = rows
	s.TotalInterest = totalInterest.RoundCents()
	return s
}
