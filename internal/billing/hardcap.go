package billing

import (
	"github.com/DukeRupert/tenantly/internal/domain"
)

// RequireWithinHardCap allows creating one more item when current is below
// limit. A limit of zero or less disables creation altogether.
func RequireWithinHardCap(op string, current, limit int64, detail string) error {
	if limit <= 0 || current >= limit {
		return domain.Forbidden(op, detail)
	}
	return nil
}

// Top-up bounds in cents: at least $5, below $200.
const (
	MinTopUpCents int64 = 500
	MaxTopUpCents int64 = 20000
)

// ValidateTopUp checks a top-up amount in cents.
func ValidateTopUp(op string, amountCents int64) error {
	if amountCents < MinTopUpCents {
		return domain.Invalid(op, "Amount must be at least $5.")
	}
	if amountCents >= MaxTopUpCents {
		return domain.Invalid(op, "Amount must be less than $200.")
	}
	return nil
}
