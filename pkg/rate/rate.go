package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/immersion-se/controller/pkg/api/v1/types"
	"github.com/shopspring/decimal"
)

var (
	// ErrSourceFailure is returned when the upstream pricing call did not succeed.
	ErrSourceFailure = errors.New("rate source failure")
	// ErrRateUnavailable is returned when no rate covers the requested time.
	ErrRateUnavailable = errors.New("rate unavailable")
)

// Source resolves the rate effective at a point in time.
type Source interface {
	GetRate(ctx context.Context, when time.Time) (Rate, error)
}

// Rate is a price valid over the half-open interval [ValidFrom, ValidTo).
// A nil ValidTo means the rate is valid indefinitely.
type Rate struct {
	Value     decimal.Decimal `json:"value"`
	ValidFrom time.Time       `json:"validFrom"`
	ValidTo   *time.Time      `json:"validTo,omitempty"`
}

func (r Rate) Validate() error {
	if r.ValidFrom.IsZero() {
		return fmt.Errorf("rate has no valid_from")
	}
	if r.ValidTo != nil && !r.ValidTo.After(r.ValidFrom) {
		return fmt.Errorf("rate valid_to %s is not after valid_from %s", r.ValidTo.Format(time.RFC3339), r.ValidFrom.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls within [ValidFrom, ValidTo).
func (r Rate) Contains(t time.Time) bool {
	if t.Before(r.ValidFrom) {
		return false
	}
	return r.ValidTo == nil || t.Before(*r.ValidTo)
}

func (r Rate) String() string {
	to := "indefinitely"
	if r.ValidTo != nil {
		to = r.ValidTo.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s [%s, %s)", r.Value.String(), r.ValidFrom.Format(time.RFC3339), to)
}

// Candidate is a rate as listed by an upstream feed together with its payment method tag.
type Candidate struct {
	Rate
	PaymentMethod types.PaymentMethod
}

func (c Candidate) sameWindow(o Candidate) bool {
	if !c.ValidFrom.Equal(o.ValidFrom) {
		return false
	}
	if c.ValidTo == nil || o.ValidTo == nil {
		return c.ValidTo == nil && o.ValidTo == nil
	}
	return c.ValidTo.Equal(*o.ValidTo)
}

// Select picks the rate effective at when from the candidates in upstream order.
// A NON_DIRECT_DEBIT entry is dropped when another entry is listed for the same window.
// If several candidates still cover when, the last listed one wins.
func Select(candidates []Candidate, when time.Time) (Rate, error) {
	var selected *Rate
	for i, c := range candidates {
		if excluded(candidates, i) {
			continue
		}
		if !c.Contains(when) {
			continue
		}
		r := c.Rate
		selected = &r
	}

	if selected == nil {
		return Rate{}, fmt.Errorf("%w: rate for %s unavailable", ErrRateUnavailable, when.Format(time.RFC3339))
	}
	return *selected, nil
}

func excluded(candidates []Candidate, i int) bool {
	c := candidates[i]
	if c.PaymentMethod != types.PaymentMethodNonDirectDebit {
		return false
	}
	for j, o := range candidates {
		if j == i || o.PaymentMethod == types.PaymentMethodNonDirectDebit {
			continue
		}
		if c.sameWindow(o) {
			return true
		}
	}
	return false
}
