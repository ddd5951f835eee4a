package currency

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// TTD is the target currency for converted final budgets.
const TTD = "TTD"

// Converter turns USD budget amounts into TTD using a RateProvider.
// Conversions are always priced at January 1 of the budget's fiscal
// year, not at the current date.
type Converter struct {
	mu       sync.RWMutex
	provider RateProvider
}

// NewConverter creates a Converter backed by the given provider.
func NewConverter(provider RateProvider) *Converter {
	return &Converter{provider: provider}
}

// SetProvider swaps the rate provider. Used on config hot-reload so new
// provider settings take effect without a restart.
func (c *Converter) SetProvider(provider RateProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = provider
}

// ToTTD converts amountUSD from sourceCurrency into TTD priced at
// January 1 of year, rounded to 2 decimal places. A TTD source returns
// the amount exactly as given, unrounded and with no provider call. A
// missing quote returns (nil, nil); the caller renders that as a null
// conversion. Provider failures are returned as errors.
func (c *Converter) ToTTD(ctx context.Context, amountUSD float64, sourceCurrency string, year int64) (*float64, error) {
	if sourceCurrency == TTD {
		out := amountUSD
		return &out, nil
	}

	c.mu.RLock()
	provider := c.provider
	c.mu.RUnlock()

	refDate := time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC)
	rate, err := provider.Rate(ctx, sourceCurrency, TTD, refDate)
	if err != nil {
		return nil, fmt.Errorf("currency: convert %s->TTD for %d: %w", sourceCurrency, year, err)
	}
	if rate == nil {
		return nil, nil
	}

	out := round2(amountUSD * *rate)
	return &out, nil
}

// round2 rounds to 2 decimal places using standard half-away-from-zero
// rounding.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
