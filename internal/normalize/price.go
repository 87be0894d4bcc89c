package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"AUD": "A$",
	"INR": "₹",
	"GBP": "£",
	"EUR": "€",
}

// formatPriceRange renders a provider's min/max price as a display string,
// e.g. "Free", "$10", "₹500 - ₹2000". Missing prices yield fallback.
func formatPriceRange(min, max *float64, currency, fallback string) string {
	if min == nil && max == nil {
		return fallback
	}
	lo, hi := 0.0, 0.0
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	} else {
		hi = lo
	}
	if min == nil {
		lo = hi
	}
	if lo == 0 && hi == 0 {
		return PriceFree
	}
	if hi < lo {
		lo, hi = hi, lo
	}

	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	format := func(v float64) string {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if ok {
			return symbol + s
		}
		if currency != "" {
			return s + " " + strings.ToUpper(currency)
		}
		return s
	}
	if lo == hi {
		return format(lo)
	}
	return fmt.Sprintf("%s - %s", format(lo), format(hi))
}
