package money

import (
	"fmt"
	"sort"
	"strings"
)

// Amount is a monetary value in minor units (cents, halalas) with its ISO 4217 currency code
type Amount struct {
	Minor    int64  `json:"amount_minor"`
	Currency string `json:"currency"`
}

// New creates an Amount, normalizing the currency code to upper case
func New(minor int64, currency string) Amount {
	return Amount{Minor: minor, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// CurrencyMismatchError is returned when two amounts of different currencies are combined
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

// Add returns a+b. Amounts in different currencies are never combined.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, &CurrencyMismatchError{Left: a.Currency, Right: b.Currency}
	}
	return Amount{Minor: a.Minor + b.Minor, Currency: a.Currency}, nil
}

// IsZero reports whether the amount is zero
func (a Amount) IsZero() bool {
	return a.Minor == 0
}

func (a Amount) String() string {
	sign := ""
	minor := a.Minor
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, a.Currency)
}

// Totals accumulates amounts per currency
type Totals map[string]int64

// Add adds an amount to its currency bucket
func (t Totals) Add(a Amount) {
	t[a.Currency] += a.Minor
}

// Get returns the total for a currency as an Amount
func (t Totals) Get(currency string) Amount {
	return Amount{Minor: t[currency], Currency: currency}
}

// Amounts returns one Amount per currency, ordered by currency code
func (t Totals) Amounts() []Amount {
	currencies := make([]string, 0, len(t))
	for c := range t {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	out := make([]Amount, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, Amount{Minor: t[c], Currency: c})
	}
	return out
}

// Sum totals a list of amounts per currency
func Sum(amounts ...Amount) Totals {
	t := Totals{}
	for _, a := range amounts {
		t.Add(a)
	}
	return t
}
