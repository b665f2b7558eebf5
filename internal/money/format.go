// Package money formats amounts for the rendered report.
package money

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter prints amounts with the locale's digit grouping, two decimal places and
// the ISO code of the locale's currency.
type Formatter struct {
	tag     language.Tag
	unit    currency.Unit
	printer *message.Printer
	decimal string
}

// NewFormatter builds a Formatter for a BCP 47 locale such as "en-IN" or "de-DE".
func NewFormatter(locale string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid currency locale %q: %w", locale, err)
	}
	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		return nil, fmt.Errorf("no currency known for locale %q", locale)
	}
	p := message.NewPrinter(tag)
	// the locale's decimal separator is whatever sits between the digits of 1.5
	sep := strings.Trim(p.Sprint(number.Decimal(1.5, number.Scale(1))), "15")
	if sep == "" {
		sep = "."
	}
	return &Formatter{tag: tag, unit: unit, printer: p, decimal: sep}, nil
}

func (f *Formatter) Locale() string { return f.tag.String() }

// Code is the ISO 4217 code of the locale's currency, e.g. "INR".
func (f *Formatter) Code() string { return f.unit.String() }

// Number formats amount rounded half-up to two places, e.g. "1,200.00" for en-US.
// Digits are never routed through float64, so large amounts stay exact.
func (f *Formatter) Number(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		// beyond int64: no grouping
		return sign + whole + f.decimal + frac
	}
	return sign + f.printer.Sprint(number.Decimal(n)) + f.decimal + frac
}

// Amount prefixes Number with the currency code, e.g. "USD 1,200.00".
func (f *Formatter) Amount(amount decimal.Decimal) string {
	return f.Code() + " " + f.Number(amount)
}
