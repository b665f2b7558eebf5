// Package calculator derives trip duration, daily allowance and totals for an
// InvoiceDocument. It is the only place these values are computed.
package calculator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tourinvoice/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultDARate is the daily allowance paid per day of travel when no rate is configured.
const DefaultDARate = 400

const (
	DateLayout = "2006-01-02"
	day        = 24 * time.Hour
)

var clockLayouts = []string{"15:04", "15:04:05"}

// ErrInvalidDateRange is returned when an endpoint cannot be parsed or the return
// does not come after the departure.
var ErrInvalidDateRange = errors.New("invalid date range")

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidDateRange, date, err)
	}
	return t, nil
}

// ParseInstant combines a calendar date and a wall clock time into one instant (UTC).
func ParseInstant(date, clock string) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range clockLayouts {
		c, err := time.Parse(layout, clock)
		if err == nil {
			return d.Add(time.Duration(c.Hour())*time.Hour +
				time.Duration(c.Minute())*time.Minute +
				time.Duration(c.Second())*time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidDateRange, clock)
}

// TravelSpan returns the number of started days and of whole nights between two instants.
// days = ceil(Δ / 24h), nights = floor(Δ / 24h).
func TravelSpan(departure, ret time.Time) (days, nights int, err error) {
	elapsed := ret.Sub(departure)
	if elapsed <= 0 {
		return 0, 0, fmt.Errorf("%w: return %s is not after departure %s",
			ErrInvalidDateRange, ret.Format(time.RFC3339), departure.Format(time.RFC3339))
	}
	nights = int(elapsed / day)
	days = nights
	if elapsed%day != 0 {
		days++
	}
	return days, nights, nil
}

// Derived are the values computed from a TravelDuration.
type Derived struct {
	NightsStayed int
	DaysOfTravel int
	DAAmount     decimal.Decimal
}

// Calculator holds the configured daily allowance rate.
type Calculator struct {
	Rate decimal.Decimal
}

func New(rate decimal.Decimal) *Calculator {
	return &Calculator{Rate: rate}
}

// NewDefault uses DefaultDARate.
func NewDefault() *Calculator {
	return New(decimal.NewFromInt(DefaultDARate))
}

// DAAmount is days × rate.
func (c *Calculator) DAAmount(days int) decimal.Decimal {
	return c.Rate.Mul(decimal.NewFromInt(int64(days)))
}

// Derive computes nights, days and the DA amount for a travel duration.
// A completely blank duration derives zeros; a partially filled one is an error.
func (c *Calculator) Derive(td model.TravelDuration) (Derived, error) {
	if td.IsBlank() {
		return Derived{DAAmount: decimal.Zero}, nil
	}
	dep, err := ParseInstant(td.DepartureDate, td.DepartureTime)
	if err != nil {
		return Derived{}, fmt.Errorf("departure: %w", err)
	}
	ret, err := ParseInstant(td.ReturnDate, td.ReturnTime)
	if err != nil {
		return Derived{}, fmt.Errorf("return: %w", err)
	}
	days, nights, err := TravelSpan(dep, ret)
	if err != nil {
		return Derived{}, err
	}
	return Derived{
		NightsStayed: nights,
		DaysOfTravel: days,
		DAAmount:     c.DAAmount(days),
	}, nil
}

// Recompute refreshes every derived field of doc in place: travel duration,
// daily allowance and totals. On error doc is left untouched.
func (c *Calculator) Recompute(doc *model.InvoiceDocument) error {
	d, err := c.Derive(doc.TravelDuration)
	if err != nil {
		return err
	}
	doc.TravelDuration.NightsStayed = d.NightsStayed
	doc.TravelDuration.DaysOfTravel = d.DaysOfTravel
	doc.DailyAllowance.HotelBillDays = d.NightsStayed
	doc.DailyAllowance.DADays = d.DaysOfTravel
	doc.DailyAllowance.DAAmount = d.DAAmount
	doc.Totals = SumTotals(*doc)
	return nil
}

// SumTotals sums the document's line items and its current DA amount.
func SumTotals(doc model.InvoiceDocument) model.Totals {
	bills := decimal.Zero
	for _, b := range doc.Bills {
		bills = bills.Add(b.Amount)
	}
	conveyances := decimal.Zero
	for _, cv := range doc.Conveyances {
		conveyances = conveyances.Add(cv.Amount)
	}
	expenses := decimal.Zero
	for _, e := range doc.Expenses {
		expenses = expenses.Add(e.TicketAmount)
	}
	return model.Totals{
		TotalBillAmount:       bills,
		TotalConveyanceAmount: conveyances,
		TotalExpenses:         expenses,
		GrandTotal:            bills.Add(conveyances).Add(expenses).Add(doc.DailyAllowance.DAAmount),
	}
}
