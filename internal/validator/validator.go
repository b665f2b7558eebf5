// Package validator gates a complete InvoiceDocument before it is stored or rendered.
package validator

import (
	"fmt"
	"strings"

	"tourinvoice/internal/calculator"
	"tourinvoice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tolerance is the largest accepted difference between a stored and a recomputed grand total.
var Tolerance = decimal.RequireFromString("0.01")

// Result is the outcome of Validate. Errors is empty when OK is true and lists every
// independent violation, in check order, otherwise.
type Result struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// Err returns nil for a passing result and a *ValidationFailed otherwise.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationFailed{Errors: r.Errors}
}

type ValidationFailed struct {
	Errors []string
}

func (e *ValidationFailed) Error() string {
	return "invoice validation failed: " + strings.Join(e.Errors, "; ")
}

// Validate checks doc on behalf of ownerID. It never mutates doc.
func Validate(doc model.InvoiceDocument, ownerID string) Result {
	var c checker
	c.owner(doc, ownerID)
	c.employee(doc.Employee)
	c.tourSummary(doc.TourSummary)
	c.lineItems(doc)
	c.dailyAllowance(doc.DailyAllowance)
	c.totals(doc)

	if len(c.errs) == 0 {
		return Result{OK: true}
	}
	return Result{OK: false, Errors: c.errs}
}

type checker struct {
	errs []string
}

func (c *checker) addf(format string, args ...any) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

func (c *checker) owner(doc model.InvoiceDocument, ownerID string) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		c.addf("ownerId is required")
		return
	}
	if _, err := uuid.Parse(ownerID); err != nil {
		c.addf("ownerId %q is not a valid identifier", ownerID)
		return
	}
	if doc.OwnerID != "" && doc.OwnerID != ownerID {
		c.addf("ownerId does not match the document owner")
	}
}

func (c *checker) employee(e model.Employee) {
	if strings.TrimSpace(e.EmployeeName) == "" {
		c.addf("employee.employeeName is required")
	}
	if strings.TrimSpace(e.Department) == "" {
		c.addf("employee.department is required")
	}
	if strings.TrimSpace(e.TourPeriod) == "" {
		c.addf("employee.tourPeriod is required")
	}
	for i, item := range e.AgendaItems {
		c.dateRange(fmt.Sprintf("employee.agendaItems[%d]", i), item.FromDate, item.ToDate)
	}
}

func (c *checker) tourSummary(ts model.TourSummary) {
	if len(ts.TourDetails) == 0 {
		c.addf("tourSummary.tourDetails must contain at least one entry")
		return
	}
	for i, td := range ts.TourDetails {
		c.dateRange(fmt.Sprintf("tourSummary.tourDetails[%d]", i), td.FromDate, td.ToDate)
	}
}

// dateRange records one violation for an unparseable or inverted range.
func (c *checker) dateRange(field, from, to string) {
	fromDate, err := calculator.ParseDate(from)
	if err != nil {
		c.addf("%s.fromDate %q is not a valid date", field, from)
		return
	}
	toDate, err := calculator.ParseDate(to)
	if err != nil {
		c.addf("%s.toDate %q is not a valid date", field, to)
		return
	}
	if toDate.Before(fromDate) {
		c.addf("%s.toDate %s is before fromDate %s", field, to, from)
	}
}

// lineItems accepts empty lists; only negative amounts are violations.
func (c *checker) lineItems(doc model.InvoiceDocument) {
	for i, b := range doc.Bills {
		if b.Amount.IsNegative() {
			c.addf("bills[%d].amount must not be negative", i)
		}
	}
	for i, cv := range doc.Conveyances {
		if cv.Amount.IsNegative() {
			c.addf("conveyances[%d].amount must not be negative", i)
		}
	}
	for i, e := range doc.Expenses {
		if e.TicketAmount.IsNegative() {
			c.addf("expenses[%d].ticketAmount must not be negative", i)
		}
	}
}

func (c *checker) dailyAllowance(da model.DailyAllowance) {
	if da.DADays < 0 {
		c.addf("dailyAllowance.daDays must not be negative")
	}
	if da.DAAmount.IsNegative() {
		c.addf("dailyAllowance.daAmount must not be negative")
	}
}

func (c *checker) totals(doc model.InvoiceDocument) {
	t := doc.Totals
	if t.TotalBillAmount.IsNegative() {
		c.addf("totals.totalBillAmount must not be negative")
	}
	if t.TotalConveyanceAmount.IsNegative() {
		c.addf("totals.totalConveyanceAmount must not be negative")
	}
	if t.TotalExpenses.IsNegative() {
		c.addf("totals.totalExpenses must not be negative")
	}
	if t.GrandTotal.IsNegative() {
		c.addf("totals.grandTotal must not be negative")
		return
	}

	want := calculator.SumTotals(doc).GrandTotal
	if t.GrandTotal.Sub(want).Abs().GreaterThan(Tolerance) {
		c.addf("totals.grandTotal %s does not match the recomputed total %s",
			t.GrandTotal.StringFixed(2), want.StringFixed(2))
	}
}
