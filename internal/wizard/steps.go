package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"tourinvoice/internal/model"
)

var (
	ErrUnknownStep    = errors.New("unknown wizard step")
	ErrInvalidPayload = errors.New("invalid step payload")
)

// StepID names a wizard step. Each step owns a disjoint set of top-level document keys.
type StepID string

const (
	StepEmployee    StepID = "employee"
	StepTourSummary StepID = "tourSummary"
	StepBills       StepID = "bills"
	StepExpenses    StepID = "expenses"
)

// Steps lists the wizard steps in the order the UI presents them.
var Steps = []StepID{StepEmployee, StepTourSummary, StepBills, StepExpenses}

// Step is the typed partial data submitted by one wizard step.
type Step interface {
	ID() StepID
	apply(doc *model.InvoiceDocument)
}

// EmployeeStep owns employee.
type EmployeeStep struct {
	Employee model.Employee `json:"employee"`
}

func (EmployeeStep) ID() StepID { return StepEmployee }

func (s EmployeeStep) apply(doc *model.InvoiceDocument) {
	e := s.Employee
	e.AgendaItems = slices.Clone(e.AgendaItems)
	doc.Employee = e
}

// TourSummaryStep owns tourSummary.
type TourSummaryStep struct {
	TourSummary model.TourSummary `json:"tourSummary"`
}

func (TourSummaryStep) ID() StepID { return StepTourSummary }

func (s TourSummaryStep) apply(doc *model.InvoiceDocument) {
	doc.TourSummary = model.TourSummary{TourDetails: slices.Clone(s.TourSummary.TourDetails)}
}

// BillsStep owns bills and conveyances.
type BillsStep struct {
	Bills       []model.Bill       `json:"bills"`
	Conveyances []model.Conveyance `json:"conveyances"`
}

func (BillsStep) ID() StepID { return StepBills }

func (s BillsStep) apply(doc *model.InvoiceDocument) {
	doc.Bills = slices.Clone(s.Bills)
	doc.Conveyances = slices.Clone(s.Conveyances)
}

// ExpensesStep owns expenses, the travel duration endpoints and dailyAllowance.onFor.
// Derived fields submitted by the client are ignored; they are recomputed on merge.
type ExpensesStep struct {
	Expenses       []model.Expense      `json:"expenses"`
	TravelDuration model.TravelDuration `json:"travelDuration"`
	DailyAllowance model.DailyAllowance `json:"dailyAllowance"`
}

func (ExpensesStep) ID() StepID { return StepExpenses }

func (s ExpensesStep) apply(doc *model.InvoiceDocument) {
	doc.Expenses = slices.Clone(s.Expenses)
	doc.TravelDuration = model.TravelDuration{
		DepartureDate: s.TravelDuration.DepartureDate,
		DepartureTime: s.TravelDuration.DepartureTime,
		ReturnDate:    s.TravelDuration.ReturnDate,
		ReturnTime:    s.TravelDuration.ReturnTime,
	}
	doc.DailyAllowance = model.DailyAllowance{OnFor: s.DailyAllowance.OnFor}
}

// DecodeStep parses the JSON body submitted for step id.
func DecodeStep(id StepID, raw []byte) (Step, error) {
	var (
		step Step
		err  error
	)
	switch id {
	case StepEmployee:
		var s EmployeeStep
		err = json.Unmarshal(raw, &s)
		step = s
	case StepTourSummary:
		var s TourSummaryStep
		err = json.Unmarshal(raw, &s)
		step = s
	case StepBills:
		var s BillsStep
		err = json.Unmarshal(raw, &s)
		step = s
	case StepExpenses:
		var s ExpensesStep
		err = json.Unmarshal(raw, &s)
		step = s
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownStep, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidPayload, id, err)
	}
	return step, nil
}
