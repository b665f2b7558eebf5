package validator

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"tourinvoice/internal/calculator"
	"tourinvoice/internal/model"

	"github.com/shopspring/decimal"
)

const owner = "7f1d2f4e-3c55-4b8e-9a0e-1b2c3d4e5f60"

func validDocument(t *testing.T) model.InvoiceDocument {
	t.Helper()
	doc := model.InvoiceDocument{
		Employee: model.Employee{
			EmployeeName: "Asha Rao",
			Department:   "Field Operations",
			TourPeriod:   "10 Jan 2024 - 12 Jan 2024",
			AgendaItems: []model.AgendaItem{
				{Item: "Site audit", FromDate: "2024-01-10", ToDate: "2024-01-11", ActionTaken: "Completed"},
			},
		},
		TourSummary: model.TourSummary{TourDetails: []model.TourDetail{
			{FromDate: "2024-01-10", ToDate: "2024-01-12", ModeOfTravel: "Train", From: "Pune", To: "Mumbai"},
		}},
		Bills:       []model.Bill{{Name: "Hotel", Amount: decimal.NewFromInt(500)}},
		Conveyances: []model.Conveyance{{Mode: "Taxi", Amount: decimal.NewFromInt(100)}},
		Expenses:    []model.Expense{{ModeOfTravel: "Train", TicketAmount: decimal.NewFromInt(1200)}},
		TravelDuration: model.TravelDuration{
			DepartureDate: "2024-01-10", DepartureTime: "09:00",
			ReturnDate: "2024-01-12", ReturnTime: "18:00",
		},
	}
	if err := calculator.NewDefault().Recompute(&doc); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	return doc
}

func TestValidateAcceptsCompleteDocument(t *testing.T) {
	res := Validate(validDocument(t), owner)
	if !res.OK || len(res.Errors) != 0 {
		t.Fatalf("expected ok, got %+v", res)
	}
	if res.Err() != nil {
		t.Fatalf("expected nil error")
	}
}

func TestValidateAcceptsEmptyLineItems(t *testing.T) {
	doc := validDocument(t)
	doc.Bills = nil
	doc.Conveyances = []model.Conveyance{}
	doc.Expenses = nil
	if err := calculator.NewDefault().Recompute(&doc); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if res := Validate(doc, owner); !res.OK {
		t.Fatalf("expected ok, got %v", res.Errors)
	}
}

func TestValidateMissingDepartmentReportsOneError(t *testing.T) {
	doc := validDocument(t)
	doc.Employee.Department = "  "
	res := Validate(doc, owner)
	if res.OK {
		t.Fatalf("expected failure")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "employee.department") {
		t.Fatalf("expected exactly one department error, got %v", res.Errors)
	}
}

func TestValidateReportsAllViolationsInCheckOrder(t *testing.T) {
	doc := validDocument(t)
	doc.Employee.EmployeeName = ""
	doc.TourSummary.TourDetails = nil
	doc.Bills[0].Amount = decimal.NewFromInt(-5)
	doc.DailyAllowance.DADays = -1
	doc.Totals.GrandTotal = decimal.NewFromInt(1)

	res := Validate(doc, "")
	want := []string{
		"ownerId is required",
		"employee.employeeName is required",
		"tourSummary.tourDetails must contain at least one entry",
		"bills[0].amount must not be negative",
		"dailyAllowance.daDays must not be negative",
	}
	if len(res.Errors) != len(want)+1 {
		t.Fatalf("expected %d errors, got %v", len(want)+1, res.Errors)
	}
	if !reflect.DeepEqual(res.Errors[:len(want)], want) {
		t.Fatalf("unexpected errors:\n got %v\nwant %v", res.Errors, want)
	}
	if !strings.HasPrefix(res.Errors[len(want)], "totals.grandTotal 1.00 does not match") {
		t.Fatalf("unexpected total error %q", res.Errors[len(want)])
	}

	var failed *ValidationFailed
	if !errors.As(res.Err(), &failed) || len(failed.Errors) != len(res.Errors) {
		t.Fatalf("expected ValidationFailed carrying all errors, got %v", res.Err())
	}
}

func TestValidateOwner(t *testing.T) {
	tests := []struct {
		name    string
		docOwn  string
		caller  string
		wantErr string
	}{
		{"missing", "", "", "ownerId is required"},
		{"malformed", "", "user-42", `ownerId "user-42" is not a valid identifier`},
		{"mismatch", "0b0e3a62-5d0c-4a57-8a4a-1f5a7f0f9e11", owner, "ownerId does not match the document owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDocument(t)
			doc.OwnerID = tt.docOwn
			res := Validate(doc, tt.caller)
			if len(res.Errors) != 1 || res.Errors[0] != tt.wantErr {
				t.Fatalf("expected [%s], got %v", tt.wantErr, res.Errors)
			}
		})
	}
}

func TestValidateDateRanges(t *testing.T) {
	doc := validDocument(t)
	doc.TourSummary.TourDetails = append(doc.TourSummary.TourDetails,
		model.TourDetail{FromDate: "2024-01-12", ToDate: "2024-01-11"},
		model.TourDetail{FromDate: "yesterday", ToDate: "2024-01-11"},
	)
	res := Validate(doc, owner)
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", res.Errors)
	}
	if !strings.HasPrefix(res.Errors[0], "tourSummary.tourDetails[1].toDate") {
		t.Fatalf("unexpected first error %q", res.Errors[0])
	}
	if !strings.HasPrefix(res.Errors[1], "tourSummary.tourDetails[2].fromDate") {
		t.Fatalf("unexpected second error %q", res.Errors[1])
	}
}

func TestValidateGrandTotalTolerance(t *testing.T) {
	doc := validDocument(t)
	doc.Totals.GrandTotal = doc.Totals.GrandTotal.Add(decimal.RequireFromString("0.01"))
	if res := Validate(doc, owner); !res.OK {
		t.Fatalf("expected difference of 0.01 to pass, got %v", res.Errors)
	}

	doc.Totals.GrandTotal = doc.Totals.GrandTotal.Add(decimal.RequireFromString("0.01"))
	if res := Validate(doc, owner); res.OK {
		t.Fatalf("expected tampered total to fail")
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	doc := validDocument(t)
	doc.Totals.GrandTotal = decimal.NewFromInt(99)
	_ = Validate(doc, owner)
	if !doc.Totals.GrandTotal.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("validator corrected the total")
	}
}
