package model

import (
	"slices"

	"github.com/shopspring/decimal"
)

// InvoiceDocument is the canonical tour expense submission assembled by the wizard.
// List order is display order; nothing in the system sorts these slices.
type InvoiceDocument struct {
	Employee       Employee       `json:"employee"`
	TourSummary    TourSummary    `json:"tourSummary"`
	Bills          []Bill         `json:"bills"`
	Conveyances    []Conveyance   `json:"conveyances"`
	Expenses       []Expense      `json:"expenses"`
	TravelDuration TravelDuration `json:"travelDuration"`
	DailyAllowance DailyAllowance `json:"dailyAllowance"`
	Totals         Totals         `json:"totals"`
	OwnerID        string         `json:"ownerId,omitempty"`
}

type Employee struct {
	EmployeeName string       `json:"employeeName"`
	Department   string       `json:"department"`
	TourPeriod   string       `json:"tourPeriod"`
	AgendaItems  []AgendaItem `json:"agendaItems"`
}

// AgendaItem is a planned pre-trip task and the action taken on it after the trip.
type AgendaItem struct {
	Item        string `json:"item"`
	FromDate    string `json:"fromDate"`
	ToDate      string `json:"toDate"`
	ActionTaken string `json:"actionTaken"`
}

type TourSummary struct {
	TourDetails []TourDetail `json:"tourDetails"`
}

// TourDetail is one leg of the itinerary.
type TourDetail struct {
	FromDate       string `json:"fromDate"`
	ToDate         string `json:"toDate"`
	ModeOfTravel   string `json:"modeOfTravel"`
	From           string `json:"from"`
	To             string `json:"to"`
	ContactAddress string `json:"contactAddress"`
	TelephoneNo    string `json:"telephoneNo"`
	MajorPurpose   string `json:"majorPurpose"`
}

type Bill struct {
	Name          string          `json:"name"`
	Place         string          `json:"place"`
	BillNo        string          `json:"billNo"`
	BillDate      string          `json:"billDate"`
	Amount        decimal.Decimal `json:"amount"`
	AttachmentRef string          `json:"attachmentRef,omitempty"`
}

// Conveyance is a local transport charge (taxi, auto, ...).
type Conveyance struct {
	Date          string          `json:"date"`
	Place         string          `json:"place"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Mode          string          `json:"mode"`
	Amount        decimal.Decimal `json:"amount"`
	AttachmentRef string          `json:"attachmentRef,omitempty"`
}

// Expense is an inter-city journey ticket.
type Expense struct {
	Date                string          `json:"date"`
	ModeOfTravel        string          `json:"modeOfTravel"`
	Class               string          `json:"class,omitempty"`
	From                string          `json:"from"`
	To                  string          `json:"to"`
	TicketBookingSource string          `json:"ticketBookingSource,omitempty"`
	TicketAmount        decimal.Decimal `json:"ticketAmount"`
	AttachmentRef       string          `json:"attachmentRef,omitempty"`
}

// TravelDuration holds the trip endpoints. NightsStayed and DaysOfTravel are derived.
type TravelDuration struct {
	DepartureDate string `json:"departureDate"`
	DepartureTime string `json:"departureTime"`
	ReturnDate    string `json:"returnDate"`
	ReturnTime    string `json:"returnTime"`
	NightsStayed  int    `json:"nightsStayed"`
	DaysOfTravel  int    `json:"daysOfTravel"`
}

// IsBlank reports whether none of the four endpoint fields has been filled in.
func (t TravelDuration) IsBlank() bool {
	return t.DepartureDate == "" && t.DepartureTime == "" && t.ReturnDate == "" && t.ReturnTime == ""
}

// DailyAllowance: everything except OnFor is derived from TravelDuration.
type DailyAllowance struct {
	OnFor         string          `json:"onFor"`
	HotelBillDays int             `json:"hotelBillDays"`
	DADays        int             `json:"daDays"`
	DAAmount      decimal.Decimal `json:"daAmount"`
}

type Totals struct {
	TotalBillAmount       decimal.Decimal `json:"totalBillAmount"`
	TotalConveyanceAmount decimal.Decimal `json:"totalConveyanceAmount"`
	TotalExpenses         decimal.Decimal `json:"totalExpenses"`
	GrandTotal            decimal.Decimal `json:"grandTotal"`
}

// Clone returns a copy that shares no slices with d.
func (d InvoiceDocument) Clone() InvoiceDocument {
	out := d
	out.Employee.AgendaItems = slices.Clone(d.Employee.AgendaItems)
	out.TourSummary.TourDetails = slices.Clone(d.TourSummary.TourDetails)
	out.Bills = slices.Clone(d.Bills)
	out.Conveyances = slices.Clone(d.Conveyances)
	out.Expenses = slices.Clone(d.Expenses)
	return out
}

// AttachmentRefs lists every attachment reference in render order:
// bills, then conveyances, then expenses, each in list order.
func (d InvoiceDocument) AttachmentRefs() []AttachmentRef {
	var refs []AttachmentRef
	for i, b := range d.Bills {
		if b.AttachmentRef != "" {
			refs = append(refs, AttachmentRef{Kind: AttachmentBill, Index: i, Label: b.Name, Ref: b.AttachmentRef})
		}
	}
	for i, c := range d.Conveyances {
		if c.AttachmentRef != "" {
			refs = append(refs, AttachmentRef{Kind: AttachmentConveyance, Index: i, Label: c.From + " - " + c.To, Ref: c.AttachmentRef})
		}
	}
	for i, e := range d.Expenses {
		if e.AttachmentRef != "" {
			refs = append(refs, AttachmentRef{Kind: AttachmentExpense, Index: i, Label: e.From + " - " + e.To, Ref: e.AttachmentRef})
		}
	}
	return refs
}

// Attachment kinds
const (
	AttachmentBill       = "Bill"
	AttachmentConveyance = "Conveyance"
	AttachmentExpense    = "Expense"
)

type AttachmentRef struct {
	Kind  string
	Index int
	Label string
	Ref   string
}
