// Package render turns an InvoiceDocument into a PDF report.
//
// Rendering has two halves. Layout is a pure function from a document to a list of
// draw instructions; an Executor replays those instructions onto an fpdf document.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"tourinvoice/internal/model"
	"tourinvoice/internal/money"

	"github.com/shopspring/decimal"
)

// Page sections, in the order they appear in the report.
const (
	SectionCover       = "cover"
	SectionTourSummary = "tour summary"
	SectionBillDetails = "bill details"
	SectionJourney     = "journey details"
	SectionSummary     = "summary"
)

// AttachmentSection names the page of one attachment, e.g. "attachment bill #2".
func AttachmentSection(ref model.AttachmentRef) string {
	return fmt.Sprintf("attachment %s #%d", strings.ToLower(ref.Kind), ref.Index+1)
}

// Options controls page geometry and amount formatting. All lengths are millimetres.
type Options struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64
	RowHeight  float64
	FontSize   float64

	// Rate is the per-day allowance printed next to the DA amount; zero omits it.
	Rate decimal.Decimal
	// Money formats amounts; nil falls back to two fixed decimals without grouping.
	Money *money.Formatter
}

// DefaultOptions is A4 portrait with 15mm margins.
func DefaultOptions(f *money.Formatter, rate decimal.Decimal) Options {
	return Options{
		PageWidth:  210,
		PageHeight: 297,
		Margin:     15,
		RowHeight:  8,
		FontSize:   9,
		Rate:       rate,
		Money:      f,
	}
}

func (o Options) contentWidth() float64 { return o.PageWidth - 2*o.Margin }

func (o Options) number(d decimal.Decimal) string {
	if o.Money == nil {
		return d.StringFixed(2)
	}
	return o.Money.Number(d)
}

func (o Options) amount(d decimal.Decimal) string {
	if o.Money == nil {
		return d.StringFixed(2)
	}
	return o.Money.Amount(d)
}

// Instruction is one drawing step. Section names the page it belongs to and is
// reported as the stage of any RenderError it causes.
type Instruction interface {
	Section() string
}

type Op struct {
	Stage string
}

func (o Op) Section() string { return o.Stage }

type NewPage struct {
	Op
}

// Text is a single-line cell. Text wider than W is truncated by the executor.
type Text struct {
	Op
	X, Y, W, H float64
	Value      string
	Align      string // "L", "C" or "R"
	Bold       bool
	Size       float64 // zero uses Options.FontSize
}

type Line struct {
	Op
	X1, Y1, X2, Y2 float64
}

// Image draws the attachment behind Ref scaled into Box.
type Image struct {
	Op
	Ref   string
	Label string
	Box   Rect
}

type Rect struct {
	X, Y, W, H float64
}

// FitRect scales an imgW x imgH image to the largest size that fits inside box
// while keeping its aspect ratio, and centres it there.
func FitRect(imgW, imgH float64, box Rect) Rect {
	if imgW <= 0 || imgH <= 0 || box.W <= 0 || box.H <= 0 {
		return Rect{X: box.X, Y: box.Y}
	}
	scale := min(box.W/imgW, box.H/imgH)
	w, h := imgW*scale, imgH*scale
	return Rect{
		X: box.X + (box.W-w)/2,
		Y: box.Y + (box.H-h)/2,
		W: w,
		H: h,
	}
}

// TableGeometry places a header row plus Rows body rows of equal-width columns.
type TableGeometry struct {
	X, Y      float64
	Width     float64
	RowHeight float64
	Cols      int
	Rows      int
}

func (g TableGeometry) ColumnWidth() float64 { return g.Width / float64(g.Cols) }

// Height includes the header row.
func (g TableGeometry) Height() float64 { return float64(g.Rows+1) * g.RowHeight }

func (g TableGeometry) CellX(col int) float64 { return g.X + float64(col)*g.ColumnWidth() }

// RowY is the top of row; row 0 is the header.
func (g TableGeometry) RowY(row int) float64 { return g.Y + float64(row)*g.RowHeight }

// tableInstructions draws the grid first, then the bold header, then body rows in order.
func tableInstructions(section string, g TableGeometry, columns []string, aligns []string, rows [][]string) []Instruction {
	var out []Instruction
	op := Op{Stage: section}
	right := g.X + g.Width
	bottom := g.Y + g.Height()

	for r := 0; r <= g.Rows+1; r++ {
		y := g.RowY(r)
		out = append(out, Line{Op: op, X1: g.X, Y1: y, X2: right, Y2: y})
	}
	for c := 0; c <= g.Cols; c++ {
		x := g.CellX(c)
		out = append(out, Line{Op: op, X1: x, Y1: g.Y, X2: x, Y2: bottom})
	}

	cw := g.ColumnWidth()
	for c, name := range columns {
		out = append(out, Text{Op: op, X: g.CellX(c), Y: g.RowY(0), W: cw, H: g.RowHeight, Value: name, Align: "C", Bold: true})
	}
	for r, row := range rows {
		for c, cell := range row {
			align := "L"
			if c < len(aligns) && aligns[c] != "" {
				align = aligns[c]
			}
			out = append(out, Text{Op: op, X: g.CellX(c), Y: g.RowY(r + 1), W: cw, H: g.RowHeight, Value: cell, Align: align})
		}
	}
	return out
}

type builder struct {
	opts    Options
	out     []Instruction
	section string
	y       float64
}

func (b *builder) page(section string) {
	b.section = section
	b.out = append(b.out, NewPage{Op: Op{Stage: section}})
	b.y = b.opts.Margin
}

func (b *builder) op() Op { return Op{Stage: b.section} }

func (b *builder) heading(title string, size float64) {
	h := size * 0.6
	b.out = append(b.out, Text{Op: b.op(), X: b.opts.Margin, Y: b.y, W: b.opts.contentWidth(), H: h, Value: title, Align: "L", Bold: true, Size: size})
	b.y += h + 2
}

// field prints a bold label and its value on one row.
func (b *builder) field(label, value string) {
	const labelW = 50
	rh := b.opts.RowHeight
	b.out = append(b.out,
		Text{Op: b.op(), X: b.opts.Margin, Y: b.y, W: labelW, H: rh, Value: label, Align: "L", Bold: true},
		Text{Op: b.op(), X: b.opts.Margin + labelW, Y: b.y, W: b.opts.contentWidth() - labelW, H: rh, Value: value, Align: "L"},
	)
	b.y += rh
}

// amountRow prints a label with a right-aligned amount.
func (b *builder) amountRow(label, value string, bold bool) {
	const labelW = 110
	rh := b.opts.RowHeight
	b.out = append(b.out,
		Text{Op: b.op(), X: b.opts.Margin, Y: b.y, W: labelW, H: rh, Value: label, Align: "L", Bold: bold},
		Text{Op: b.op(), X: b.opts.Margin + labelW, Y: b.y, W: b.opts.contentWidth() - labelW, H: rh, Value: value, Align: "R", Bold: bold},
	)
	b.y += rh
}

func (b *builder) rule() {
	b.out = append(b.out, Line{Op: b.op(), X1: b.opts.Margin, Y1: b.y, X2: b.opts.PageWidth - b.opts.Margin, Y2: b.y})
	b.y += 1
}

// TODO: split tables that run past the bottom margin onto continuation pages.
func (b *builder) table(columns []string, aligns []string, rows [][]string) {
	g := TableGeometry{
		X:         b.opts.Margin,
		Y:         b.y,
		Width:     b.opts.contentWidth(),
		RowHeight: b.opts.RowHeight,
		Cols:      len(columns),
		Rows:      len(rows),
	}
	b.out = append(b.out, tableInstructions(b.section, g, columns, aligns, rows)...)
	b.y += g.Height() + 6
}

func (b *builder) gap(h float64) { b.y += h }

// Layout produces the draw instructions for doc. It does no I/O and is deterministic.
func Layout(doc model.InvoiceDocument, opts Options) []Instruction {
	b := &builder{opts: opts}
	b.cover(doc.Employee)
	b.tourSummary(doc.TourSummary)
	b.billDetails(doc.Bills, doc.Conveyances)
	b.journey(doc.Expenses)
	b.summary(doc)
	for _, ref := range doc.AttachmentRefs() {
		b.attachment(ref)
	}
	return b.out
}

func serial(i int) string { return strconv.Itoa(i + 1) }

func (b *builder) cover(e model.Employee) {
	b.page(SectionCover)
	b.heading("Tour Expense Claim", 16)
	b.gap(4)
	b.field("Employee Name", e.EmployeeName)
	b.field("Department", e.Department)
	b.field("Tour Period", e.TourPeriod)
	b.gap(6)

	b.heading("Agenda", 11)
	rows := make([][]string, 0, len(e.AgendaItems))
	for i, a := range e.AgendaItems {
		rows = append(rows, []string{serial(i), a.Item, a.FromDate, a.ToDate, a.ActionTaken})
	}
	b.table([]string{"S.No", "Agenda Item", "From", "To", "Action Taken"}, nil, rows)
}

func (b *builder) tourSummary(ts model.TourSummary) {
	b.page(SectionTourSummary)
	b.heading("Tour Summary", 14)
	rows := make([][]string, 0, len(ts.TourDetails))
	for _, td := range ts.TourDetails {
		rows = append(rows, []string{td.FromDate, td.ToDate, td.ModeOfTravel, td.From, td.To, td.ContactAddress, td.TelephoneNo, td.MajorPurpose})
	}
	b.table([]string{"From Date", "To Date", "Mode", "From", "To", "Contact Address", "Telephone", "Purpose"}, nil, rows)
}

func (b *builder) billDetails(bills []model.Bill, conveyances []model.Conveyance) {
	b.page(SectionBillDetails)
	b.heading("Bill Details", 14)
	rows := make([][]string, 0, len(bills))
	for i, bill := range bills {
		rows = append(rows, []string{serial(i), bill.Name, bill.Place, bill.BillNo, bill.BillDate, b.opts.number(bill.Amount)})
	}
	b.table([]string{"S.No", "Name", "Place", "Bill No", "Bill Date", "Amount"},
		[]string{"", "", "", "", "", "R"}, rows)

	b.heading("Conveyance", 11)
	rows = make([][]string, 0, len(conveyances))
	for i, c := range conveyances {
		rows = append(rows, []string{serial(i), c.Date, c.Place, c.From, c.To, c.Mode, b.opts.number(c.Amount)})
	}
	b.table([]string{"S.No", "Date", "Place", "From", "To", "Mode", "Amount"},
		[]string{"", "", "", "", "", "", "R"}, rows)
}

func (b *builder) journey(expenses []model.Expense) {
	b.page(SectionJourney)
	b.heading("Journey Details", 14)
	rows := make([][]string, 0, len(expenses))
	for i, e := range expenses {
		rows = append(rows, []string{serial(i), e.Date, e.ModeOfTravel, e.Class, e.From, e.To, e.TicketBookingSource, b.opts.number(e.TicketAmount)})
	}
	b.table([]string{"S.No", "Date", "Mode", "Class", "From", "To", "Booked Via", "Amount"},
		[]string{"", "", "", "", "", "", "", "R"}, rows)
}

func (b *builder) summary(doc model.InvoiceDocument) {
	td, da, t := doc.TravelDuration, doc.DailyAllowance, doc.Totals

	b.page(SectionSummary)
	b.heading("Summary", 14)
	b.field("Departure", strings.TrimSpace(td.DepartureDate+" "+td.DepartureTime))
	b.field("Return", strings.TrimSpace(td.ReturnDate+" "+td.ReturnTime))
	b.field("Nights Stayed", strconv.Itoa(td.NightsStayed))
	b.field("Days of Travel", strconv.Itoa(td.DaysOfTravel))
	if da.OnFor != "" {
		b.field("DA On For", da.OnFor)
	}
	b.gap(6)

	b.amountRow("Total Bill Amount", b.opts.amount(t.TotalBillAmount), false)
	if len(doc.Conveyances) > 0 {
		b.amountRow("Total Conveyance Amount", b.opts.amount(t.TotalConveyanceAmount), false)
	}
	b.amountRow("Total Journey Expenses", b.opts.amount(t.TotalExpenses), false)

	daLabel := fmt.Sprintf("Daily Allowance (%d days)", da.DADays)
	if !b.opts.Rate.IsZero() {
		daLabel = fmt.Sprintf("Daily Allowance (%d days x %s)", da.DADays, b.opts.amount(b.opts.Rate))
	}
	b.amountRow(daLabel, b.opts.amount(da.DAAmount), false)
	b.rule()
	b.amountRow("Grand Total", b.opts.amount(t.GrandTotal), true)
}

func (b *builder) attachment(ref model.AttachmentRef) {
	b.page(AttachmentSection(ref))
	title := fmt.Sprintf("%s %d", ref.Kind, ref.Index+1)
	if strings.TrimSpace(ref.Label) != "" {
		title += ": " + ref.Label
	}
	b.heading(title, 12)
	b.out = append(b.out, Text{Op: b.op(), X: b.opts.Margin, Y: b.y, W: b.opts.contentWidth(), H: 5, Value: ref.Ref, Align: "L", Size: 7})
	b.gap(8)

	box := Rect{
		X: b.opts.Margin,
		Y: b.y,
		W: b.opts.contentWidth(),
		H: b.opts.PageHeight - b.opts.Margin - b.y,
	}
	b.out = append(b.out, Image{Op: b.op(), Ref: ref.Ref, Label: title, Box: box})
}
