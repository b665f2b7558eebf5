package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"tourinvoice/internal/calculator"
	"tourinvoice/internal/database"
	"tourinvoice/internal/model"
	"tourinvoice/internal/render"
	"tourinvoice/internal/repository"
	"tourinvoice/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const owner = "7f1d2f4e-3c55-4b8e-9a0e-1b2c3d4e5f60"

type testServer struct {
	db      *gorm.DB
	router  *gin.Engine
	token   string
	tempDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "handler-test-secret")

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	tempDir := t.TempDir()
	renderer := render.NewRenderer(render.DefaultOptions(nil, decimal.NewFromInt(400)), nil, log, nil)
	invoices := service.NewInvoiceService(
		repository.NewInvoiceRepository(db),
		repository.NewAuditRepository(db),
		repository.NewTransactionManager(db),
		renderer, tempDir, nil, log,
	)
	auditRepo := repository.NewAuditRepository(db)
	wizardSvc := service.NewWizardService(repository.NewSnapshotRepository(db), calculator.NewDefault(), invoices, auditRepo, log)

	r := gin.New()
	NewWizardHandler(wizardSvc).RegisterRoutes(r.Group(""))
	NewInvoiceHandler(invoices, log).RegisterRoutes(r.Group(""))
	NewAuditHandler(service.NewAuditService(auditRepo)).RegisterRoutes(r.Group(""))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": owner,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("handler-test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return &testServer{db: db, router: r, token: signed, tempDir: tempDir}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Errors    []string        `json:"errors"`
	StateLost bool            `json:"state_lost"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func validDocument(t *testing.T) model.InvoiceDocument {
	t.Helper()
	doc := model.InvoiceDocument{
		Employee: model.Employee{EmployeeName: "Asha Rao", Department: "Field Operations", TourPeriod: "Jan 2024"},
		TourSummary: model.TourSummary{TourDetails: []model.TourDetail{
			{FromDate: "2024-01-10", ToDate: "2024-01-12", ModeOfTravel: "Train", From: "Pune", To: "Mumbai"},
		}},
		Bills: []model.Bill{{Name: "Hotel", Amount: decimal.NewFromInt(500), AttachmentRef: "bills/missing.png"}},
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

func TestRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/wizard", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestWizardStepLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPut, "/api/wizard/steps/employee", `{"employee":{"employeeName":"Asha","department":"Ops","tourPeriod":"Jan"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("merge employee: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPut, "/api/wizard/steps/expenses",
		`{"travelDuration":{"departureDate":"2024-01-12","departureTime":"09:00","returnDate":"2024-01-10","returnTime":"09:00"}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted dates, got %d", w.Code)
	}

	w = s.do(t, http.MethodPut, "/api/wizard/steps/payments", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown step, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/wizard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var res service.WizardResponse
	if err := json.Unmarshal(decode(t, w).Data, &res); err != nil {
		t.Fatalf("decode wizard: %v", err)
	}
	if res.Document.Employee.EmployeeName != "Asha" {
		t.Fatalf("unexpected document %+v", res.Document.Employee)
	}

	w = s.do(t, http.MethodPost, "/api/wizard/submit", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for incomplete submission, got %d", w.Code)
	}
	if env := decode(t, w); len(env.Errors) == 0 {
		t.Fatalf("expected validation errors in response")
	}

	w = s.do(t, http.MethodDelete, "/api/wizard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: %d", w.Code)
	}
}

func TestWizardSubmitCreatesInvoice(t *testing.T) {
	s := newTestServer(t)
	doc := validDocument(t)

	steps := map[string]any{
		"employee":    map[string]any{"employee": doc.Employee},
		"tourSummary": map[string]any{"tourSummary": doc.TourSummary},
		"bills":       map[string]any{"bills": doc.Bills, "conveyances": []any{}},
		"expenses":    map[string]any{"expenses": []any{}, "travelDuration": doc.TravelDuration, "dailyAllowance": map[string]any{"onFor": "Audit"}},
	}
	for _, step := range []string{"employee", "tourSummary", "bills", "expenses"} {
		if w := s.do(t, http.MethodPut, "/api/wizard/steps/"+step, steps[step]); w.Code != http.StatusOK {
			t.Fatalf("merge %s: %d %s", step, w.Code, w.Body.String())
		}
	}

	w := s.do(t, http.MethodPost, "/api/wizard/submit", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	var summary service.InvoiceSummary
	if err := json.Unmarshal(decode(t, w).Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.GrandTotal != "1700.00" {
		t.Fatalf("unexpected total %s", summary.GrandTotal)
	}

	if w := s.do(t, http.MethodGet, "/api/invoices/"+summary.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("get invoice: %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/invoices?page=1&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var page struct {
		Total int64 `json:"total"`
		Limit int   `json:"limit"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 1 || page.Limit != 5 {
		t.Fatalf("unexpected page %+v", page)
	}

	w = s.do(t, http.MethodGet, "/api/invoices/"+summary.ID+"/pdf", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "%PDF-") {
		t.Fatalf("download: %d", w.Code)
	}
}

func TestValidateEndpointReturnsAllErrors(t *testing.T) {
	s := newTestServer(t)
	doc := validDocument(t)
	doc.Employee.EmployeeName = ""
	doc.TourSummary.TourDetails = nil

	w := s.do(t, http.MethodPost, "/api/invoices/validate", doc)
	if w.Code != http.StatusOK {
		t.Fatalf("validate: %d", w.Code)
	}
	var res struct {
		OK     bool     `json:"ok"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.OK || len(res.Errors) != 2 {
		t.Fatalf("expected two errors, got %+v", res)
	}
}

func TestRenderEndpointStreamsAndRemovesFile(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/invoices/render", validDocument(t))
	if w.Code != http.StatusOK {
		t.Fatalf("render: %d %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF-") {
		t.Fatalf("expected PDF body")
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}

	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp file removed, found %d entries", len(entries))
	}
}

func TestRenderEndpointRejectsInvalidDocument(t *testing.T) {
	s := newTestServer(t)
	doc := validDocument(t)
	doc.Totals.GrandTotal = decimal.NewFromInt(5)

	w := s.do(t, http.MethodPost, "/api/invoices/render", doc)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/invoices/render", `{"bills": "nope"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed payload, got %d", w.Code)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/api/invoices/0b0e3a62-5d0c-4a57-8a4a-1f5a7f0f9e11", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/invoices/not-an-id", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAuditLogsEndpoint(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodDelete, "/api/wizard", nil); w.Code != http.StatusOK {
		t.Fatalf("reset: %d", w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/audit-logs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit logs: %d", w.Code)
	}
	var page struct {
		Items []service.AuditLogResponse `json:"items"`
		Total int64                      `json:"total"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Items[0].Action != model.ActionResetWizard {
		t.Fatalf("unexpected audit page %+v", page)
	}
}

func TestStateLostOnErrorEnvelope(t *testing.T) {
	s := newTestServer(t)
	store := repository.NewSnapshotRepository(s.db)
	if err := store.Save(context.Background(), "invoice-wizard:"+owner, []byte(`{"employee":`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := s.do(t, http.MethodPut, "/api/wizard/steps/expenses",
		`{"travelDuration":{"departureDate":"2024-01-12","departureTime":"09:00","returnDate":"2024-01-10","returnTime":"09:00"}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if !decode(t, w).StateLost {
		t.Fatalf("expected state_lost on the error envelope: %s", w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/wizard", nil)
	var res service.WizardResponse
	if err := json.Unmarshal(decode(t, w).Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.StateLost {
		t.Fatalf("state lost reported twice")
	}
}
