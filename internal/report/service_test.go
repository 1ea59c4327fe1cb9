package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/atmx/sales-engine/internal/analysis"
	"github.com/atmx/sales-engine/internal/model"
	"github.com/atmx/sales-engine/internal/report"
	"github.com/atmx/sales-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []report.Event
}

func (r *recorder) Publish(_ context.Context, ev report.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func routes(svc *report.Service) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/v1/reports", svc.CreateReport)
	r.Get("/api/v1/reports/current", svc.CurrentReport)
	r.Get("/api/v1/reports/current/sellers/{sellerID}", svc.SellerRank)
	r.Get("/api/v1/reports/current/export", svc.ExportReport)
	r.Put("/api/v1/dataset", svc.ImportDataset)
	return r
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*store.MemoryStore, *recorder, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	rec := &recorder{}
	svc := report.NewService(ms, analysis.DefaultOptions(), rec)
	return ms, rec, routes(svc)
}

// twoSellers: seller_1 profit 10, seller_2 profit 20.
func twoSellers() *model.Dataset {
	return &model.Dataset{
		Products: []model.Product{
			{SKU: "SKU_001", PurchasePrice: d(5)},
			{SKU: "SKU_002", PurchasePrice: d(10)},
		},
		Sellers: []model.Seller{
			{ID: "seller_1", FirstName: "Ivan", LastName: "Petrov"},
			{ID: "seller_2", FirstName: "Maria", LastName: "Sidorova"},
		},
		PurchaseRecords: []model.PurchaseRecord{
			{ReceiptID: "r1", SellerID: "seller_1", TotalAmount: d(20), Items: []model.PurchaseItem{
				{SKU: "SKU_001", Quantity: 2, SalePrice: d(10)},
			}},
			{ReceiptID: "r2", SellerID: "seller_2", TotalAmount: d(40), Items: []model.PurchaseItem{
				{SKU: "SKU_002", Quantity: 2, SalePrice: d(20)},
			}},
		},
	}
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) model.Report {
	t.Helper()
	var rep model.Report
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v (%s)", err, w.Body.String())
	}
	return rep
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return body.Error
}

// --- POST /reports ---

func TestCreateReport_SingleSale(t *testing.T) {
	ms, rec, router := newTestEnv(t)

	ds := twoSellers()
	ds.Sellers = ds.Sellers[:1]
	ds.PurchaseRecords = ds.PurchaseRecords[:1]

	w := do(t, router, "POST", "/api/v1/reports", ds)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	rep := decodeReport(t, w)
	if rep.ID == "" || rep.GeneratedAt.IsZero() {
		t.Errorf("expected report envelope, got id=%q generated_at=%v", rep.ID, rep.GeneratedAt)
	}
	if len(rep.Sellers) != 1 {
		t.Fatalf("expected 1 seller, got %d", len(rep.Sellers))
	}
	s := rep.Sellers[0]
	if s.Name != "Ivan Petrov" || !s.Revenue.Equal(d(20)) || !s.Profit.Equal(d(10)) || !s.Bonus.Equal(d(1.5)) {
		t.Errorf("unexpected seller report: %+v", s)
	}
	if len(s.TopProducts) != 1 || s.TopProducts[0] != (model.ProductQuantity{SKU: "SKU_001", Quantity: 2}) {
		t.Errorf("unexpected top products: %+v", s.TopProducts)
	}

	// Inline reports never touch the store.
	if sellers, _ := ms.ListSellers(context.Background()); len(sellers) != 0 {
		t.Errorf("store should stay empty, has %d sellers", len(sellers))
	}
	if got := rec.types(); len(got) != 1 || got[0] != report.EventReportGenerated {
		t.Errorf("expected one report_generated event, got %v", got)
	}
}

func TestCreateReport_YAMLBody(t *testing.T) {
	_, _, router := newTestEnv(t)

	body := `
sellers:
  - id: s1
    first_name: A
    last_name: B
products:
  - sku: X
    purchase_price: 1
purchase_records:
  - seller_id: s1
    total_amount: 3
    items:
      - sku: X
        quantity: 1
        sale_price: 3
        discount: 0
`
	req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/yaml")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if rep := decodeReport(t, w); !rep.Sellers[0].Profit.Equal(d(2)) {
		t.Errorf("expected profit 2, got %s", rep.Sellers[0].Profit)
	}
}

func TestCreateReport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   func() *model.Dataset
		status int
		substr string
	}{
		{"no sellers", func() *model.Dataset { return &model.Dataset{} }, http.StatusUnprocessableEntity, "at least one seller"},
		{"unknown seller", func() *model.Dataset {
			ds := twoSellers()
			ds.PurchaseRecords[1].SellerID = "ghost"
			return ds
		}, http.StatusUnprocessableEntity, "unknown seller"},
		{"unknown product", func() *model.Dataset {
			ds := twoSellers()
			ds.PurchaseRecords[0].Items[0].SKU = "missing"
			return ds
		}, http.StatusUnprocessableEntity, "unknown product"},
		{"duplicate seller", func() *model.Dataset {
			ds := twoSellers()
			ds.Sellers[1].ID = "seller_1"
			return ds
		}, http.StatusUnprocessableEntity, "duplicate key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rec, router := newTestEnv(t)
			w := do(t, router, "POST", "/api/v1/reports", tt.body())
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if msg := errorMessage(t, w); !strings.Contains(msg, tt.substr) {
				t.Errorf("expected error containing %q, got %q", tt.substr, msg)
			}
			if len(rec.types()) != 0 {
				t.Errorf("failed runs must not publish, got %v", rec.types())
			}
		})
	}
}

func TestCreateReport_MalformedBody(t *testing.T) {
	_, _, router := newTestEnv(t)

	for _, body := range []string{`{"sellers": [`, `{"sellers": [], "shops": []}`} {
		req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}
}

// --- Stored dataset ---

func TestCurrentReport_NoDataset(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "GET", "/api/v1/reports/current", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestImportThenCurrentReport(t *testing.T) {
	_, rec, router := newTestEnv(t)

	w := do(t, router, "PUT", "/api/v1/dataset", twoSellers())
	if w.Code != http.StatusOK {
		t.Fatalf("import: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var imported report.ImportResponse
	json.Unmarshal(w.Body.Bytes(), &imported)
	if imported.Sellers != 2 || imported.PurchaseRecords != 2 || imported.Products != 2 {
		t.Errorf("unexpected import summary: %+v", imported)
	}

	w = do(t, router, "GET", "/api/v1/reports/current", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("current: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	rep := decodeReport(t, w)
	if len(rep.Sellers) != 2 || rep.Sellers[0].SellerID != "seller_2" {
		t.Fatalf("expected seller_2 to lead, got %+v", rep.Sellers)
	}
	// Rank 1 is on the podium even when it is also the last place.
	if !rep.Sellers[0].Bonus.Equal(d(3)) || !rep.Sellers[1].Bonus.Equal(d(1)) {
		t.Errorf("unexpected bonuses: %s, %s", rep.Sellers[0].Bonus, rep.Sellers[1].Bonus)
	}

	want := []string{report.EventDatasetImported, report.EventReportGenerated}
	got := rec.types()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected events %v, got %v", want, got)
	}
}

func TestCurrentReport_FreshIDPerRun(t *testing.T) {
	ms, _, router := newTestEnv(t)
	ms.ImportDataset(context.Background(), twoSellers())

	a := decodeReport(t, do(t, router, "GET", "/api/v1/reports/current", nil))
	b := decodeReport(t, do(t, router, "GET", "/api/v1/reports/current", nil))
	if a.ID == b.ID {
		t.Errorf("each run should get its own report id")
	}
	ja, _ := json.Marshal(a.Sellers)
	jb, _ := json.Marshal(b.Sellers)
	if !bytes.Equal(ja, jb) {
		t.Errorf("identical input must give identical sellers:\n%s\n%s", ja, jb)
	}
}

func TestImportDataset_ValidationFails(t *testing.T) {
	ms, rec, router := newTestEnv(t)
	ms.ImportDataset(context.Background(), twoSellers())

	bad := twoSellers()
	bad.PurchaseRecords[0].Items[0].Discount = d(150)
	bad.PurchaseRecords[1].Items[0].Quantity = 0

	w := do(t, router, "PUT", "/api/v1/dataset", bad)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Error  string `json:"error"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %+v", body)
	}
	if body.Fields[0].Field != "purchase_records[0].items[0].discount" {
		t.Errorf("unexpected field %q", body.Fields[0].Field)
	}

	// Previous snapshot untouched.
	records, _ := ms.ListPurchaseRecords(context.Background())
	if !records[0].Items[0].Discount.IsZero() {
		t.Errorf("store should keep the previous dataset")
	}
	if len(rec.types()) != 0 {
		t.Errorf("rejected imports must not publish, got %v", rec.types())
	}
}

func TestImportDataset_EmptySellers(t *testing.T) {
	_, _, router := newTestEnv(t)
	w := do(t, router, "PUT", "/api/v1/dataset", &model.Dataset{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestImportDataset_DuplicateKeys(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ds *model.Dataset)
	}{
		{"duplicate seller id", func(ds *model.Dataset) { ds.Sellers[1].ID = ds.Sellers[0].ID }},
		{"duplicate sku", func(ds *model.Dataset) { ds.Products[1].SKU = ds.Products[0].SKU }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, rec, router := newTestEnv(t)
			if err := ms.ImportDataset(context.Background(), twoSellers()); err != nil {
				t.Fatal(err)
			}

			bad := twoSellers()
			tt.mutate(bad)
			w := do(t, router, "PUT", "/api/v1/dataset", bad)
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
			}
			if msg := errorMessage(t, w); !strings.Contains(msg, "duplicate key") {
				t.Errorf("expected duplicate key error, got %q", msg)
			}

			// Previous snapshot untouched.
			ds, _ := ms.Snapshot(context.Background())
			if len(ds.Sellers) != 2 || ds.Sellers[1].ID != "seller_2" || ds.Products[1].SKU != "SKU_002" {
				t.Errorf("store should keep the previous dataset, got %+v", ds)
			}
			if len(rec.types()) != 0 {
				t.Errorf("rejected imports must not publish, got %v", rec.types())
			}
		})
	}
}

// --- Seller rank ---

func TestSellerRank(t *testing.T) {
	ms, _, router := newTestEnv(t)
	ms.ImportDataset(context.Background(), twoSellers())

	w := do(t, router, "GET", "/api/v1/reports/current/sellers/seller_1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp report.SellerRankResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Rank != 2 || resp.Total != 2 || resp.Seller.SellerID != "seller_1" {
		t.Errorf("unexpected rank response: %+v", resp)
	}

	w = do(t, router, "GET", "/api/v1/reports/current/sellers/nobody", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown seller, got %d", w.Code)
	}
}

// --- Export ---

func TestExportReport_CSV(t *testing.T) {
	ms, _, router := newTestEnv(t)
	ms.ImportDataset(context.Background(), twoSellers())

	w := do(t, router, "GET", "/api/v1/reports/current/export?format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, ".csv") {
		t.Errorf("unexpected content disposition %q", cd)
	}

	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	want := []string{"1", "seller_2", "Maria Sidorova", "40.00", "20.00", "1", "3.00", "SKU_002:2"}
	for i := range want {
		if rows[1][i] != want[i] {
			t.Errorf("column %s: expected %q, got %q", rows[0][i], want[i], rows[1][i])
		}
	}
}

func TestExportReport_XLSX(t *testing.T) {
	ms, _, router := newTestEnv(t)
	ms.ImportDataset(context.Background(), twoSellers())

	w := do(t, router, "GET", "/api/v1/reports/current/export?format=xlsx", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Sellers")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 || rows[1][1] != "seller_2" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

func TestExportReport_BadFormat(t *testing.T) {
	ms, _, router := newTestEnv(t)
	ms.ImportDataset(context.Background(), twoSellers())

	w := do(t, router, "GET", "/api/v1/reports/current/export?format=pdf", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// --- Store failures ---

type brokenStore struct {
	*store.MemoryStore
}

func (brokenStore) Snapshot(context.Context) (*model.Dataset, error) {
	return nil, errors.New("connection refused")
}

func TestCurrentReport_StoreFailure(t *testing.T) {
	svc := report.NewService(brokenStore{store.NewMemoryStore()}, analysis.DefaultOptions(), nil)
	w := do(t, routes(svc), "GET", "/api/v1/reports/current", nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if msg := errorMessage(t, w); strings.Contains(msg, "connection refused") {
		t.Errorf("internal errors must not leak, got %q", msg)
	}
}

// --- Generate ---

func TestGenerate_MissingStrategy(t *testing.T) {
	svc := report.NewService(store.NewMemoryStore(), analysis.Options{}, nil)
	_, err := svc.Generate(context.Background(), twoSellers(), report.SourceRequest)
	if !errors.Is(err, analysis.ErrMissingStrategy) {
		t.Errorf("expected ErrMissingStrategy, got %v", err)
	}
}

func TestGenerate_CustomTiers(t *testing.T) {
	opts := analysis.Options{
		Revenue: analysis.SimpleRevenue,
		Bonus:   analysis.ProfitTiers{Leader: d(0.5), Podium: d(0.2), Rest: d(0.1)},
	}
	svc := report.NewService(store.NewMemoryStore(), opts, nil)

	rep, err := svc.Generate(context.Background(), twoSellers(), report.SourceRequest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Sellers[0].Bonus.Equal(d(10)) || !rep.Sellers[1].Bonus.Equal(d(2)) {
		t.Errorf("expected bonuses 10 and 2, got %s and %s", rep.Sellers[0].Bonus, rep.Sellers[1].Bonus)
	}
}
