package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chitieu/internal/core"
	"chitieu/internal/notify"
	"chitieu/internal/query"
	"chitieu/internal/storage"
	"chitieu/internal/transfer"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := notify.NewHub()
	srv := NewServer(":0", store, hub, hub, nil, 5)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, srv
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, buf.Bytes()
}

func createExpense(t *testing.T, baseURL string, amount float64, category, description, date string) core.Record {
	t.Helper()

	body := fmt.Sprintf(`{"amount": %v, "category": %q, "description": %q, "date": %q}`,
		amount, category, description, date)
	resp, data := doJSON(t, http.MethodPost, baseURL+"/api/expenses", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create expense status = %d, body %s", resp.StatusCode, data)
	}

	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal created record: %v", err)
	}
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, _ := doJSON(t, http.MethodGet, ts.URL+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestRecordCRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	rec := createExpense(t, ts.URL, 50000, "Ăn uống", "Cơm trưa", "2024-03-15")
	if rec.ID == "" {
		t.Fatal("created record has no ID")
	}

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/api/expenses/"+rec.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got core.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Description != "Cơm trưa" || got.Amount != 50000 {
		t.Errorf("got = %+v", got)
	}

	resp, data = doJSON(t, http.MethodPut, ts.URL+"/api/expenses/"+rec.ID, `{"amount": 60000}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, body %s", resp.StatusCode, data)
	}
	var updated core.Record
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if updated.Amount != 60000 {
		t.Errorf("updated amount = %v, want 60000", updated.Amount)
	}
	if updated.Category != rec.Category {
		t.Errorf("category changed by partial update: %q", updated.Category)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/expenses/"+rec.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/expenses/"+rec.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero amount", `{"amount": 0, "category": "Ăn uống", "description": "x", "date": "2024-03-15"}`, http.StatusUnprocessableEntity},
		{"missing date", `{"amount": 100, "category": "Ăn uống", "description": "x"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"amount": 100, "category": "Ăn uống", "description": "x", "date": "15/03/2024"}`, http.StatusUnprocessableEntity},
		{"blank category", `{"amount": 100, "category": " ", "description": "x", "date": "2024-03-15"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"amount": `, http.StatusBadRequest},
		{"unknown field", `{"amount": 100, "extra": true}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/expenses", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestUnknownCollection(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/widgets", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListPagination(t *testing.T) {
	ts, _ := newTestServer(t)

	for i := 1; i <= 7; i++ {
		createExpense(t, ts.URL, float64(i*1000), "Ăn uống", fmt.Sprintf("Bữa %d", i),
			fmt.Sprintf("2024-03-%02d", i))
	}

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/api/expenses?page=1&limit=5", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var page query.Page
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if page.Total != 7 {
		t.Errorf("Total = %d, want 7", page.Total)
	}
	if len(page.Items) != 5 {
		t.Errorf("len(Items) = %d, want 5", len(page.Items))
	}
	if page.Items[0].Description != "Bữa 7" {
		t.Errorf("first item = %q, want newest date first", page.Items[0].Description)
	}

	_, data = doJSON(t, http.MethodGet, ts.URL+"/api/expenses?page=2&limit=5", "")
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page 2: %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("page 2 len(Items) = %d, want 2", len(page.Items))
	}
}

func TestListFilters(t *testing.T) {
	ts, _ := newTestServer(t)

	createExpense(t, ts.URL, 1000, "Ăn uống", "Cơm trưa", "2024-03-10")
	createExpense(t, ts.URL, 2000, "Di chuyển", "Grab đi làm", "2024-03-15")
	createExpense(t, ts.URL, 3000, "Ăn uống", "Cơm tối", "2024-04-01")

	var page query.Page

	_, data := doJSON(t, http.MethodGet, ts.URL+"/api/expenses?category=Ăn+uống", "")
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("category filter Total = %d, want 2", page.Total)
	}

	_, data = doJSON(t, http.MethodGet, ts.URL+"/api/expenses?from=2024-03-01&to=2024-03-31", "")
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("date filter Total = %d, want 2", page.Total)
	}

	_, data = doJSON(t, http.MethodGet, ts.URL+"/api/expenses?search=cơm", "")
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("search Total = %d, want 2", page.Total)
	}

	_, data = doJSON(t, http.MethodGet, ts.URL+"/api/expenses?category=all", "")
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if page.Total != 3 {
		t.Errorf(`category=all Total = %d, want 3`, page.Total)
	}
}

func TestRecentAndCategories(t *testing.T) {
	ts, _ := newTestServer(t)

	createExpense(t, ts.URL, 1000, "Ăn uống", "Một", "2024-03-10")
	createExpense(t, ts.URL, 2000, "Ăn uống", "Hai", "2024-01-01")

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/api/expenses/recent?limit=1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recent status = %d", resp.StatusCode)
	}
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(records))
	}
	if records[0].Description != "Hai" {
		t.Errorf("recent[0] = %q, want the last inserted record", records[0].Description)
	}

	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/incomes/categories", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("categories status = %d", resp.StatusCode)
	}
	var categories []string
	if err := json.Unmarshal(data, &categories); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(categories) == 0 || categories[0] != "Lương" {
		t.Errorf("income categories = %v", categories)
	}
}

func TestDeleteAllAndEmptyConflict(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/api/expenses", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("delete-all on empty status = %d, want 409", resp.StatusCode)
	}

	createExpense(t, ts.URL, 1000, "Ăn uống", "Một", "2024-03-10")
	createExpense(t, ts.URL, 2000, "Ăn uống", "Hai", "2024-03-11")

	resp, data := doJSON(t, http.MethodDelete, ts.URL+"/api/expenses", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete-all status = %d", resp.StatusCode)
	}
	var result map[string]int64
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result["deleted"] != 2 {
		t.Errorf("deleted = %d, want 2", result["deleted"])
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/expenses/export", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("export on empty status = %d, want 409", resp.StatusCode)
	}

	createExpense(t, ts.URL, 50000, "Ăn uống", "Cơm trưa", "2024-03-15")

	resp, exported := doJSON(t, http.MethodGet, ts.URL+"/api/expenses/export", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	resp, data := doJSON(t, http.MethodDelete, ts.URL+"/api/expenses", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete-all status = %d, body %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, http.MethodPost, ts.URL+"/api/expenses/import", string(exported))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d, body %s", resp.StatusCode, data)
	}
	var report transfer.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Success != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want 1 success", report)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/expenses/import", `{"incomes": []}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("import wrong key status = %d, want 400", resp.StatusCode)
	}
}

func TestStatsEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	createExpense(t, ts.URL, 200000, "Ăn uống", "Ăn hàng", "2024-03-10")
	createExpense(t, ts.URL, 50000, "Di chuyển", "Grab", "2024-03-11")

	body := `{"amount": 1000000, "category": "Lương", "description": "Lương", "date": "2024-03-01"}`
	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/incomes", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create income status = %d, body %s", resp.StatusCode, data)
	}

	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/stats/summary", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", resp.StatusCode)
	}
	var summary core.FinancialStats
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.TotalExpense != 250000 || summary.TotalIncome != 1000000 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.SavingsRate != 75 {
		t.Errorf("SavingsRate = %v, want 75", summary.SavingsRate)
	}

	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/stats/categories?kind=expense", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("categories status = %d", resp.StatusCode)
	}
	var catStats []core.CategoryStats
	if err := json.Unmarshal(data, &catStats); err != nil {
		t.Fatalf("unmarshal category stats: %v", err)
	}
	if len(catStats) != 2 || catStats[0].Category != "Ăn uống" {
		t.Errorf("category stats = %+v", catStats)
	}

	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/stats/categories?kind=nonsense", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("bad kind status = %d, want 404", resp.StatusCode)
	}

	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/stats/trends?months=3", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trends status = %d", resp.StatusCode)
	}
	var trends []core.MonthlyStats
	if err := json.Unmarshal(data, &trends); err != nil {
		t.Fatalf("unmarshal trends: %v", err)
	}
	if len(trends) != 3 {
		t.Errorf("len(trends) = %d, want 3", len(trends))
	}
}

func TestStatsCacheInvalidation(t *testing.T) {
	ts, _ := newTestServer(t)

	createExpense(t, ts.URL, 100000, "Ăn uống", "Một", "2024-03-10")

	_, data := doJSON(t, http.MethodGet, ts.URL+"/api/stats/summary", "")
	var before core.FinancialStats
	if err := json.Unmarshal(data, &before); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if before.TotalExpense != 100000 {
		t.Fatalf("TotalExpense = %v, want 100000", before.TotalExpense)
	}

	createExpense(t, ts.URL, 50000, "Ăn uống", "Hai", "2024-03-11")

	// Invalidation rides the event hub, so give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, data = doJSON(t, http.MethodGet, ts.URL+"/api/stats/summary", "")
		var after core.FinancialStats
		if err := json.Unmarshal(data, &after); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if after.TotalExpense == 150000 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("summary stuck at %v after write", after.TotalExpense)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestParseEndpointFallback(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/expenses/parse", `{"input": "cơm trưa 50k"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("parse status = %d, body %s", resp.StatusCode, data)
	}

	var parsed struct {
		Amount     float64 `json:"amount"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed.Amount != 50000 {
		t.Errorf("Amount = %v, want 50000", parsed.Amount)
	}
	if parsed.Category != "Ăn uống" {
		t.Errorf("Category = %q, want Ăn uống", parsed.Category)
	}
	if parsed.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want fallback 0.3", parsed.Confidence)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/expenses/parse", `{"input": "  "}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("blank input status = %d, want 422", resp.StatusCode)
	}
}
