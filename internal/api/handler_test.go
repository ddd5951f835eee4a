package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/allaspectsdev/budgetd/internal/currency"
	"github.com/allaspectsdev/budgetd/internal/store"
	"github.com/allaspectsdev/budgetd/internal/testutil"
)

// stubProvider returns a fixed rate or error and counts calls.
type stubProvider struct {
	rate  *float64
	err   error
	calls atomic.Int32
}

func (s *stubProvider) Rate(_ context.Context, _, _ string, _ time.Time) (*float64, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.rate, nil
}

func newTestServer(t *testing.T, provider currency.RateProvider) (http.Handler, *store.Store) {
	t.Helper()
	st := testutil.NewTestStore(t)
	conv := currency.NewConverter(provider)
	handler := NewBudgetHandler(st, conv, zerolog.Nop())
	srv := NewServer(handler, "127.0.0.1:0", 0, 0, 0)
	return srv.Router(), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func validBudgetBody() map[string]interface{} {
	return map[string]interface{}{
		"projectId":                      1,
		"projectName":                    "Initial Project",
		"year":                           2023,
		"currency":                       "USD",
		"initialBudgetLocal":             500000,
		"budgetUsd":                      500000,
		"initialScheduleEstimateMonths":  12,
		"adjustedScheduleEstimateMonths": 12,
		"contingencyRate":                0.1,
		"escalationRate":                 0.05,
		"finalBudgetUsd":                 550000,
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("body: got %v", got)
	}
}

func TestOK(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodGet, "/api/ok", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var got map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !got["ok"] {
		t.Errorf("body: got %v", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body: got %q, want empty", rec.Body.String())
	}
}

func TestCreate(t *testing.T) {
	h, st := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/", validBudgetBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var got store.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ProjectID != 1 || got.ProjectName != "Initial Project" || got.FinalBudgetUSD != 550000 {
		t.Errorf("created record: got %+v", got)
	}

	rows, err := st.FindProjectByID(1)
	if err != nil || len(rows) != 1 {
		t.Fatalf("stored rows: %v, err %v", rows, err)
	}
}

func TestCreate_ValidationError(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	body := validBudgetBody()
	delete(body, "year")
	delete(body, "currency")

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := "Missing required fields: year, currency"
	if got["error"] != want {
		t.Errorf("error: got %q, want %q", got["error"], want)
	}
}

func TestCreate_NonNumericProjectID(t *testing.T) {
	// A wrong-typed field is a validation failure with the field's own
	// message, not a decode failure.
	h, _ := newTestServer(t, &stubProvider{})

	body := validBudgetBody()
	body["projectId"] = "not-a-number"

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := "Invalid projectId: must be a positive number"
	if got["error"] != want {
		t.Errorf("error: got %q, want %q", got["error"], want)
	}
}

func TestCreate_InvalidJSON(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/project/budget/", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got["error"] != "invalid request body" {
		t.Errorf("error: got %q", got["error"])
	}
}

func TestGet(t *testing.T) {
	h, st := newTestServer(t, &stubProvider{})
	seeded := testutil.SeedProject(t, st)

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/project/budget/%d", seeded.ProjectID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var got store.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got != *seeded {
		t.Errorf("record: got %+v, want %+v", got, *seeded)
	}
}

func TestGet_NotFound(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodGet, "/api/project/budget/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body: got %q, want empty", rec.Body.String())
	}
}

func TestGet_NonNumericID(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodGet, "/api/project/budget/abc", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

func TestUpdate(t *testing.T) {
	h, st := newTestServer(t, &stubProvider{})
	testutil.SeedProject(t, st)

	body := validBudgetBody()
	body["projectId"] = 777 // path id must win
	body["projectName"] = "Renamed Project"
	body["finalBudgetUsd"] = 600000

	rec := doJSON(t, h, http.MethodPut, "/api/project/budget/1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var got store.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ProjectID != 1 {
		t.Errorf("ProjectID: got %d, want 1", got.ProjectID)
	}
	if got.ProjectName != "Renamed Project" || got.FinalBudgetUSD != 600000 {
		t.Errorf("record: got %+v", got)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodPut, "/api/project/budget/999", validBudgetBody())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body: got %q, want empty", rec.Body.String())
	}
}

func TestUpdate_ValidationError(t *testing.T) {
	h, st := newTestServer(t, &stubProvider{})
	testutil.SeedProject(t, st)

	body := validBudgetBody()
	body["projectName"] = "  "

	rec := doJSON(t, h, http.MethodPut, "/api/project/budget/1", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	h, st := newTestServer(t, &stubProvider{})
	testutil.SeedProject(t, st)

	rec := doJSON(t, h, http.MethodDelete, "/api/project/budget/1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/project/budget/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after delete: got %d, want 404", rec.Code)
	}
}

func TestDelete_NotFound(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodDelete, "/api/project/budget/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
}

type currencyResponse struct {
	Status bool              `json:"status"`
	Data   []json.RawMessage `json:"data"`
}

func TestListWithCurrency_TTD(t *testing.T) {
	rate := 6.8
	provider := &stubProvider{rate: &rate}
	h, st := newTestServer(t, provider)
	testutil.SeedProject(t, st)

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/currency", map[string]interface{}{
		"year":        2023,
		"projectName": "Initial Project",
		"currency":    "TTD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp currencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp.Status || len(resp.Data) != 1 {
		t.Fatalf("response: %+v", resp)
	}

	var row struct {
		FinalBudgetTTD *float64 `json:"finalBudgetTtd"`
	}
	if err := json.Unmarshal(resp.Data[0], &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if row.FinalBudgetTTD == nil {
		t.Fatal("finalBudgetTtd is null, want converted value")
	}
	want := 550000 * 6.8
	if *row.FinalBudgetTTD != want {
		t.Errorf("finalBudgetTtd: got %v, want %v", *row.FinalBudgetTTD, want)
	}
	if provider.calls.Load() != 1 {
		t.Errorf("provider calls: got %d, want 1", provider.calls.Load())
	}
}

func TestListWithCurrency_TTDSource(t *testing.T) {
	// A record already in TTD must not hit the rate provider.
	provider := &stubProvider{err: fmt.Errorf("provider must not be called")}
	h, st := newTestServer(t, provider)

	p := *testutil.SeedProject(t, st)
	p.ProjectID = 2
	p.Currency = "TTD"
	if err := st.InsertProject(&p); err != nil {
		t.Fatalf("InsertProject: %v", err)
	}
	if err := st.DeleteProject(1); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/currency", map[string]interface{}{
		"year":        2023,
		"projectName": "Initial Project",
		"currency":    "TTD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp currencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	var row struct {
		FinalBudgetUSD float64  `json:"finalBudgetUsd"`
		FinalBudgetTTD *float64 `json:"finalBudgetTtd"`
	}
	if err := json.Unmarshal(resp.Data[0], &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if row.FinalBudgetTTD == nil || *row.FinalBudgetTTD != row.FinalBudgetUSD {
		t.Errorf("finalBudgetTtd: got %v, want %v", row.FinalBudgetTTD, row.FinalBudgetUSD)
	}
	if provider.calls.Load() != 0 {
		t.Errorf("provider calls: got %d, want 0", provider.calls.Load())
	}
}

func TestListWithCurrency_ProviderFailureIsolated(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("upstream down")}
	h, st := newTestServer(t, provider)
	testutil.SeedProject(t, st)

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/currency", map[string]interface{}{
		"year":        2023,
		"projectName": "Initial Project",
		"currency":    "TTD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp currencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	var row map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data[0], &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	raw, present := row["finalBudgetTtd"]
	if !present {
		t.Fatal("finalBudgetTtd key missing from failed-conversion row")
	}
	if string(raw) != "null" {
		t.Errorf("finalBudgetTtd: got %s, want null", raw)
	}
}

func TestListWithCurrency_MissingRate(t *testing.T) {
	provider := &stubProvider{rate: nil}
	h, st := newTestServer(t, provider)
	testutil.SeedProject(t, st)

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/currency", map[string]interface{}{
		"year":        2023,
		"projectName": "Initial Project",
		"currency":    "TTD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var resp currencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	var row struct {
		FinalBudgetTTD *float64 `json:"finalBudgetTtd"`
	}
	if err := json.Unmarshal(resp.Data[0], &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if row.FinalBudgetTTD != nil {
		t.Errorf("finalBudgetTtd: got %v, want null", *row.FinalBudgetTTD)
	}
}

func TestListWithCurrency_PreservesOrder(t *testing.T) {
	rate := 2.0
	h, st := newTestServer(t, &stubProvider{rate: &rate})

	base := testutil.SeedProject(t, st)
	for i := int64(2); i <= 5; i++ {
		p := *base
		p.ProjectID = i
		p.FinalBudgetUSD = float64(i) * 1000
		if err := st.InsertProject(&p); err != nil {
			t.Fatalf("InsertProject %d: %v", i, err)
		}
	}

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/currency", map[string]interface{}{
		"year":        2023,
		"projectName": "Initial Project",
		"currency":    "TTD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var resp currencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Data) != 5 {
		t.Fatalf("rows: got %d, want 5", len(resp.Data))
	}
	for i, raw := range resp.Data {
		var row store.Project
		if err := json.Unmarshal(raw, &row); err != nil {
			t.Fatalf("decode row %d: %v", i, err)
		}
		if row.ProjectID != int64(i+1) {
			t.Errorf("row %d: got projectId %d, want %d", i, row.ProjectID, i+1)
		}
	}
}

func TestListWithCurrency_NonTTDTarget(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("provider must not be called")}
	h, st := newTestServer(t, provider)
	testutil.SeedProject(t, st)

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/currency", map[string]interface{}{
		"year":        2023,
		"projectName": "Initial Project",
		"currency":    "EUR",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var resp currencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	var row map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data[0], &row); err != nil {
		t.Fatalf("decode row: %v", err)
	}
	if _, present := row["finalBudgetTtd"]; present {
		t.Error("finalBudgetTtd present for non-TTD target")
	}
	if provider.calls.Load() != 0 {
		t.Errorf("provider calls: got %d, want 0", provider.calls.Load())
	}
}

func TestListWithCurrency_NoMatch(t *testing.T) {
	h, _ := newTestServer(t, &stubProvider{})

	rec := doJSON(t, h, http.MethodPost, "/api/project/budget/currency", map[string]interface{}{
		"year":        2023,
		"projectName": "Nothing Here",
		"currency":    "TTD",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body: got %q, want empty", rec.Body.String())
	}
}
