package plans

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/consolidator/api"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/planlog"
)

func seed(t *testing.T) planlog.Store {
	t.Helper()
	store := planlog.NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	recs := []planlog.Record{
		{RunID: "r1", Timestamp: base, Plans: []model.EascPlan{{Easc: "e1"}, {Easc: "e2"}}},
		{RunID: "r2", Timestamp: base.Add(time.Hour), Plans: []model.EascPlan{{Easc: "e1", Range: model.TimeRange{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour), Slot: time.Hour}}}},
		{RunID: "r3", Timestamp: base.Add(2 * time.Hour), Error: "merge failed", Fallback: true, Plans: []model.EascPlan{{Easc: "e1"}}},
	}
	for _, r := range recs {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return store
}

func TestLogHandler_AuthAndFilters(t *testing.T) {
	h := api.RequireToken("tok", NewLogHandler(seed(t)))

	req := httptest.NewRequest("GET", "/api/plans?easc=e2", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []planlog.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].RunID != "r1" || len(out[0].Plans) != 1 {
		t.Fatalf("unexpected records %+v", out)
	}

	req = httptest.NewRequest("GET", "/api/plans?limit=2", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	out = nil
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 || out[1].RunID != "r3" {
		t.Fatalf("limit not applied %+v", out)
	}

	// unauthorized
	req = httptest.NewRequest("GET", "/api/plans", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}

	req = httptest.NewRequest("GET", "/api/plans?limit=x", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestLatestHandlerSkipsFallbacks(t *testing.T) {
	h := NewLatestHandler(seed(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/plans/latest?easc=e1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var plan model.EascPlan
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if plan.Range.Slot != time.Hour {
		t.Fatalf("expected the plan of r2, got %+v", plan)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/plans/latest?easc=e9", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/plans/latest", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}
