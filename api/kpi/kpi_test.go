package kpi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eco "github.com/kilianp07/consolidator/core/metrics/eco"
)

func TestKPIHandler(t *testing.T) {
	store := eco.NewMemoryStore()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Add(eco.Record{DataCenter: "dc1", Date: day.Add(3 * time.Hour), RenewableWh: 30, BrownWh: 10, Carbon: 4}))
	require.NoError(t, store.Add(eco.Record{DataCenter: "dc1", Date: day.Add(27 * time.Hour), RenewableWh: 5}))

	h := NewKPIHandler(store, 0.5)
	req := httptest.NewRequest("GET", "/api/datacenters/dc1/kpis?start=2024-03-01T00:00:00Z&end=2024-03-01T23:00:00Z", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "2024-03-01", out[0]["date"])
	assert.InDelta(t, 0.75, out[0]["renewable_share"], 1e-9)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/datacenters/dc1", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/datacenters/dc1/kpis", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
