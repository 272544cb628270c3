package kpi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	eco "github.com/kilianp07/consolidator/core/metrics/eco"
)

// NewKPIHandler exposes ecological KPIs via GET /api/datacenters/{dc}/kpis.
func NewKPIHandler(store eco.Store, factor float64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/api/datacenters/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] != "kpis" {
			http.NotFound(w, r)
			return
		}
		dc := parts[0]
		start, _ := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		end, _ := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if end.IsZero() {
			end = time.Now()
		}
		recs, err := store.Query(dc, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type out struct {
			Date           string  `json:"date"`
			RenewableWh    float64 `json:"renewable_wh"`
			BrownWh        float64 `json:"brown_wh"`
			RenewableShare float64 `json:"renewable_share"`
			Carbon         float64 `json:"carbon"`
			CO2Avoided     float64 `json:"co2_avoided"`
		}
		outSlice := make([]out, len(recs))
		for i, r := range recs {
			outSlice[i] = out{
				Date:           r.Date.Format("2006-01-02"),
				RenewableWh:    r.RenewableWh,
				BrownWh:        r.BrownWh,
				RenewableShare: r.RenewableShare(),
				Carbon:         r.Carbon,
				CO2Avoided:     r.CO2Avoided(factor),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(outSlice)
	})
}
