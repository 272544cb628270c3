package plans

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/core/planlog"
)

// NewLogHandler returns an HTTP handler exposing consolidation runs via
// GET /api/plans?start=&end=&easc=&limit=.
func NewLogHandler(store planlog.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := planlog.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.Easc = r.URL.Query().Get("easc")
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			q.Limit = n
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if q.Easc != "" {
			for i := range records {
				records[i].Plans = onlyEasc(records[i], q.Easc)
			}
		}
		writeJSON(w, records)
	})
}

// NewLatestHandler serves the plan an EASC should currently apply via
// GET /api/plans/latest?easc=.
func NewLatestHandler(store planlog.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		easc := r.URL.Query().Get("easc")
		if easc == "" {
			http.Error(w, "easc is required", http.StatusBadRequest)
			return
		}
		recs, err := store.Query(r.Context(), planlog.Query{Easc: easc})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for i := len(recs) - 1; i >= 0; i-- {
			if !recs[i].Usable() {
				continue
			}
			if plans := onlyEasc(recs[i], easc); len(plans) > 0 {
				writeJSON(w, plans[0])
				return
			}
		}
		http.NotFound(w, r)
	})
}

func onlyEasc(rec planlog.Record, easc string) []model.EascPlan {
	var out []model.EascPlan
	for _, p := range rec.Plans {
		if p.Easc == easc {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
