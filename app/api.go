package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/consolidator/api"
	"github.com/kilianp07/consolidator/api/kpi"
	"github.com/kilianp07/consolidator/api/plans"
)

// Handler returns the HTTP API: the plan log, the latest plan of an EASC and
// the eco KPIs of a data center.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/plans", plans.NewLogHandler(s.runs))
	mux.Handle("/api/plans/latest", plans.NewLatestHandler(s.runs))
	mux.Handle("/api/datacenters/", kpi.NewKPIHandler(s.kpis, s.cfg.Metrics.EmissionFactor))
	return api.RequireToken(s.cfg.API.Token, mux)
}

func (s *Service) serveAPI(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("api server shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
