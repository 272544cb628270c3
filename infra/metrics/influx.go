package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/consolidator/core/logger"
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/metrics/eco"
	"github.com/kilianp07/consolidator/core/model"
	ilogger "github.com/kilianp07/consolidator/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving the points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes consolidation results to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      ilogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(timeout time.Duration, points ...*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordRun writes a consolidation_run point.
func (s *InfluxSink) RecordRun(r coremetrics.RunRecord) error {
	p := write.NewPointWithMeasurement("consolidation_run").
		AddTag("run_id", r.RunID).
		AddTag("status", runStatus(r)).
		AddTag("component", "consolidator").
		AddField("windows", r.Windows).
		AddField("solved", r.Solved).
		AddField("objective", round3(r.Objective)).
		AddField("brown_wh", round3(r.BrownEnergy)).
		AddField("carbon", round3(r.Carbon)).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		AddField("range_start", r.Range.Start.Unix()).
		AddField("range_end", r.Range.End.Unix())
	if r.Err != "" {
		p = p.AddField("error", r.Err)
	}
	p = p.SetTime(r.Time)
	return s.write(5*time.Second, p)
}

// RecordWindow writes a window_solve point.
func (s *InfluxSink) RecordWindow(w coremetrics.WindowRecord) error {
	p := write.NewPointWithMeasurement("window_solve").
		AddTag("run_id", w.RunID).
		AddTag("status", w.Status.String()).
		AddTag("window_start", w.Window.Start.UTC().Format(time.RFC3339)).
		AddField("slots", w.Window.Slots()).
		AddField("nodes", w.Nodes).
		AddField("solved", w.Solved).
		AddField("objective", round3(w.Objective)).
		AddField("duration_ms", round3(w.Duration.Seconds()*1000)).
		SetTime(w.Window.Start)
	return s.write(5*time.Second, p)
}

// RecordTrace writes one anytime_score point per improvement.
func (s *InfluxSink) RecordTrace(runID string, scores []model.Score) error {
	points := make([]*write.Point, 0, len(scores))
	for i, sc := range scores {
		points = append(points, write.NewPointWithMeasurement("anytime_score").
			AddTag("run_id", runID).
			AddField("value", round3(sc.Value)).
			AddField("rank", i).
			SetTime(sc.At))
	}
	return s.write(10*time.Second, points...)
}

// RecordPlannedPower writes one planned_power point per data center and slot.
func (s *InfluxSink) RecordPlannedPower(ps []coremetrics.PlannedPower) error {
	var points []*write.Point
	for _, p := range ps {
		for t, v := range p.Power {
			points = append(points, write.NewPointWithMeasurement("planned_power").
				AddTag("run_id", p.RunID).
				AddTag("data_center", p.DataCenter).
				AddField("power_w", round3(v)).
				SetTime(p.Range.SlotStart(t)))
		}
	}
	return s.write(10*time.Second, points...)
}

// RecordFallback writes a fallback_applied point.
func (s *InfluxSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	p := write.NewPointWithMeasurement("fallback_applied").
		AddTag("run_id", ev.RunID).
		AddTag("reused", strconv.FormatBool(ev.Reused)).
		AddTag("component", "fallback").
		AddField("fallback_reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(5*time.Second, p)
}

// RecordEco writes one eco_kpi point per data center and day.
func (s *InfluxSink) RecordEco(recs []eco.Record) error {
	points := make([]*write.Point, 0, len(recs))
	for _, r := range recs {
		points = append(points, write.NewPointWithMeasurement("eco_kpi").
			AddTag("data_center", r.DataCenter).
			AddField("renewable_wh", round3(r.RenewableWh)).
			AddField("brown_wh", round3(r.BrownWh)).
			AddField("renewable_share", round3(r.RenewableShare())).
			AddField("carbon", round3(r.Carbon)).
			SetTime(r.Date))
	}
	return s.write(10*time.Second, points...)
}

// RecordLiveMetric writes a live_metric point.
func (s *InfluxSink) RecordLiveMetric(l model.LiveMetric) error {
	p := write.NewPointWithMeasurement("live_metric").
		AddTag("easc", l.Easc).
		AddTag("activity", l.Activity).
		AddTag("data_center", l.DataCenter).
		AddTag("mode", l.Mode).
		AddField("power_w", round3(l.Power)).
		AddField("performance", round3(l.Performance)).
		SetTime(l.At)
	return s.write(5*time.Second, p)
}

func runStatus(r coremetrics.RunRecord) string {
	if r.Err != "" {
		return "error"
	}
	return r.Status.String()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
