package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/consolidator/config"
	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/model"
	"github.com/kilianp07/consolidator/infra/logger"
	infmqtt "github.com/kilianp07/consolidator/infra/mqtt"
)

// Manager collects live metrics from EASCs either via push or polling and
// keeps the latest value per activity and data center.
type Manager struct {
	cfg  config.TelemetryConfig
	cli  paho.Client
	sink coremetrics.LiveMetricRecorder
	log  logger.Logger
	now  func() time.Time

	mu   sync.RWMutex
	live map[liveKey]model.LiveMetric

	respCh chan telemetryMessage

	pollReq     prometheus.Counter
	pollResp    prometheus.Counter
	pollTimeout prometheus.Counter
	lastCollect prometheus.Gauge
	latency     prometheus.Histogram
}

type liveKey struct {
	easc, activity, dataCenter string
}

type telemetryMessage struct {
	Easc    string
	Payload []byte
	Arrived time.Time
}

// metricsPayload is what an EASC publishes. Metrics without an EASC inherit
// the payload one, and the payload falls back to the topic.
type metricsPayload struct {
	Easc    string             `json:"easc"`
	TS      *int64             `json:"ts"`
	Metrics []model.LiveMetric `json:"metrics"`
}

// NewManager connects to MQTT and prepares telemetry collection. Collectors
// are registered on reg, the default registerer when nil.
func NewManager(mqttCfg infmqtt.Config, cfg config.TelemetryConfig, sink coremetrics.LiveMetricRecorder, reg prometheus.Registerer) (*Manager, error) {
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	m := newManager(cfg, cli, sink)
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.pollReq, m.pollResp, m.pollTimeout, m.lastCollect, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register telemetry metrics: %w", err)
		}
	}
	return m, nil
}

func newManager(cfg config.TelemetryConfig, cli paho.Client, sink coremetrics.LiveMetricRecorder) *Manager {
	return &Manager{
		cfg:         cfg,
		cli:         cli,
		sink:        sink,
		log:         logger.New("telemetry"),
		live:        make(map[liveKey]model.LiveMetric),
		respCh:      make(chan telemetryMessage, 100),
		pollReq:     prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_requests_total", Help: "Number of telemetry poll requests"}),
		pollResp:    prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_responses_total", Help: "Number of telemetry poll responses"}),
		pollTimeout: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_timeout_total", Help: "Number of EASCs missing a poll"}),
		lastCollect: prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_collect_timestamp_seconds", Help: "Unix timestamp of last telemetry collection"}),
		latency:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetry_collect_latency_seconds", Help: "Latency of telemetry collection", Buckets: prometheus.DefBuckets}),
	}
}

// Start runs telemetry collection until context is done.
func (m *Manager) Start(ctx context.Context) {
	mode := strings.ToLower(m.cfg.Mode)
	if mode == "" {
		mode = "push"
	}
	if mode == "push" || mode == "hybrid" {
		if token := m.cli.Subscribe(m.cfg.MetricsTopic(), 0, m.onPush); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe metrics: %v", token.Error())
		}
	}
	if mode == "pull" || mode == "hybrid" {
		_, topic := m.cfg.PollTopics()
		if token := m.cli.Subscribe(topic, 0, m.onResponse); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe response: %v", token.Error())
		}
		go m.pollLoop(ctx)
	}
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}

// Snapshot returns the latest metric of every activity in every data
// center, skipping the ones older than the configured max age.
func (m *Manager) Snapshot() []model.LiveMetric {
	cutoff := m.clock().Add(-time.Duration(m.cfg.MaxAge()) * time.Second)
	m.mu.RLock()
	out := make([]model.LiveMetric, 0, len(m.live))
	for _, l := range m.live {
		if l.At.Before(cutoff) {
			continue
		}
		out = append(out, l)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Easc != b.Easc {
			return a.Easc < b.Easc
		}
		if a.Activity != b.Activity {
			return a.Activity < b.Activity
		}
		return a.DataCenter < b.DataCenter
	})
	return out
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Manager) onPush(_ paho.Client, msg paho.Message) {
	if err := m.process(msg.Payload(), msg.Topic()); err != nil {
		m.log.Errorf("push decode: %v", err)
	}
}

func (m *Manager) onResponse(_ paho.Client, msg paho.Message) {
	m.respCh <- telemetryMessage{Easc: extractEasc(msg.Topic()), Payload: msg.Payload(), Arrived: time.Now()}
}

// extractEasc reads the EASC name from <prefix>/<easc>/metrics or
// <prefix>/<easc>.
func extractEasc(topic string) string {
	parts := strings.Split(topic, "/")
	n := len(parts)
	if n >= 2 && parts[n-1] == "metrics" {
		return parts[n-2]
	}
	return parts[n-1]
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.cfg.Interval()) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.doPoll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) doPoll(ctx context.Context) {
	start := time.Now()
	expected := make(map[string]struct{}, len(m.cfg.Eascs))
	for _, e := range m.cfg.Eascs {
		expected[e] = struct{}{}
	}
	m.pollReq.Inc()
	request, _ := m.cfg.PollTopics()
	token := m.cli.Publish(request, 0, false, []byte("poll"))
	token.Wait()
	timeout := time.NewTimer(time.Duration(m.cfg.Timeout()) * time.Second)
	defer timeout.Stop()
	for {
		select {
		case resp := <-m.respCh:
			if err := m.process(resp.Payload, resp.Easc); err != nil {
				m.log.Errorf("poll decode: %v", err)
			} else {
				m.pollResp.Inc()
				m.latency.Observe(time.Since(start).Seconds())
				m.lastCollect.SetToCurrentTime()
				delete(expected, resp.Easc)
			}
			if len(m.cfg.Eascs) > 0 && len(expected) == 0 {
				return
			}
		case <-timeout.C:
			for e := range expected {
				m.pollTimeout.Inc()
				m.log.Warnf("no telemetry from %s", e)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// process decodes one payload. source is the topic or the EASC name it came
// from.
func (m *Manager) process(payload []byte, source string) error {
	var msg metricsPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.Easc == "" {
		msg.Easc = extractEasc(source)
	}
	ts := m.clock()
	if msg.TS != nil {
		ts = time.Unix(*msg.TS, 0).UTC()
	}
	for _, l := range msg.Metrics {
		if l.Easc == "" {
			l.Easc = msg.Easc
		}
		if l.Activity == "" || l.DataCenter == "" {
			return fmt.Errorf("metric of %s without activity or data center", l.Easc)
		}
		if l.At.IsZero() {
			l.At = ts
		}
		l.Power = max(l.Power, 0)
		l.Performance = max(l.Performance, 0)
		if !m.store(l) {
			continue
		}
		if m.sink != nil {
			if err := m.sink.RecordLiveMetric(l); err != nil {
				m.log.Warnf("record live metric: %v", err)
			}
		}
	}
	return nil
}

// store keeps l unless a newer value is known.
func (m *Manager) store(l model.LiveMetric) bool {
	k := liveKey{l.Easc, l.Activity, l.DataCenter}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		m.live = make(map[liveKey]model.LiveMetric)
	}
	if cur, ok := m.live[k]; ok && cur.At.After(l.At) {
		return false
	}
	m.live[k] = l
	return true
}
