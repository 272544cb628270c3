package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/model"
	coremqtt "github.com/kilianp07/consolidator/core/mqtt"
)

// SimulatedEasc receives plans over MQTT, acknowledges them and reports the
// live state of its activities.
type SimulatedEasc struct {
	ID             string
	Broker         string
	TopicPrefix    string
	RequestTopic   string
	ResponsePrefix string
	Strategy       AckStrategy
	Interval       time.Duration
	Activities     []*Activity
	// Profile scales power and performance by hour of day.
	Profile [24]float64
	Metrics coremetrics.LiveMetricRecorder

	client paho.Client
	planCh chan coremqtt.PlanMessage
	now    func() time.Time
}

// NewSimulatedEasc creates an EASC running the given activities.
func NewSimulatedEasc(id string, acts []*Activity) *SimulatedEasc {
	return &SimulatedEasc{
		ID:         id,
		Activities: acts,
		Profile:    flatProfile(),
		planCh:     make(chan coremqtt.PlanMessage, 16),
	}
}

func (e *SimulatedEasc) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// Run connects to the broker and serves plans until ctx is done.
func (e *SimulatedEasc) Run(ctx context.Context) error {
	cli, err := newMQTTClient(e.Broker, "sim-"+e.ID)
	if err != nil {
		return err
	}
	return e.serve(ctx, cli)
}

func (e *SimulatedEasc) serve(ctx context.Context, cli paho.Client) error {
	e.client = cli
	go e.worker(ctx)
	if token := cli.Subscribe(coremqtt.PlanTopic(e.TopicPrefix, e.ID), 1, e.onPlan); token.Wait() && token.Error() != nil {
		cli.Disconnect(250)
		return token.Error()
	}
	if e.RequestTopic != "" {
		if token := cli.Subscribe(e.RequestTopic, 0, e.onPoll); token.Wait() && token.Error() != nil {
			cli.Disconnect(250)
			return token.Error()
		}
	}
	interval := e.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.publishMetrics(coremqtt.MetricsTopic(e.TopicPrefix, e.ID))
		case <-ctx.Done():
			cli.Disconnect(250)
			return nil
		}
	}
}

func (e *SimulatedEasc) onPlan(_ paho.Client, msg paho.Message) {
	var m coremqtt.PlanMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		log.Printf("%s: decode plan: %v", e.ID, err)
		return
	}
	select {
	case e.planCh <- m:
	default:
		log.Printf("%s: plan queue full, dropping command %s", e.ID, m.CommandID)
	}
}

func (e *SimulatedEasc) onPoll(_ paho.Client, _ paho.Message) {
	prefix := e.ResponsePrefix
	if prefix == "" {
		prefix = "telemetry/response"
	}
	e.publishMetrics(prefix + "/" + e.ID)
}

func (e *SimulatedEasc) worker(ctx context.Context) {
	for {
		select {
		case m := <-e.planCh:
			accepted := e.Strategy.Accept(m)
			if accepted {
				e.apply(m.Plan)
			}
			e.Strategy.Ack(ctx, e.client, e.TopicPrefix, e.ID, m.CommandID, accepted)
		case <-ctx.Done():
			return
		}
	}
}

// apply hands every activity its works. Activities missing from the plan keep
// their current mode.
func (e *SimulatedEasc) apply(plan model.EascPlan) {
	for _, a := range e.Activities {
		for _, ap := range plan.Activities {
			if ap.Name != a.Name {
				continue
			}
			if works := ap.Works(a.DataCenter); works != nil {
				a.Apply(plan.Range, works)
			}
		}
	}
}

// Snapshot advances every activity to now and samples it.
func (e *SimulatedEasc) Snapshot() []model.LiveMetric {
	now := e.clock()
	load := e.Profile[now.Hour()]
	out := make([]model.LiveMetric, 0, len(e.Activities))
	for _, a := range e.Activities {
		a.Advance(now)
		out = append(out, a.Sample(e.ID, load, now))
	}
	return out
}

type metricsPayload struct {
	Easc    string             `json:"easc"`
	TS      int64              `json:"ts"`
	Metrics []model.LiveMetric `json:"metrics"`
}

func (e *SimulatedEasc) publishMetrics(topic string) {
	snap := e.Snapshot()
	payload, err := json.Marshal(metricsPayload{Easc: e.ID, TS: e.clock().Unix(), Metrics: snap})
	if err != nil {
		log.Printf("%s: marshal metrics: %v", e.ID, err)
		return
	}
	token := e.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("%s: metrics publish timeout", e.ID)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("%s: publish metrics: %v", e.ID, err)
	}
	if e.Metrics != nil {
		for _, l := range snap {
			if err := e.Metrics.RecordLiveMetric(l); err != nil {
				log.Printf("%s: record metric: %v", e.ID, err)
			}
		}
	}
}
