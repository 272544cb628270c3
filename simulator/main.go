package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	coremetrics "github.com/kilianp07/consolidator/core/metrics"
	"github.com/kilianp07/consolidator/core/scenario"
	"github.com/kilianp07/consolidator/infra/metrics"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strat := RandomAck{Delay: cfg.AckLatency, DropRate: cfg.DropRate, RejectRate: cfg.RejectRate}
	var sink coremetrics.LiveMetricRecorder = coremetrics.NopSink{}
	if cfg.InfluxURL != "" {
		s := metrics.NewInfluxSinkWithFallback(metrics.InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if r, ok := s.(coremetrics.LiveMetricRecorder); ok {
			sink = r
		}
	}

	prof := flatProfile()
	if cfg.ProfileFile != "" {
		data, err := os.ReadFile(cfg.ProfileFile)
		if err != nil {
			log.Fatalf("profile file: %v", err)
		}
		if prof, err = LoadProfile(data); err != nil {
			log.Fatalf("profile file: %v", err)
		}
	}

	var fleet []*SimulatedEasc
	if cfg.Scenario != "" {
		sc, err := scenario.Load(cfg.Scenario)
		if err != nil {
			log.Fatalf("scenario: %v", err)
		}
		fleet = FleetFromActivities(sc.Activities)
	} else {
		fleet = GenerateFleet(FleetConfig{Eascs: cfg.Eascs, Activities: cfg.Activities, DataCenters: cfg.DataCenters})
	}
	runFleet(ctx, fleet, cfg, strat, prof, sink)
}

func flatProfile() [24]float64 {
	var p [24]float64
	for i := range p {
		p[i] = 1
	}
	return p
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.Scenario, "scenario", "", "scenario file providing the EASCs and activities")
	flag.IntVar(&cfg.Eascs, "eascs", 2, "number of generated EASCs")
	flag.IntVar(&cfg.Activities, "activities", 3, "activities per generated EASC")
	flag.IntVar(&cfg.DataCenters, "datacenters", 2, "number of data centers of generated activities")
	flag.DurationVar(&cfg.AckLatency, "ack-latency", 0, "ack latency")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "ack drop rate")
	flag.Float64Var(&cfg.RejectRate, "reject-rate", 0, "plan refusal rate")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "metrics publish interval")
	flag.StringVar(&cfg.TopicPrefix, "topic-prefix", "easc", "MQTT topic prefix")
	flag.StringVar(&cfg.RequestTopic, "request-topic", "telemetry/request", "telemetry poll topic, empty to ignore polls")
	flag.StringVar(&cfg.ResponsePrefix, "response-prefix", "telemetry/response", "telemetry poll response prefix")
	flag.StringVar(&cfg.ProfileFile, "profile-file", "", "hourly load profile JSON")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.StringVar(&cfg.InfluxURL, "influx-url", "", "InfluxDB URL")
	flag.StringVar(&cfg.InfluxToken, "influx-token", "", "InfluxDB token")
	flag.StringVar(&cfg.InfluxOrg, "influx-org", "", "InfluxDB organization")
	flag.StringVar(&cfg.InfluxBucket, "influx-bucket", "", "InfluxDB bucket")
	flag.Parse()
	return cfg
}

func runFleet(ctx context.Context, fleet []*SimulatedEasc, cfg Config, strat AckStrategy, prof [24]float64, sink coremetrics.LiveMetricRecorder) {
	var wg sync.WaitGroup
	for _, e := range fleet {
		e.Broker = cfg.Broker
		e.TopicPrefix = cfg.TopicPrefix
		e.RequestTopic = cfg.RequestTopic
		e.ResponsePrefix = cfg.ResponsePrefix
		e.Strategy = strat
		e.Interval = cfg.Interval
		e.Profile = prof
		e.Metrics = sink
		wg.Add(1)
		go func(e *SimulatedEasc) {
			defer wg.Done()
			if err := e.Run(ctx); err != nil {
				log.Printf("%s: %v", e.ID, err)
			}
		}(e)
	}
	wg.Wait()
}
