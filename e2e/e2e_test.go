package e2e

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/consolidator/app"
	"github.com/kilianp07/consolidator/config"
	sources "github.com/kilianp07/consolidator/connectors/factory"
	"github.com/kilianp07/consolidator/core/factory"
	coremqtt "github.com/kilianp07/consolidator/core/mqtt"
	"github.com/kilianp07/consolidator/infra/logger"
	"github.com/kilianp07/consolidator/infra/mqtt"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container initialised with the e2e
// organisation, bucket and token.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a Mosquitto broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	conf := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(conf, []byte("listener 1883\nallow_anonymous true\n"), 0o644); err != nil {
		t.Fatalf("write mosquitto config: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      conf,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	if err := waitForMQTTReady(broker, 5*time.Second); err != nil {
		_ = cont.Terminate(ctx)
		t.Skipf("mosquitto not ready at %s: %v", broker, err)
	}
	return cont, broker
}

func waitForMQTTReady(broker string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("probe"))
		tok := cli.Connect()
		if tok.WaitTimeout(time.Second) && tok.Error() == nil {
			cli.Disconnect(50)
			return nil
		}
		lastErr = tok.Error()
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout")
	}
	return lastErr
}

// eascResponder plays the EASC side: every plan received is acknowledged,
// except for the EASCs listed in refuse.
type eascResponder struct {
	cli    paho.Client
	refuse map[string]bool

	mu   sync.Mutex
	seen map[string]int
}

func startResponder(t *testing.T, broker string, refuse ...string) *eascResponder {
	t.Helper()
	r := &eascResponder{refuse: map[string]bool{}, seen: map[string]int{}}
	for _, e := range refuse {
		r.refuse[e] = true
	}
	r.cli = paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("easc-sim"))
	if tok := r.cli.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("responder connect: %v", tok.Error())
	}
	if tok := r.cli.Subscribe("easc/+/plan", 1, r.onPlan); tok.Wait() && tok.Error() != nil {
		t.Fatalf("responder subscribe: %v", tok.Error())
	}
	t.Cleanup(func() { r.cli.Disconnect(100) })
	return r
}

func (r *eascResponder) onPlan(_ paho.Client, m paho.Message) {
	var msg coremqtt.PlanMessage
	if err := json.Unmarshal(m.Payload(), &msg); err != nil {
		return
	}
	easc := msg.Plan.Easc
	r.mu.Lock()
	r.seen[easc]++
	r.mu.Unlock()

	accepted := !r.refuse[easc]
	ack := coremqtt.AckMessage{CommandID: msg.CommandID, Easc: easc, Accepted: &accepted}
	if !accepted {
		ack.Reason = "maintenance"
	}
	payload, _ := json.Marshal(ack)
	r.cli.Publish(coremqtt.AckTopic("", easc), 1, false, payload)
}

func (r *eascResponder) plans(easc string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[easc]
}

func serviceConfig(broker string) *config.Config {
	cfg := &config.Config{}
	cfg.Loop = config.LoopConfig{
		IntervalSeconds:   60,
		HorizonHours:      6,
		SlotMinutes:       60,
		AckTimeoutSeconds: 5,
		Input: sources.SourceConfig{
			Type:  sources.IDFile,
			Path:  "../qa/scenarios/testdata/two_eascs.yaml",
			Shift: true,
		},
	}
	cfg.PlanLog.Backend = "memory"
	cfg.MQTT = mqtt.Config{Broker: broker, ClientID: "consolidator-e2e"}
	cfg.SetDefaults()
	return cfg
}

// Test_E2E_PlansAcknowledged runs one control loop iteration against a real
// broker: every EASC receives its plan and acknowledges it.
func Test_E2E_PlansAcknowledged(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	cont, broker := startMosquitto(ctx, t)
	defer cont.Terminate(ctx) //nolint:errcheck
	t.Logf("Mosquitto started at %s", broker)

	resp := startResponder(t, broker, "web")

	svc, err := app.New(serviceConfig(broker), app.WithLogger(logger.NopLogger{}))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()

	rec, err := svc.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(rec.Plans) == 0 {
		t.Fatalf("no plans built")
	}
	for _, p := range rec.Plans {
		if resp.plans(p.Easc) != 1 {
			t.Fatalf("easc %s received %d plans", p.Easc, resp.plans(p.Easc))
		}
	}

	// The refusal of web surfaces through WaitForAck with its reason.
	cli, err := mqtt.NewPahoClient(mqtt.Config{Broker: broker, ClientID: "refusal-check"})
	if err != nil {
		t.Fatalf("mqtt client: %v", err)
	}
	defer cli.Disconnect()
	for _, p := range rec.Plans {
		if p.Easc != "web" {
			continue
		}
		id, err := cli.PublishPlan(rec.RunID, p)
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		if _, err := cli.WaitForAck(id, 5*time.Second); !errors.Is(err, coremqtt.ErrPlanRejected) || !strings.Contains(err.Error(), "maintenance") {
			t.Fatalf("expected the refusal reason, got %v", err)
		}
	}

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(t.TempDir(), "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}

// Test_E2E_RunsWrittenToInflux checks that a consolidation run lands in
// InfluxDB through the influx metrics sink.
func Test_E2E_RunsWrittenToInflux(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cont, url := startInflux(ctx, t)
	defer cont.Terminate(ctx) //nolint:errcheck
	t.Logf("InfluxDB started at %s", url)

	influx := NewInfluxClient(url, influxOrg, influxBucket, influxToken)
	defer influx.Close()
	if err := influx.WaitReady(ctx, time.Minute); err != nil {
		t.Fatalf("%v", err)
	}

	cfg := serviceConfig("")
	cfg.MQTT = mqtt.Config{}
	cfg.Metrics.Sinks = []factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": url, "token": influxToken, "org": influxOrg, "bucket": influxBucket},
	}}
	svc, err := app.New(cfg, app.WithLogger(logger.NopLogger{}), app.WithPublisher(mqtt.NewMockPublisher()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()

	rec, err := svc.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	n, err := influx.Count(ctx, "consolidation_run", 5*time.Minute)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if n == 0 {
		t.Fatalf("run %s not written to influx", rec.RunID)
	}
}
