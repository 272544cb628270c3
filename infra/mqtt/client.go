package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/consolidator/core/model"
	coremon "github.com/kilianp07/consolidator/core/monitoring"
	coremqtt "github.com/kilianp07/consolidator/core/mqtt"
	"github.com/kilianp07/consolidator/infra/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoClient implements the Publisher interface using Eclipse Paho. Each
// published plan gets a command id; the acknowledgment carrying that id is
// routed to the goroutine waiting in WaitForAck.
type PahoClient struct {
	cfg    Config
	cli    pahoClient
	logger logger.Logger

	mu      sync.Mutex
	pending map[string]chan coremqtt.AckMessage

	ready     chan struct{}
	readyOnce sync.Once
}

// subscribeTimeout bounds the wait for the ack subscription in NewPahoClient.
const subscribeTimeout = 5 * time.Second

// NewPahoClient connects to the MQTT broker and returns once the ack topic
// is subscribed. The subscription is renewed on every reconnection.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	pc := &PahoClient{
		cfg:     cfg,
		logger:  logger.New("mqtt_client"),
		pending: make(map[string]chan coremqtt.AckMessage),
		ready:   make(chan struct{}),
	}
	opts.OnConnect = pc.onConnect
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		pc.logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		pc.logger.Warnf("reconnecting to %s", cfg.Broker)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	pc.cli = c
	select {
	case <-pc.ready:
	case <-time.After(subscribeTimeout):
		c.Disconnect(0)
		return nil, fmt.Errorf("subscribe %s: no confirmation after %s", cfg.AckTopic, subscribeTimeout)
	}
	return pc, nil
}

func (p *PahoClient) onConnect(c paho.Client) {
	p.logger.Infof("connected, waiting for acks on %s", p.cfg.AckTopic)
	if token := c.Subscribe(p.cfg.AckTopic, p.cfg.QoSFor("ack"), p.onAck); token.Wait() && token.Error() != nil {
		p.logger.Errorf("subscribe %s: %v", p.cfg.AckTopic, token.Error())
		return
	}
	p.readyOnce.Do(func() { close(p.ready) })
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var ack coremqtt.AckMessage
	if err := json.Unmarshal(msg.Payload(), &ack); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.pending[ack.CommandID]
	if !ok {
		p.logger.Debugf("ignoring ack %s from %s", ack.CommandID, ack.Easc)
		return
	}
	select {
	case ch <- ack:
	default:
	}
	p.logger.Infof("received ack %s from %s", ack.CommandID, ack.Easc)
}

// PublishPlan sends the plan to the EASC plan topic and returns the command
// identifier used for acknowledgment tracking.
func (p *PahoClient) PublishPlan(runID string, plan model.EascPlan) (string, error) {
	cmdID := uuid.NewString()
	payload, err := json.Marshal(coremqtt.PlanMessage{
		CommandID: cmdID,
		RunID:     runID,
		Plan:      plan,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	// Registered first: the EASC may answer before Publish returns.
	p.track(cmdID)

	topic := coremqtt.PlanTopic(p.cfg.PlanPrefix, plan.Easc)
	if err := p.publish(topic, p.cfg.QoSFor("plan"), payload); err != nil {
		p.forget(cmdID)
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "easc": plan.Easc, "run_id": runID})
		return "", err
	}
	p.logger.Infof("sent plan %s to %s", cmdID, topic)
	return cmdID, nil
}

// publish retries with an exponential backoff.
func (p *PahoClient) publish(topic string, qos byte, payload []byte) error {
	var err error
	delay := p.cfg.Backoff()
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, err)
	}
	return err
}

func (p *PahoClient) track(cmdID string) {
	p.mu.Lock()
	p.pending[cmdID] = make(chan coremqtt.AckMessage, 1)
	p.mu.Unlock()
}

func (p *PahoClient) forget(cmdID string) {
	p.mu.Lock()
	delete(p.pending, cmdID)
	p.mu.Unlock()
}

// WaitForAck blocks until an ACK for the given command ID is received or
// timeout. A refusal from the EASC returns ErrPlanRejected. A command can be
// waited for once.
func (p *PahoClient) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.pending[commandID]
	p.mu.Unlock()
	if ch == nil {
		return false, coremqtt.ErrUnknownCommand
	}
	defer p.forget(commandID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ack := <-ch:
		if !ack.OK() {
			return false, fmt.Errorf("%w: %s", coremqtt.ErrPlanRejected, ack.Reason)
		}
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("%w: command %s after %s", coremqtt.ErrAckTimeout, commandID, timeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
