package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultAckTopic   = "easc/+/ack"
	defaultMaxRetries = 3
	defaultBackoff    = 100 * time.Millisecond
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// AckTopic is the subscription receiving acknowledgments from every EASC.
	AckTopic string `json:"ack_topic"`
	// PlanPrefix replaces "easc" in <prefix>/<easc>/plan.
	PlanPrefix string `json:"plan_prefix"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	// AuthMethod is username_password, both or certificate. Credentials are
	// ignored for certificate.
	AuthMethod string `json:"auth_method"`
	// QoS per message kind: plan, ack or metrics.
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

// SetDefaults fills the ack topic and the publish retry policy.
func (c *Config) SetDefaults() {
	if c.AckTopic == "" {
		c.AckTopic = defaultAckTopic
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = int(defaultBackoff / time.Millisecond)
	}
}

// Backoff is the delay before the first publish retry. It doubles on every
// further attempt.
func (c Config) Backoff() time.Duration { return time.Duration(c.BackoffMS) * time.Millisecond }

// QoSFor returns the configured QoS of a message kind, 0 by default.
func (c Config) QoSFor(kind string) byte { return c.QoS[kind] }

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.AuthMethod != "certificate" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig returns TLSConfig when set, otherwise it builds a mutual TLS
// configuration from the certificate files.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, errors.New("tls requires client_cert, client_key and ca_bundle")
	}
	pair, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("client certificate: %w", err)
	}
	pem, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("ca bundle: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca bundle %s: no certificate found", c.CABundle)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		RootCAs:      roots,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
