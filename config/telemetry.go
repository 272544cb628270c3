package config

import "strings"

// TelemetryConfig holds configuration for the telemetry manager.
type TelemetryConfig struct {
	Enabled         bool   `json:"enabled"`
	Mode            string `json:"mode"`
	IntervalSeconds int    `json:"interval_seconds"`
	RequestTopic    string `json:"request_topic"`
	ResponsePrefix  string `json:"response_topic_prefix"`
	// StatePrefix is the root of the push topics, <prefix>/<easc>/metrics.
	StatePrefix    string `json:"state_topic_prefix"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	// MaxAgeSeconds drops live metrics older than this from snapshots.
	MaxAgeSeconds int `json:"max_age_seconds"`
	// Eascs lists the EASCs expected to answer a poll.
	Eascs []string `json:"eascs"`
}

func (c TelemetryConfig) Interval() int {
	if c.IntervalSeconds <= 0 {
		return 10
	}
	return c.IntervalSeconds
}

func (c TelemetryConfig) Timeout() int {
	if c.TimeoutSeconds <= 0 {
		return 3
	}
	return c.TimeoutSeconds
}

func (c TelemetryConfig) MaxAge() int {
	if c.MaxAgeSeconds <= 0 {
		return 300
	}
	return c.MaxAgeSeconds
}

// MetricsTopic is the subscription pattern for pushed metrics.
func (c TelemetryConfig) MetricsTopic() string {
	prefix := c.StatePrefix
	if prefix == "" {
		prefix = "easc"
	}
	return strings.TrimRight(prefix, "/") + "/+/metrics"
}

// PollTopics returns the request topic and the response subscription pattern.
func (c TelemetryConfig) PollTopics() (request, response string) {
	request = c.RequestTopic
	if request == "" {
		request = "telemetry/request"
	}
	prefix := c.ResponsePrefix
	if prefix == "" {
		prefix = "telemetry/response"
	}
	return request, strings.TrimRight(prefix, "/") + "/+"
}
