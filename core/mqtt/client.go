package mqtt

import (
	"time"

	"github.com/kilianp07/consolidator/core/model"
)

// Publisher delivers consolidated plans to EASCs and tracks their
// acknowledgments.
type Publisher interface {
	// PublishPlan sends the plan to its EASC and returns the command
	// identifier used to track the acknowledgment.
	PublishPlan(runID string, plan model.EascPlan) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}

// PlanMessage is the payload published on the plan topic of an EASC.
type PlanMessage struct {
	CommandID string         `json:"command_id"`
	RunID     string         `json:"run_id"`
	Plan      model.EascPlan `json:"plan"`
	Timestamp int64          `json:"timestamp"`
}

// AckMessage is returned by an EASC once a plan has been applied or refused.
type AckMessage struct {
	CommandID string `json:"command_id"`
	Easc      string `json:"easc"`
	Accepted  *bool  `json:"accepted,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// OK reports whether the EASC accepted the plan. A missing flag counts as
// acceptance.
func (a AckMessage) OK() bool { return a.Accepted == nil || *a.Accepted }

// PlanTopic returns the topic an EASC listens on for its plans.
func PlanTopic(prefix, easc string) string {
	if prefix == "" {
		prefix = "easc"
	}
	return prefix + "/" + easc + "/plan"
}

// AckTopic returns the topic an EASC acknowledges its plans on.
func AckTopic(prefix, easc string) string {
	if prefix == "" {
		prefix = "easc"
	}
	return prefix + "/" + easc + "/ack"
}

// MetricsTopic returns the topic an EASC pushes its live metrics on.
func MetricsTopic(prefix, easc string) string {
	if prefix == "" {
		prefix = "easc"
	}
	return prefix + "/" + easc + "/metrics"
}
