package mqtt

import "errors"

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrPlanRejected is returned when an EASC refuses a plan.
var ErrPlanRejected = errors.New("plan rejected")

// ErrUnknownCommand is returned when waiting on a command never published.
var ErrUnknownCommand = errors.New("unknown command")
