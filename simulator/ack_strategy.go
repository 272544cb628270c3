package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/consolidator/core/mqtt"
)

var rng = rand.New(rand.NewSource(time.Now().UnixNano()))

// AckStrategy defines how an EASC answers plans.
type AckStrategy interface {
	// Accept decides whether the plan is applied.
	Accept(m coremqtt.PlanMessage) bool
	Ack(ctx context.Context, cli paho.Client, prefix, easc, commandID string, accepted bool)
}

// AutoAck accepts every plan and acknowledges it after an optional fixed
// delay.
type AutoAck struct {
	Delay time.Duration
}

// Accept implements AckStrategy.
func (AutoAck) Accept(coremqtt.PlanMessage) bool { return true }

// Ack implements AckStrategy.
func (a AutoAck) Ack(ctx context.Context, cli paho.Client, prefix, easc, commandID string, accepted bool) {
	if !wait(ctx, a.Delay) {
		return
	}
	publishAck(cli, prefix, easc, commandID, accepted)
}

// RandomAck refuses plans with RejectRate probability, drops acknowledgments
// with DropRate probability and waits Delay before sending.
type RandomAck struct {
	Delay      time.Duration
	DropRate   float64
	RejectRate float64
}

// Accept implements AckStrategy.
func (r RandomAck) Accept(coremqtt.PlanMessage) bool {
	return r.RejectRate <= 0 || rng.Float64() >= r.RejectRate
}

// Ack implements AckStrategy.
func (r RandomAck) Ack(ctx context.Context, cli paho.Client, prefix, easc, commandID string, accepted bool) {
	if r.DropRate > 0 && rng.Float64() < r.DropRate {
		return
	}
	if !wait(ctx, r.Delay) {
		return
	}
	publishAck(cli, prefix, easc, commandID, accepted)
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func publishAck(cli paho.Client, prefix, easc, commandID string, accepted bool) {
	ack := coremqtt.AckMessage{CommandID: commandID, Easc: easc, Accepted: &accepted}
	if !accepted {
		ack.Reason = "simulated refusal"
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		log.Printf("marshal ack: %v", err)
		return
	}
	token := cli.Publish(coremqtt.AckTopic(prefix, easc), 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("ack publish timeout for %s", easc)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("publish ack error for %s: %v", easc, err)
	}
}
