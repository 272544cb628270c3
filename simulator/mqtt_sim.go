package main

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	infmqtt "github.com/kilianp07/consolidator/infra/mqtt"
)

const connectTimeout = 10 * time.Second

// newMQTTClient connects a simulated EASC with the options of the service
// client, retrying until the broker accepts the connection or the timeout
// expires.
func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts, err := infmqtt.NewClientOptions(infmqtt.Config{Broker: broker, ClientID: clientID})
	if err != nil {
		return nil, err
	}
	opts.SetConnectRetry(true).SetConnectRetryInterval(time.Second)
	cli := paho.NewClient(opts)
	token := cli.Connect()
	if !token.WaitTimeout(connectTimeout) {
		cli.Disconnect(0)
		return nil, fmt.Errorf("connect %s: timed out after %s", broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, err)
	}
	return cli, nil
}
