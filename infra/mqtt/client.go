// Package mqtt carries vehicle telemetry into the pipeline. Readings arrive
// on a broker topic, are persisted and run through the threshold evaluator;
// flagged vehicles gain a maintenance flag for the scheduler to pick up.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker         string `json:"broker"`
	ClientID       string `json:"client_id"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TelemetryTopic string `json:"telemetry_topic"`
	QoS            byte   `json:"qos"`
	ConnectTimeout int    `json:"connect_timeout_seconds"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "fleetguard-" + uuid.NewString()[:8]
	}
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = "fleet/telemetry/#"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10
	}
}

// NewClient connects to the broker and returns the connected client.
func NewClient(cfg Config) (paho.Client, error) {
	cfg.SetDefaults()
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second)
	cli := paho.NewClient(opts)
	tok := cli.Connect()
	if !tok.WaitTimeout(time.Duration(cfg.ConnectTimeout) * time.Second) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return cli, nil
}
