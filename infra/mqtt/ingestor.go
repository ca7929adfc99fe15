package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"fleetguard/core/events"
	"fleetguard/core/model"
	"fleetguard/core/store"
	"fleetguard/core/telemetry"
	"fleetguard/infra/logger"
	"fleetguard/internal/eventbus"
)

// Ingestor consumes telemetry readings from the broker, persists them and
// raises maintenance flags when the evaluator trips.
type Ingestor struct {
	client    paho.Client
	topic     string
	qos       byte
	fleet     store.FleetStore
	evaluator *telemetry.Evaluator
	bus       eventbus.EventBus
	log       logger.Logger
}

// NewIngestor builds an ingestor over a connected client.
func NewIngestor(client paho.Client, cfg Config, fleet store.FleetStore, eval *telemetry.Evaluator, bus eventbus.EventBus, log logger.Logger) *Ingestor {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Ingestor{
		client:    client,
		topic:     cfg.TelemetryTopic,
		qos:       cfg.QoS,
		fleet:     fleet,
		evaluator: eval,
		bus:       bus,
		log:       log,
	}
}

// Run subscribes to the telemetry topic and processes readings until the
// context is cancelled.
func (in *Ingestor) Run(ctx context.Context) error {
	tok := in.client.Subscribe(in.topic, in.qos, in.onReading)
	if tok.Wait() && tok.Error() != nil {
		return tok.Error()
	}
	in.log.Infof("subscribed to %s", in.topic)
	<-ctx.Done()
	in.client.Unsubscribe(in.topic)
	return nil
}

func (in *Ingestor) onReading(_ paho.Client, msg paho.Message) {
	var r telemetry.Reading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		in.log.Warnf("discarding malformed reading on %s: %v", msg.Topic(), err)
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := in.fleet.InsertReading(ctx, &r); err != nil {
		in.log.Errorf("persist reading for %s: %v", r.VehicleID, err)
		return
	}

	a := in.evaluator.Evaluate(r)
	if !a.Flagged {
		return
	}
	flag := &model.MaintenanceFlag{
		VehicleID:   r.VehicleID,
		FlaggedAt:   r.Timestamp,
		Severity:    a.Severity,
		RiskFactors: a.RiskFactors,
		Confidence:  a.Severity / 100,
	}
	if err := in.fleet.CreateFlag(ctx, flag); err != nil {
		// One unscheduled flag per vehicle; repeats are expected noise.
		if errors.Is(err, store.ErrFlagExists) {
			return
		}
		in.log.Errorf("create flag for %s: %v", r.VehicleID, err)
		return
	}
	in.log.Infof("vehicle %s flagged, severity %.0f", r.VehicleID, a.Severity)
	if in.bus != nil {
		in.bus.Publish(events.FlagCreated{
			VehicleID:   r.VehicleID,
			Severity:    a.Severity,
			RiskFactors: a.RiskFactors,
			At:          r.Timestamp,
		})
	}
}
