// Package app wires the configuration into a running service: storage,
// telemetry ingestion, the allocation engine, metrics sinks and the HTTP
// API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fleetguard/api/scheduling"
	"fleetguard/config"
	"fleetguard/core/events"
	"fleetguard/core/forecast"
	coremetrics "fleetguard/core/metrics"
	"fleetguard/core/notify"
	"fleetguard/core/scheduler"
	"fleetguard/core/store"
	"fleetguard/core/store/memory"
	"fleetguard/core/telemetry"
	"fleetguard/infra/logger"
	"fleetguard/infra/metrics"
	"fleetguard/infra/mqtt"
	infranotify "fleetguard/infra/notify"
	"fleetguard/infra/store/sqlite"
	"fleetguard/internal/eventbus"
)

// Service orchestrates the scheduling engine, telemetry ingestion and the
// HTTP API.
type Service struct {
	Allocator *scheduler.Allocator
	Store     store.Store

	handler     *scheduling.Handler
	ingestor    *mqtt.Ingestor
	bus         eventbus.EventBus
	flagRec     coremetrics.FlagRecorder
	log         logger.Logger
	addr        string
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	cfg.Logging.Apply()
	logg := logger.New("service")

	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	var sinks []coremetrics.Sink
	var flagRec coremetrics.FlagRecorder
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
		flagRec = sink
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink
	switch len(sinks) {
	case 0:
		sink = coremetrics.NopSink{}
	case 1:
		sink = sinks[0]
	default:
		sink = coremetrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	alloc, err := scheduler.NewAllocator(cfg.Scheduler, st, nil, logger.New("allocator"), sink, bus, nil)
	if err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}
	slots := scheduler.NewSlotFinder(st, cfg.Scheduler.SlotDuration(), nil)
	fc := forecast.NewEngine(cfg.Forecast, st, st, nil)

	var notifier notify.Notifier
	if cfg.Notify.Enabled {
		notifier = infranotify.NewAMQPNotifier(cfg.Notify, logger.New("notify"))
	} else {
		notifier = infranotify.NewLogNotifier(logger.New("notify"))
	}

	// Telemetry ingestion degrades gracefully: an unreachable broker means
	// no new flags, but batch scheduling over existing flags keeps working.
	var ingestor *mqtt.Ingestor
	if client, err := mqtt.NewClient(cfg.MQTT); err != nil {
		logg.Warnf("telemetry ingestion disabled: %v", err)
	} else {
		eval := telemetry.NewEvaluator(telemetry.DefaultThresholds())
		ingestor = mqtt.NewIngestor(client, cfg.MQTT, st, eval, bus, logger.New("ingestor"))
	}

	handler := scheduling.New(alloc, slots, st, fc, notifier, bus, logger.New("api"))

	return &Service{
		Allocator:   alloc,
		Store:       st,
		handler:     handler,
		ingestor:    ingestor,
		bus:         bus,
		flagRec:     flagRec,
		log:         logg,
		addr:        cfg.Server.Addr,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	if cfg.Backend == "memory" {
		return memory.New(), nil
	}
	return sqlite.New(cfg.Path)
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.consumeEvents(ctx)
	if s.ingestor != nil {
		go func() {
			if err := s.ingestor.Run(ctx); err != nil {
				s.log.Errorf("ingestor error: %v", err)
			}
		}()
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	s.handler.Register(mux)
	srv := &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()

	s.log.Infof("api listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// consumeEvents drains the domain bus: flag creations feed the flag
// counter, everything else is logged at debug level.
func (s *Service) consumeEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case events.FlagCreated:
				if s.flagRec != nil {
					if err := s.flagRec.RecordFlag(e.VehicleID, e.Severity); err != nil {
						s.log.Errorf("flag metric: %v", err)
					}
				}
			case events.BatchCompleted:
				s.log.Debugw("batch completed", map[string]any{
					"scheduled":   e.Scheduled,
					"failed":      e.Failed,
					"duration_ms": e.Duration.Milliseconds(),
				})
			}
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return s.Store.Close()
}
