package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleetguard/infra/logger"
	"fleetguard/infra/mqtt"
	"fleetguard/simulator"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish synthetic telemetry to the broker",
	RunE:  runSimulator,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulator(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = "fleetguard-simulator"
	client, err := mqtt.NewClient(mqttCfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	sim := simulator.New(cfg.Simulator, client, logger.New("simulator"))
	return sim.Run(ctx)
}
