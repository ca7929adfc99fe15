package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleetguard/app"
)

var (
	scheduleVehicles []string
	scheduleStart    string
	scheduleEnd      string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run one scheduling batch and exit",
	RunE:  scheduleBatch,
}

func init() {
	scheduleCmd.Flags().StringSliceVar(&scheduleVehicles, "vehicles", nil, "vehicle IDs to schedule (default: all flagged)")
	scheduleCmd.Flags().StringVar(&scheduleStart, "start", "", "window start (YYYY-MM-DD, default today)")
	scheduleCmd.Flags().StringVar(&scheduleEnd, "end", "", "window end (YYYY-MM-DD, default start+7d)")
	rootCmd.AddCommand(scheduleCmd)
}

func scheduleBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	start, end, err := batchWindow()
	if err != nil {
		return err
	}
	vehicles := scheduleVehicles
	if len(vehicles) == 0 {
		flags, err := svc.Store.ListUnscheduledFlags(ctx)
		if err != nil {
			return fmt.Errorf("list flags: %w", err)
		}
		for _, f := range flags {
			vehicles = append(vehicles, f.VehicleID)
		}
	}
	if len(vehicles) == 0 {
		fmt.Println("no flagged vehicles to schedule")
		return nil
	}

	res, err := svc.Allocator.ScheduleBatch(ctx, vehicles, start, end)
	if err != nil {
		return err
	}
	for _, b := range res.Scheduled {
		fmt.Printf("scheduled %s at %s, slot %s (score %.1f)\n",
			b.VehicleID, b.CenterID, b.SlotStart.Format(time.RFC3339), b.PriorityScore)
	}
	for _, f := range res.Failed {
		fmt.Printf("failed %s: %s\n", f.VehicleID, f.Reason)
	}
	return nil
}

func batchWindow() (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if scheduleStart != "" {
		var err error
		if start, err = time.Parse("2006-01-02", scheduleStart); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
	}
	end := start.AddDate(0, 0, 7)
	if scheduleEnd != "" {
		var err error
		if end, err = time.Parse("2006-01-02", scheduleEnd); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
	}
	return start, end, nil
}
