package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleetguard/core/model"
	"fleetguard/core/store"
	"fleetguard/core/store/memory"
	"fleetguard/infra/store/sqlite"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with sample reference data",
	RunE:  seedData,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "vehicles", 50, "number of sample vehicles")
	rootCmd.AddCommand(seedCmd)
}

func seedData(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var st store.Store
	if cfg.Storage.Backend == "memory" {
		st = memory.New()
	} else {
		if st, err = sqlite.New(cfg.Storage.Path); err != nil {
			return err
		}
	}
	defer func() { _ = st.Close() }()

	// A fixed seed keeps repeated runs reproducible.
	rng := rand.New(rand.NewSource(42))
	now := time.Now().UTC()

	centers := []model.ServiceCenter{
		{ID: "SC001", Name: "North Delhi Service Center", Region: "North Delhi", Latitude: 28.7041, Longitude: 77.1025, CapacityBays: 15, OpenHour: 8, CloseHour: 20, Active: true},
		{ID: "SC002", Name: "South Delhi Service Center", Region: "South Delhi", Latitude: 28.5244, Longitude: 77.2066, CapacityBays: 12, OpenHour: 9, CloseHour: 19, Active: true},
		{ID: "SC003", Name: "Gurgaon Service Center", Region: "Gurgaon", Latitude: 28.4595, Longitude: 77.0266, CapacityBays: 20, OpenHour: 8, CloseHour: 21, Active: true},
		{ID: "SC004", Name: "Noida Service Center", Region: "Noida", Latitude: 28.6139, Longitude: 77.3910, CapacityBays: 10, OpenHour: 8, CloseHour: 18, Active: true},
		{ID: "SC005", Name: "Faridabad Service Center", Region: "Faridabad", Latitude: 28.4089, Longitude: 77.3178, CapacityBays: 8, OpenHour: 9, CloseHour: 18, Active: true},
	}
	for i := range centers {
		if err := st.UpsertCenter(ctx, &centers[i]); err != nil {
			return fmt.Errorf("seed center %s: %w", centers[i].ID, err)
		}
	}

	techs := []model.Technician{
		{ID: "T001", Name: "Rajesh Kumar", CenterID: "SC001", Specialization: "engine", SkillLevel: "expert", Available: true},
		{ID: "T002", Name: "Amit Singh", CenterID: "SC001", Specialization: "brakes", SkillLevel: "senior", Available: true},
		{ID: "T003", Name: "Priya Sharma", CenterID: "SC001", Specialization: "electrical", SkillLevel: "senior", Available: true},
		{ID: "T004", Name: "Vikram Patel", CenterID: "SC001", Specialization: "general", SkillLevel: "junior", Available: true},
		{ID: "T005", Name: "Suresh Reddy", CenterID: "SC002", Specialization: "general", SkillLevel: "expert", Available: true},
		{ID: "T006", Name: "Neha Gupta", CenterID: "SC002", Specialization: "engine", SkillLevel: "senior", Available: true},
		{ID: "T007", Name: "Rahul Verma", CenterID: "SC002", Specialization: "brakes", SkillLevel: "junior", Available: true},
		{ID: "T008", Name: "Deepak Mehta", CenterID: "SC003", Specialization: "electrical", SkillLevel: "expert", Available: true},
		{ID: "T009", Name: "Anjali Kapoor", CenterID: "SC003", Specialization: "engine", SkillLevel: "expert", Available: true},
		{ID: "T010", Name: "Sanjay Joshi", CenterID: "SC003", Specialization: "general", SkillLevel: "senior", Available: true},
		{ID: "T011", Name: "Pooja Agarwal", CenterID: "SC003", Specialization: "brakes", SkillLevel: "senior", Available: true},
		{ID: "T012", Name: "Karan Malhotra", CenterID: "SC003", Specialization: "general", SkillLevel: "junior", Available: true},
		{ID: "T013", Name: "Manish Saxena", CenterID: "SC004", Specialization: "engine", SkillLevel: "senior", Available: true},
		{ID: "T014", Name: "Ritu Bansal", CenterID: "SC004", Specialization: "electrical", SkillLevel: "senior", Available: true},
		{ID: "T015", Name: "Arjun Rao", CenterID: "SC004", Specialization: "general", SkillLevel: "junior", Available: true},
		{ID: "T016", Name: "Gaurav Sharma", CenterID: "SC005", Specialization: "general", SkillLevel: "senior", Available: true},
		{ID: "T017", Name: "Sneha Iyer", CenterID: "SC005", Specialization: "brakes", SkillLevel: "junior", Available: true},
	}
	for i := range techs {
		if err := st.UpsertTechnician(ctx, &techs[i]); err != nil {
			return fmt.Errorf("seed technician %s: %w", techs[i].ID, err)
		}
	}

	models := []string{
		"Maruti Swift", "Hyundai Creta", "Tata Nexon", "Honda City", "Mahindra Scorpio",
		"Toyota Innova", "Ford EcoSport", "Renault Duster", "Kia Seltos", "MG Hector",
	}
	tiers := []model.CustomerTier{model.TierStandard, model.TierPremium, model.TierFleet}
	regions := []string{"North Delhi", "South Delhi", "Gurgaon", "Noida", "Faridabad"}

	for i := 1; i <= seedCount; i++ {
		v := model.Vehicle{
			ID:              fmt.Sprintf("V%03d", i),
			VIN:             fmt.Sprintf("1HGBH41JXMN%06d", 100000+i),
			Model:           models[rng.Intn(len(models))],
			Year:            2015 + rng.Intn(10),
			OwnerName:       fmt.Sprintf("Customer %d", i),
			OwnerContact:    fmt.Sprintf("+91-98765%05d", 43210+i),
			Region:          regions[rng.Intn(len(regions))],
			Mileage:         10000 + rng.Intn(90000),
			LastServiceDate: now.AddDate(0, 0, -(30 + rng.Intn(335))),
			Tier:            tiers[rng.Intn(len(tiers))],
		}
		if err := st.UpsertVehicle(ctx, &v); err != nil {
			return fmt.Errorf("seed vehicle %s: %w", v.ID, err)
		}
	}

	// Flag roughly a third of the fleet so a first batch has work to do.
	flagged := 0
	for i := 1; i <= seedCount && flagged < seedCount/3; i += 3 {
		f := model.MaintenanceFlag{
			VehicleID:   fmt.Sprintf("V%03d", i),
			FlaggedAt:   now.AddDate(0, 0, -rng.Intn(8)),
			Severity:    float64(20 + rng.Intn(76)),
			RiskFactors: []string{"degraded oil quality"},
			Confidence:  0.65 + 0.33*rng.Float64(),
		}
		if err := st.CreateFlag(ctx, &f); err != nil {
			return fmt.Errorf("seed flag for %s: %w", f.VehicleID, err)
		}
		flagged++
	}

	fmt.Printf("seeded %d centers, %d technicians, %d vehicles, %d flags\n",
		len(centers), len(techs), seedCount, flagged)
	return nil
}
