package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playpcd/pcdtrainer/internal/pcd"
)

type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	// Demo adds the demo scenario when the store holds none.
	Demo bool
}

// Seed creates the first admin and, optionally, the demo scenario.
// Idempotent: existing admins and scenarios are left alone.
func Seed(ctx context.Context, logger *slog.Logger, store *DocStore, loader *ScenarioLoader, opts SeedOptions) error {
	created, err := store.EnsureAdmin(ctx, opts.AdminEmail, opts.AdminPassword)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	if created {
		logger.Info("admin account created", "email", opts.AdminEmail)
	}

	if !opts.Demo {
		return nil
	}
	existing, err := store.ListScenarios(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	sc := DemoScenario()
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("demo scenario: %w", err)
	}
	if err := loader.Create(ctx, sc); err != nil {
		return fmt.Errorf("seeding demo scenario: %w", err)
	}
	logger.Info("demo scenario seeded", "scenario", sc.ID, "flights", len(sc.Flights), "pcds", len(sc.PCDs))
	return nil
}

// DemoScenario is a small Madrid terminal area picture with two conflicts:
// a head-on pair at FL350 and a climber converging on a level aircraft.
func DemoScenario() *pcd.Scenario {
	fl := func(v float64) *float64 { return &v }
	return &pcd.Scenario{
		Name: "Madrid TMA demo",
		Flights: []pcd.FlightSnapshot{
			{ID: "IBE3421", Callsign: "IBE3421", Category: pcd.CategoryMedium, LatitudeDeg: 40.30, LongitudeDeg: -3.95, GroundSpeedKts: 450, TrackDeg: 90, AltitudeFt: 35000},
			{ID: "RYR12AB", Callsign: "RYR12AB", Category: pcd.CategoryMedium, LatitudeDeg: 40.31, LongitudeDeg: -3.55, GroundSpeedKts: 440, TrackDeg: 270, AltitudeFt: 35000},
			{ID: "AEA5501", Callsign: "AEA5501", Category: pcd.CategoryMedium, LatitudeDeg: 40.62, LongitudeDeg: -3.40, GroundSpeedKts: 380, TrackDeg: 225, AltitudeFt: 21000, VerticalSpeedFtpm: 1500, SelectedAltitudeFt: fl(28000)},
			{ID: "VLG77KP", Callsign: "VLG77KP", Category: pcd.CategoryMedium, LatitudeDeg: 40.45, LongitudeDeg: -3.70, GroundSpeedKts: 390, TrackDeg: 45, AltitudeFt: 25000},
			{ID: "UAE141", Callsign: "UAE141", Category: pcd.CategoryHeavy, LatitudeDeg: 40.05, LongitudeDeg: -4.25, GroundSpeedKts: 480, TrackDeg: 40, AltitudeFt: 39000},
			{ID: "ECMKL", Callsign: "ECMKL", Category: pcd.CategoryLight, LatitudeDeg: 40.85, LongitudeDeg: -3.10, GroundSpeedKts: 110, TrackDeg: 180, AltitudeFt: 4500},
			{ID: "AFR1301", Callsign: "AFR1301", Category: pcd.CategoryMedium, LatitudeDeg: 40.70, LongitudeDeg: -4.10, GroundSpeedKts: 300, TrackDeg: 135, AltitudeFt: 15000, VerticalSpeedFtpm: -1800, SelectedAltitudeFt: fl(9000)},
		},
		PCDs: []pcd.Pair{
			pcd.NewPair("IBE3421", "RYR12AB"),
			pcd.NewPair("AEA5501", "VLG77KP"),
		},
		Boundaries: pcd.BoundingBox{West: -4.5, South: 39.8, East: -2.9, North: 41.0},
		View:       pcd.View{Longitude: -3.7, Latitude: 40.4, Zoom: 8},
		CreatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
