package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/cezhdo/pkg/hdo"
	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/storage"
	"github.com/raterudder/cezhdo/pkg/types"
)

// seeds the firestore emulator with bindings and a stored remote schedule
// for local development
func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	bindings := []types.BindingConfig{
		{Command: "CHLV1", Region: "stred", LowTariffPrice: 2.1, HighTariffPrice: 4.3},
		{Command: "ZAV1", Region: "zapad", LowTariffPrice: 1.9, HighTariffPrice: 3.8},
		// only resolvable with -remote-schedules
		{Command: "A1B5DP6", Region: "morava", LowTariffPrice: 2, HighTariffPrice: 4},
	}
	for _, b := range bindings {
		if err := s.SetBinding(ctx, b, types.CurrentBindingVersion); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed binding", slog.String("binding", b.ID()), slog.Any("error", err))
			os.Exit(1)
		}
	}

	// a last known good payload so the remote binding works offline
	weekdays, err := hdo.NewEntry("Po - Pa", "0:00", "6:00", "13:00", "15:00", "20:00", "23:59")
	if err != nil {
		panic(err)
	}
	weekend, err := hdo.NewEntry("So - Ne", "0:00", "8:00", "12:00", "23:59")
	if err != nil {
		panic(err)
	}
	payload, err := hdo.MarshalPayload(hdo.Schedule{weekdays, weekend})
	if err != nil {
		panic(err)
	}
	err = s.SetSchedule(ctx, storage.StoredSchedule{
		Region:    "morava",
		Code:      "A1B5DP6",
		Payload:   payload,
		FetchedAt: time.Now().Add(-24 * time.Hour),
	})
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed schedule", slog.Any("error", err))
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded", slog.Int("bindings", len(bindings)))
}
