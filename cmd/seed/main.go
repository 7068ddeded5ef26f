package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	providers := flag.Int("providers", 25, "number of providers to create")
	subjects := flag.Int("subjects", 500, "number of subjects to create")
	rooms := flag.Int("rooms", 8, "number of rooms to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New("seed", "info").Error("config load error", "err", err)
		os.Exit(1)
	}
	logger := logging.New("seed", cfg.LogLevel)
	logger.Info("seed starting", "store", cfg.StoreBackend)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = application.Close(context.Background()) }()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	reg := application.Registry

	if err := seedProviders(ctx, reg, faker, *providers, logger); err != nil {
		logger.Error("seed providers", "err", err)
		os.Exit(1)
	}
	if err := seedSubjects(ctx, reg, faker, *subjects, logger); err != nil {
		logger.Error("seed subjects", "err", err)
		os.Exit(1)
	}
	if err := seedRooms(ctx, reg, faker, *rooms, logger); err != nil {
		logger.Error("seed rooms", "err", err)
		os.Exit(1)
	}

	logger.Info("seed complete")
}

func seedProviders(ctx context.Context, reg *registry.Service, faker *gofakeit.Faker, count int, logger *slog.Logger) error {
	logger.Info("seeding providers", "count", count)
	for i := 0; i < count; i++ {
		_, err := reg.RegisterProvider(ctx, registry.NewProvider{
			Name:          "Dr. " + faker.Name(),
			LicenseNumber: fmt.Sprintf("LIC-%s", faker.Numerify("#######")),
			Specialty:     specialties[faker.Number(0, len(specialties)-1)],
		})
		if err != nil {
			return fmt.Errorf("provider %d: %w", i, err)
		}
	}
	return nil
}

func seedSubjects(ctx context.Context, reg *registry.Service, faker *gofakeit.Faker, count int, logger *slog.Logger) error {
	logger.Info("seeding subjects", "count", count)
	for i := 0; i < count; i++ {
		_, err := reg.RegisterSubject(ctx, registry.NewSubject{
			Name:  faker.Name(),
			Email: faker.Email(),
		})
		if err != nil {
			return fmt.Errorf("subject %d: %w", i, err)
		}
		if (i+1)%100 == 0 {
			logger.Info("subjects seeded", "done", i+1, "total", count)
		}
	}
	return nil
}

func seedRooms(ctx context.Context, reg *registry.Service, faker *gofakeit.Faker, count int, logger *slog.Logger) error {
	logger.Info("seeding rooms", "count", count)
	for i := 0; i < count; i++ {
		_, err := reg.RegisterRoom(ctx, registry.NewRoom{
			Name:     fmt.Sprintf("Room %d%02d", i/10+1, i%10+1),
			Location: faker.Street(),
			Capacity: faker.Number(1, 4),
		})
		if err != nil {
			return fmt.Errorf("room %d: %w", i, err)
		}
	}
	return nil
}
