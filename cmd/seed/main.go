package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"cover-studio/internal/config"
	"cover-studio/internal/domain/model"
	pg "cover-studio/internal/infra/db/postgres"
)

// Seeds the tier limit table and a demo user so a fresh environment can
// serve requests without manual SQL.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	tierRepo := pg.NewTierLimitRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	// If limits already exist, do nothing.
	existing, err := tierRepo.ListForTier(ctx, nil, model.TierFree)
	if err != nil {
		log.Fatalf("list tier limits: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d free-tier limits already present. No changes.\n", len(existing))
		return
	}

	limits := []model.TierLimit{
		{Tier: model.TierFree, OutputClass: "thumbnail", MaxIterations: 3, ResetsMonthly: true},
		{Tier: model.TierFree, OutputClass: "vertical", MaxIterations: 1, ResetsMonthly: true},
		{Tier: model.TierCreator, OutputClass: "thumbnail", MaxIterations: 30, ResetsMonthly: true},
		{Tier: model.TierCreator, OutputClass: "vertical", MaxIterations: 15, ResetsMonthly: true},
		{Tier: model.TierStudio, OutputClass: "thumbnail", IsUnlimited: true},
		{Tier: model.TierStudio, OutputClass: "vertical", IsUnlimited: true},
	}
	for i := range limits {
		if err := tierRepo.Save(ctx, nil, &limits[i]); err != nil {
			log.Fatalf("save limit %s/%s: %v", limits[i].Tier, limits[i].OutputClass, err)
		}
		fmt.Printf("seeded limit: %s/%s\n", limits[i].Tier, limits[i].OutputClass)
	}

	demo, err := model.NewUser("demo-user", "demo@example.com", model.TierCreator)
	if err != nil {
		log.Fatalf("demo user: %v", err)
	}
	demo.StyleAnchor = "bold, high-contrast, click-worthy video cover"
	if err := userRepo.Save(ctx, nil, demo); err != nil {
		log.Fatalf("save demo user: %v", err)
	}
	fmt.Printf("seeded user: %s (%s)\n", demo.ID, demo.Tier)

	fmt.Println("Seeding complete.")
}
