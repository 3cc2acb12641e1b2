package main

import (
	"context"
	"flag"
	"os"

	"portal_lead_distribution/internal/distribution/repository"
	"portal_lead_distribution/internal/distribution/seed"
	"portal_lead_distribution/platform/config"
	"portal_lead_distribution/platform/db"
	"portal_lead_distribution/platform/logger"
)

func main() {
	path := flag.String("file", "groups.yaml", "YAML file with ponds and groups")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting group seed", "file", *path)

	in, err := os.Open(*path)
	if err != nil {
		log.Error("failed to open seed file", "error", err)
		panic("failed to open seed file: " + err.Error())
	}
	defer func() { _ = in.Close() }()

	file, err := seed.Parse(in)
	if err != nil {
		log.Error("invalid seed file", "error", err)
		panic("invalid seed file: " + err.Error())
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if cfg.GetMigrationsAutoRun() {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
	}

	if err := seed.Apply(ctx, repository.New(pool), file); err != nil {
		log.Error("group seed failed", "error", err)
		panic("group seed failed: " + err.Error())
	}

	log.Info("group seed complete", "organizationId", file.OrganizationID, "groups", len(file.Groups), "ponds", len(file.Ponds))
}
