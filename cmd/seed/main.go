package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kovalyov-valentin/news-digest/internal/config"
	"github.com/kovalyov-valentin/news-digest/internal/seed"
	"github.com/kovalyov-valentin/news-digest/internal/storage"
)

func main() {
	file := flag.String("file", config.Get().SeedFile, "yaml seed file, embedded default seed is used if it does not exist")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *file); err != nil {
		log.Printf("[ERROR] seed failed: %v", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, file string) error {
	doc, err := seed.Load(file)
	if err != nil {
		return err
	}

	db, err := storage.Open(ctx, config.Get().DatabaseDriver, config.Get().DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}

	stats, err := seed.Apply(ctx, doc, storage.NewSourceStorage(db), storage.NewUserStorage(db))
	if err != nil {
		return err
	}

	log.Printf("[INFO] seed applied: sources=%d users=%d subscriptions=%d", stats.Sources, stats.Users, stats.Subscriptions)

	return nil
}
