package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/evaclass/eva-api/pkg/config"
	"github.com/evaclass/eva-api/pkg/storage"
)

// Removes export files older than the retention window. Meant to run from
// cron on hosts where the API itself is not restarted often enough for the
// in-process cleanup to keep up.
func main() {
	var (
		dir    string
		maxAge time.Duration
		dryRun bool
	)

	flag.StringVar(&dir, "dir", "", "Export storage directory (defaults to EXPORTS_STORAGE_DIR)")
	flag.DurationVar(&maxAge, "max-age", 0, "Delete files older than this (defaults to EXPORTS_SIGNED_URL_TTL)")
	flag.BoolVar(&dryRun, "dry-run", false, "List candidates without deleting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if dir == "" {
		dir = cfg.Exports.StorageDir
	}
	if maxAge <= 0 {
		maxAge = cfg.Exports.SignedURLTTL
	}

	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		log.Fatalf("failed to open export storage: %v", err)
	}

	if dryRun {
		fmt.Printf("would delete files older than %s under %s\n", maxAge, dir)
		return
	}

	removed, err := store.CleanupOlderThan(maxAge)
	if err != nil {
		log.Fatalf("cleanup failed: %v", err)
	}

	for _, path := range removed {
		fmt.Println("removed", path)
	}
	fmt.Printf("removed %d file(s)\n", len(removed))
}
