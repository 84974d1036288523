package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/repository/sqlite"
	"github.com/ranitraj/instaLens/internal/service/storage"
)

func main() {
	cfg := config.Load()
	imagesDir := flag.String("images", cfg.ImageDirectory, "Directory containing captures")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	lens := flag.String("lens", cfg.DefaultLens, "Lens recorded for captures missing from the index")
	flag.Parse()

	cfg.ImageDirectory = *imagesDir
	cfg.DatabasePath = *dbPath

	fmt.Printf("Indexing captures from %s into %s\n", cfg.ImageDirectory, cfg.DatabasePath)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	imageRepo := sqlite.NewImageRepository(db)
	sink := storage.NewGallerySink(cfg, logger.NewNop(), imageRepo)

	res, err := sink.Reindex(model.Lens(*lens))
	if err != nil {
		log.Fatalf("Failed to reindex: %v", err)
	}

	fmt.Printf("✅ Added %d capture(s) to the index\n", res.Added)
	if res.Skipped > 0 {
		fmt.Printf("⚠️  Skipped %d file(s) (invalid name or errors)\n", res.Skipped)
	}

	stats, err := imageRepo.GetStats()
	if err == nil {
		fmt.Printf("\n📊 Index Statistics:\n")
		fmt.Printf("   Total images: %d\n", stats.TotalImages)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
		fmt.Printf("   Per lens:\n")
		for lens, count := range stats.PerLens {
			fmt.Printf("      - %s: %d images\n", lens, count)
		}
	}
}
