package storage

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/repository"
	"github.com/ranitraj/instaLens/internal/repository/sqlite"
)

// ========================================
// Helpers
// ========================================

func newSink(t *testing.T, repo repository.ImageRepository) *GallerySink {
	t.Helper()
	cfg := &config.Config{ImageDirectory: filepath.Join(t.TempDir(), "images"), JPEGQuality: 90}
	return NewGallerySink(cfg, logger.NewNop(), repo)
}

func newRepos(t *testing.T) (*sqlite.ImageRepository, *sqlite.DetectionRepository) {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlite.NewImageRepository(db), sqlite.NewDetectionRepository(db)
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	return img
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type failingRepo struct {
	repository.ImageRepository
}

func (failingRepo) Exists(string) (bool, error) { return false, nil }

func (failingRepo) InsertWithDetections(*model.Image, []model.DetectionRecord) (int64, error) {
	return 0, errors.New("database is locked")
}

// ========================================
// Save Tests
// ========================================

func TestGallerySink_SaveWritesAndIndexes(t *testing.T) {
	images, detections := newRepos(t)
	sink := newSink(t, images)

	dets := []model.Detection{{
		Box: model.Rect{Left: 10, Top: 10, Right: 20, Bottom: 30}, Label: "cat", Score: 0.9,
		SourceWidth: 100, SourceHeight: 100,
	}}

	filename, err := sink.Save(context.Background(), testImage(200, 50), "IMG_20240517_090307", model.LensFront, dets)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filename != "IMG_20240517_090307.jpg" {
		t.Errorf("Expected IMG_20240517_090307.jpg, got %s", filename)
	}

	names := listDir(t, sink.Dir())
	if len(names) != 1 || names[0] != filename {
		t.Errorf("Expected only the final file, got %v", names)
	}

	img, err := images.GetByFilename(filename)
	if err != nil || img == nil {
		t.Fatalf("Image not indexed: %v", err)
	}
	if img.Lens != model.LensFront || img.FileSize == 0 {
		t.Errorf("Unexpected image record: %+v", img)
	}
	if img.Timestamp.Hour() != 9 || img.Timestamp.Minute() != 3 {
		t.Errorf("Expected timestamp from name, got %v", img.Timestamp)
	}

	recs, err := detections.GetByImageID(img.ID)
	if err != nil || len(recs) != 1 {
		t.Fatalf("Expected one detection record, got %d (%v)", len(recs), err)
	}
	// 100x100 source onto 200x50 capture
	want := model.DetectionRecord{Left: 20, Top: 5, Right: 40, Bottom: 15}
	if recs[0].Left != want.Left || recs[0].Top != want.Top || recs[0].Right != want.Right || recs[0].Bottom != want.Bottom {
		t.Errorf("Expected capture space box %+v, got %+v", want, recs[0])
	}
}

func TestGallerySink_CollisionSuffix(t *testing.T) {
	images, _ := newRepos(t)
	sink := newSink(t, images)

	var got []string
	for i := 0; i < 3; i++ {
		filename, err := sink.Save(context.Background(), testImage(8, 8), "IMG_20240517_090307", model.LensBack, nil)
		if err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
		got = append(got, filename)
	}

	want := []string{"IMG_20240517_090307.jpg", "IMG_20240517_090307_1.jpg", "IMG_20240517_090307_2.jpg"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Save %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestGallerySink_IndexFailureLeavesNoFile(t *testing.T) {
	sink := newSink(t, failingRepo{})

	_, err := sink.Save(context.Background(), testImage(8, 8), "IMG_20240517_090307", model.LensBack, nil)
	if err == nil {
		t.Fatal("Expected index error")
	}
	if !strings.Contains(err.Error(), "database is locked") {
		t.Errorf("Expected wrapped cause, got %v", err)
	}

	if names := listDir(t, sink.Dir()); len(names) != 0 {
		t.Errorf("Expected empty image directory, got %v", names)
	}
}

func TestGallerySink_CancelledContext(t *testing.T) {
	sink := newSink(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sink.Save(ctx, testImage(8, 8), "IMG_20240517_090307", model.LensBack, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestGallerySink_WithoutIndex(t *testing.T) {
	sink := newSink(t, nil)

	filename, err := sink.Save(context.Background(), testImage(8, 8), "IMG_20240517_090307", model.LensBack, nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sink.Dir(), filename)); err != nil {
		t.Errorf("Expected file on disk: %v", err)
	}
}

// ========================================
// Name and Reindex Tests
// ========================================

func TestParseName(t *testing.T) {
	tests := []struct {
		name string
		want time.Time
	}{
		{"IMG_20240517_090307.jpg", time.Date(2024, 5, 17, 9, 3, 7, 0, time.Local)},
		{"IMG_20240517_090307_2.jpg", time.Date(2024, 5, 17, 9, 3, 7, 0, time.Local)},
		{"IMG_20240517_090307", time.Date(2024, 5, 17, 9, 3, 7, 0, time.Local)},
		{"holiday.jpg", time.Time{}},
		{"IMG_2024.jpg", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseName(tt.name); !got.Equal(tt.want) {
				t.Errorf("ParseName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestGallerySink_Reindex(t *testing.T) {
	images, _ := newRepos(t)
	sink := newSink(t, images)

	if _, err := sink.Save(context.Background(), testImage(8, 8), "IMG_20240101_000000", model.LensFront, nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for _, name := range []string{"IMG_20240102_101010.jpg", "IMG_bad.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(sink.Dir(), name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	res, err := sink.Reindex(model.LensBack)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if res.Added != 1 || res.Skipped != 1 {
		t.Errorf("Expected 1 added and 1 skipped, got %+v", res)
	}

	img, _ := images.GetByFilename("IMG_20240102_101010.jpg")
	if img == nil || img.Lens != model.LensBack {
		t.Errorf("Expected reindexed back lens image, got %+v", img)
	}

	count, _ := images.GetTotalCount(nil)
	if count != 2 {
		t.Errorf("Expected 2 indexed images, got %d", count)
	}
}
