package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/coords"
	"github.com/ranitraj/instaLens/internal/imageutil"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/model"
	"github.com/ranitraj/instaLens/internal/repository"
	"github.com/ranitraj/instaLens/internal/service/capture"
)

// maxNameSuffix bounds the _1, _2, ... suffixes tried for a colliding name.
const maxNameSuffix = 1000

// GallerySink writes finished captures to the image directory and indexes them.
type GallerySink struct {
	imagesDir string
	quality   int
	imageRepo repository.ImageRepository
	logger    *logger.Logger

	mu sync.Mutex // serializes name reservation and rename
}

// NewGallerySink creates a GallerySink. imageRepo may be nil, in which case captures are only written to disk.
func NewGallerySink(cfg *config.Config, logger *logger.Logger, imageRepo repository.ImageRepository) *GallerySink {
	return &GallerySink{
		imagesDir: cfg.ImageDirectory,
		quality:   cfg.JPEGQuality,
		imageRepo: imageRepo,
		logger:    logger,
	}
}

// Dir returns the image directory.
func (s *GallerySink) Dir() string {
	return s.imagesDir
}

// Save encodes img as <name>.jpg and records it with detections mapped into its pixel space.
// Nothing is left under the final name when any step fails.
func (s *GallerySink) Save(ctx context.Context, img image.Image, name string, lens model.Lens, detections []model.Detection) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create image directory")
	}

	tmpPath, size, err := s.writeTemp(img, name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filename, err := s.reserve(name)
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	fullpath := filepath.Join(s.imagesDir, filename)

	if err := os.Rename(tmpPath, fullpath); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrapf(err, "failed to move %s into place", filename)
	}

	if s.imageRepo == nil {
		return filename, nil
	}

	captured := model.Size{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	records := make([]model.DetectionRecord, 0, len(detections))
	for _, det := range detections {
		box := coords.CaptureMap(det.Box, det.Source(), captured)
		records = append(records, model.DetectionRecord{
			Label:      det.Label,
			Left:       box.Left,
			Top:        box.Top,
			Right:      box.Right,
			Bottom:     box.Bottom,
			Confidence: det.Score,
		})
	}

	dbImage := &model.Image{
		Filename:  filename,
		Lens:      lens,
		Timestamp: ParseName(name),
		FilePath:  fullpath,
		FileSize:  size,
	}
	if _, err := s.imageRepo.InsertWithDetections(dbImage, records); err != nil {
		os.Remove(fullpath)
		return "", errors.Wrapf(err, "failed to index %s", filename)
	}

	return filename, nil
}

func (s *GallerySink) writeTemp(img image.Image, name string) (string, int64, error) {
	tmp, err := os.CreateTemp(s.imagesDir, "."+name+"-*.tmp")
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to create temp file")
	}
	fail := func(err error, msg string) (string, int64, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", 0, errors.Wrap(err, msg)
	}

	if err := imageutil.EncodeJPEG(tmp, img, s.quality); err != nil {
		return fail(err, "failed to write capture")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "failed to sync capture")
	}
	info, err := tmp.Stat()
	if err != nil {
		return fail(err, "failed to stat capture")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", 0, errors.Wrap(err, "failed to close capture")
	}
	return tmp.Name(), info.Size(), nil
}

// reserve returns the first free filename among name.jpg, name_1.jpg, name_2.jpg, ...
func (s *GallerySink) reserve(name string) (string, error) {
	for i := 0; i < maxNameSuffix; i++ {
		filename := name + ".jpg"
		if i > 0 {
			filename = fmt.Sprintf("%s_%d.jpg", name, i)
		}
		taken, err := s.taken(filename)
		if err != nil {
			return "", err
		}
		if !taken {
			return filename, nil
		}
	}
	return "", errors.Errorf("no free filename for %s", name)
}

func (s *GallerySink) taken(filename string) (bool, error) {
	if _, err := os.Stat(filepath.Join(s.imagesDir, filename)); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, errors.Wrap(err, "failed to check capture name")
	}
	if s.imageRepo == nil {
		return false, nil
	}
	return s.imageRepo.Exists(filename)
}

// ParseName recovers the capture time from a name or filename such as
// IMG_20240517_090307.jpg or IMG_20240517_090307_1.jpg. It returns the zero time when the
// name does not follow the capture pattern.
func ParseName(name string) time.Time {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.TrimPrefix(base, "IMG_")
	if len(base) < len(capture.NameLayout) {
		return time.Time{}
	}
	t, err := time.ParseInLocation(capture.NameLayout, base[:len(capture.NameLayout)], time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ReindexResult summarizes a Reindex run.
type ReindexResult struct {
	Added   int
	Skipped int
}

// Reindex adds every IMG_*.jpg in the image directory that is missing from the index.
// Files whose name carries no capture time are skipped. lens is recorded for added files.
func (s *GallerySink) Reindex(lens model.Lens) (ReindexResult, error) {
	var res ReindexResult
	if s.imageRepo == nil {
		return res, errors.New("no image index configured")
	}

	files, err := os.ReadDir(s.imagesDir)
	if err != nil {
		return res, errors.Wrap(err, "failed to read image directory")
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "IMG_") || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		ts := ParseName(file.Name())
		if ts.IsZero() {
			s.logger.Warning("⚠️  Skipping %s: not a capture name", file.Name())
			res.Skipped++
			continue
		}

		exists, err := s.imageRepo.Exists(file.Name())
		if err != nil {
			return res, err
		}
		if exists {
			continue
		}

		info, err := file.Info()
		if err != nil {
			s.logger.Warning("⚠️  Failed to get info for %s: %v", file.Name(), err)
			res.Skipped++
			continue
		}

		_, err = s.imageRepo.Insert(&model.Image{
			Filename:  file.Name(),
			Lens:      lens,
			Timestamp: ts,
			FilePath:  filepath.Join(s.imagesDir, file.Name()),
			FileSize:  info.Size(),
		})
		if err != nil {
			return res, err
		}
		res.Added++
	}

	s.logger.Info("Reindexed %s: %d added, %d skipped", s.imagesDir, res.Added, res.Skipped)
	return res, nil
}

var _ capture.Sink = (*GallerySink)(nil)
