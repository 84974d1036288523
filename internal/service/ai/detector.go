// Package ai runs the detection model through OpenCV's DNN module.
package ai

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ranitraj/instaLens/internal/config"
	"github.com/ranitraj/instaLens/internal/logger"
	"github.com/ranitraj/instaLens/internal/service/detection"
)

// Detector is a detection.Engine backed by a gocv network.
type Detector struct {
	net       gocv.Net
	inputSize image.Point
	labels    detection.Labels
	logger    *logger.Logger
}

// NewEngineFactory returns a factory that loads the network configured in cfg.
func NewEngineFactory(cfg *config.Config, logger *logger.Logger) detection.EngineFactory {
	return func() (detection.Engine, error) {
		d, err := NewDetector(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// NewDetector loads the model and labels and applies the backend/target preference.
func NewDetector(cfg *config.Config, logger *logger.Logger) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, errors.Errorf("model file not found: %s", cfg.ModelPath)
	}

	var labels detection.Labels
	if cfg.LabelsPath != "" {
		l, err := detection.LoadLabels(cfg.LabelsPath)
		if err != nil {
			logger.Warning("Labels unavailable, detections will be unlabeled: %v", err)
		} else {
			labels = l
		}
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", cfg.ModelPath)
	}

	d := &Detector{
		net:       net,
		inputSize: image.Pt(cfg.ModelInputWidth, cfg.ModelInputHeight),
		labels:    labels,
		logger:    logger,
	}
	if err := d.applyTarget(cfg.ModelTarget); err != nil {
		net.Close()
		return nil, err
	}

	logger.Info("Detection network loaded from %s (%dx%d, target %s)", cfg.ModelPath, d.inputSize.X, d.inputSize.Y, cfg.ModelTarget)
	return d, nil
}

// applyTarget asks for the configured accelerator and falls back to the CPU if it is refused.
func (d *Detector) applyTarget(target string) error {
	backend := gocv.NetBackendDefault
	netTarget := gocv.NetTargetCPU
	if target != "" && target != "cpu" {
		netTarget = gocv.ParseNetTarget(target)
		if target == "cuda" || target == "cudafp16" {
			backend = gocv.NetBackendCUDA
		}
	}

	errBackend := d.net.SetPreferableBackend(backend)
	errTarget := d.net.SetPreferableTarget(netTarget)
	if errBackend == nil && errTarget == nil {
		return nil
	}

	d.logger.Warning("Target %q unavailable, falling back to CPU", target)
	errBackend = d.net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget = d.net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		return errors.New("failed to set preferable backend or target")
	}
	return nil
}

// Infer implements detection.Engine.
func (d *Detector) Infer(img image.Image) ([]detection.Object, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image")
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("converted image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	// Output rows: [batch_id, class_id, confidence, x1, y1, x2, y2]
	rows := output.Total() / 7
	reshaped := output.Reshape(1, rows)
	defer reshaped.Close()

	data := make([]float32, 0, rows*7)
	for i := 0; i < reshaped.Rows(); i++ {
		for j := 0; j < 7; j++ {
			data = append(data, reshaped.GetFloatAt(i, j))
		}
	}

	return detection.ParseSSD(data, mat.Cols(), mat.Rows(), d.labels), nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}
