package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultModelPath is the detection model loaded when MODEL_PATH is unset.
const DefaultModelPath = "efficientdet-lite1.tflite"

type Config struct {
	Port        int
	CamerasPort int
	Debug       bool

	ModelPath        string
	LabelsPath       string
	ModelInputWidth  int
	ModelInputHeight int
	MaxResults       int
	ModelTarget      string // cpu, fp32, fp16, vpu, cuda, cudafp16

	FramesPerAnalysis int     // Analyze every Nth frame
	InitialConfidence float64 // Threshold at startup, adjustable at runtime
	FrameQueueSize    int

	ImageDirectory string
	DatabasePath   string
	LogDirectory   string

	JPEGQuality       int
	StrokeWidth       float64
	TextSize          float64
	LabelMargin       float64
	MirrorFrontCamera bool
	DefaultLens       string
}

// Load reads .env (if any), the optional instalens.yaml and the environment, in rising priority.
func Load() *Config {
	_ = godotenv.Load()
	return load(newViper("."))
}

// LoadFile is Load with an explicit directory to search for instalens.yaml.
func LoadFile(dir string) *Config {
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	return load(newViper(dir))
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("instalens")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("cameras_port", 8081)
	v.SetDefault("debug", false)
	v.SetDefault("model_path", DefaultModelPath)
	v.SetDefault("labels_path", "labels.txt")
	v.SetDefault("model_input_width", 384)
	v.SetDefault("model_input_height", 384)
	v.SetDefault("model_max_results", 10)
	v.SetDefault("model_target", "cpu")
	v.SetDefault("frames_per_analysis", 60)
	v.SetDefault("initial_confidence", 0.5)
	v.SetDefault("frame_queue_size", 4)
	v.SetDefault("image_dir", filepath.Join(".", "images"))
	v.SetDefault("db_path", filepath.Join(".", "data", "instalens.db"))
	v.SetDefault("log_dir", filepath.Join(".", "logs"))
	v.SetDefault("jpeg_quality", 100)
	v.SetDefault("stroke_width", 8.0)
	v.SetDefault("text_size", 20.0)
	v.SetDefault("label_margin", 10.0)
	v.SetDefault("mirror_front_camera", false)
	v.SetDefault("default_lens", "back")

	// A missing config file is fine; defaults and env cover everything.
	_ = v.ReadInConfig()
	return v
}

func load(v *viper.Viper) *Config {
	return &Config{
		Port:              v.GetInt("port"),
		CamerasPort:       v.GetInt("cameras_port"),
		Debug:             v.GetBool("debug"),
		ModelPath:         v.GetString("model_path"),
		LabelsPath:        v.GetString("labels_path"),
		ModelInputWidth:   v.GetInt("model_input_width"),
		ModelInputHeight:  v.GetInt("model_input_height"),
		MaxResults:        v.GetInt("model_max_results"),
		ModelTarget:       strings.ToLower(v.GetString("model_target")),
		FramesPerAnalysis: v.GetInt("frames_per_analysis"),
		InitialConfidence: v.GetFloat64("initial_confidence"),
		FrameQueueSize:    v.GetInt("frame_queue_size"),
		ImageDirectory:    v.GetString("image_dir"),
		DatabasePath:      v.GetString("db_path"),
		LogDirectory:      v.GetString("log_dir"),
		JPEGQuality:       v.GetInt("jpeg_quality"),
		StrokeWidth:       v.GetFloat64("stroke_width"),
		TextSize:          v.GetFloat64("text_size"),
		LabelMargin:       v.GetFloat64("label_margin"),
		MirrorFrontCamera: v.GetBool("mirror_front_camera"),
		DefaultLens:       strings.ToLower(v.GetString("default_lens")),
	}
}

// Validate reports the first setting that would break the pipeline.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return errors.Errorf("invalid PORT %d", c.Port)
	case c.CamerasPort < 0 || c.CamerasPort > 65535:
		return errors.Errorf("invalid CAMERAS_PORT %d", c.CamerasPort)
	case c.FramesPerAnalysis <= 0:
		return errors.Errorf("FRAMES_PER_ANALYSIS must be positive, got %d", c.FramesPerAnalysis)
	case c.MaxResults <= 0:
		return errors.Errorf("MODEL_MAX_RESULTS must be positive, got %d", c.MaxResults)
	case c.ModelInputWidth <= 0 || c.ModelInputHeight <= 0:
		return errors.Errorf("invalid model input %dx%d", c.ModelInputWidth, c.ModelInputHeight)
	case c.InitialConfidence < 0 || c.InitialConfidence > 1:
		return errors.Errorf("INITIAL_CONFIDENCE must be within [0,1], got %v", c.InitialConfidence)
	case c.FrameQueueSize <= 0:
		return errors.Errorf("FRAME_QUEUE_SIZE must be positive, got %d", c.FrameQueueSize)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return errors.Errorf("JPEG_QUALITY must be within 1..100, got %d", c.JPEGQuality)
	case c.StrokeWidth <= 0 || c.TextSize <= 0:
		return errors.New("STROKE_WIDTH and TEXT_SIZE must be positive")
	case c.DefaultLens != "back" && c.DefaultLens != "front":
		return errors.Errorf("DEFAULT_LENS must be back or front, got %q", c.DefaultLens)
	}
	return nil
}
