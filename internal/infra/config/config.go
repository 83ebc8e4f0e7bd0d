package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	TempFramesDirName     = "temp_frames"
	RetainedFramesDirName = "frames"
)

var (
	ErrInvalidThreshold = errors.New("frames per artifact must be at least 1")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

type Config struct {
	RTSPURL       string `env:"RTSP_URL"       envDefault:"rtsp://example.com/stream"`
	RTSPTransport string `env:"RTSP_TRANSPORT" envDefault:"tcp"`
	OutputDir     string `env:"OUTPUT_DIR"     envDefault:"/videos"`

	PreloadSeconds       int           `env:"PRELOAD_TIME"           envDefault:"10"`
	CycleSeconds         int           `env:"CYCLE_TIME"             envDefault:"60"`
	CaptureTimeoutBuffer time.Duration `env:"CAPTURE_TIMEOUT_BUFFER" envDefault:"30s"`
	ImageWidth           int           `env:"IMAGE_WIDTH"            envDefault:"1920"`
	ImageHeight          int           `env:"IMAGE_HEIGHT"           envDefault:"1080"`

	VideoFPS           int           `env:"VIDEO_FPS"            envDefault:"24"`
	VideoQuality       int           `env:"VIDEO_QUALITY"        envDefault:"23"`
	VideoPreset        string        `env:"VIDEO_PRESET"         envDefault:"medium"`
	VideoDurationHours float64       `env:"VIDEO_DURATION_HOURS" envDefault:"24"`
	AssemblyTimeout    time.Duration `env:"ASSEMBLY_TIMEOUT"     envDefault:"30m"`

	KeepFrames    bool          `env:"KEEP_FRAMES"    envDefault:"false"`
	ArchiveFrames bool          `env:"ARCHIVE_FRAMES" envDefault:"false"`
	ErrorBackoff  time.Duration `env:"ERROR_BACKOFF"  envDefault:"0s"`

	AutoMigrate           bool          `env:"AUTO_MIGRATE"            envDefault:"true"`
	DeleteOldFrames       bool          `env:"DELETE_OLD_FRAMES"       envDefault:"true"`
	SkipMigrationConfirm  bool          `env:"SKIP_MIGRATION_CONFIRM"  envDefault:"true"`
	MigrationConfirmDelay time.Duration `env:"MIGRATION_CONFIRM_DELAY" envDefault:"10s"`
	FramesDir             string        `env:"FRAMES_DIR"`
	FramesPerVideo        int           `env:"FRAMES_PER_VIDEO"        envDefault:"1440"`
	MigrationGroupHours   float64       `env:"MIGRATION_GROUP_HOURS"   envDefault:"24"`

	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	LogLevel       string `env:"LOG_LEVEL"       envDefault:"info"`
	MetricsPort    int    `env:"METRICS_PORT"    envDefault:"9090"`
	JaegerEndpoint string `env:"JAEGER_ENDPOINT"`

	DatabaseURL string `env:"DATABASE_URL"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
	MinIOBucket    string `env:"MINIO_BUCKET"     envDefault:"timelapses"`
	UploadRetries  int    `env:"UPLOAD_RETRIES"   envDefault:"3"`

	RabbitMQURL      string `env:"RABBITMQ_URL"`
	RabbitMQExchange string `env:"RABBITMQ_EXCHANGE" envDefault:"timelapse.events"`

	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT"       envDefault:"25"`
	SMTPFrom       string `env:"SMTP_FROM"       envDefault:"timelapse@localhost"`
	NotificationTo string `env:"NOTIFICATION_TO"`
}

// Load reads the environment once and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.CycleSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: CYCLE_TIME must be positive, got %d", ErrInvalidConfig, c.CycleSeconds))
	}
	if c.PreloadSeconds < 0 {
		errs = append(errs, fmt.Errorf("%w: PRELOAD_TIME must not be negative, got %d", ErrInvalidConfig, c.PreloadSeconds))
	}
	if c.VideoFPS <= 0 {
		errs = append(errs, fmt.Errorf("%w: VIDEO_FPS must be positive, got %d", ErrInvalidConfig, c.VideoFPS))
	}
	if c.FramesPerVideo < 1 {
		errs = append(errs, fmt.Errorf("%w: FRAMES_PER_VIDEO must be at least 1, got %d", ErrInvalidConfig, c.FramesPerVideo))
	}
	if c.MigrationGroupHours <= 0 {
		errs = append(errs, fmt.Errorf("%w: MIGRATION_GROUP_HOURS must be positive, got %g", ErrInvalidConfig, c.MigrationGroupHours))
	}
	if c.OutputDir == "" {
		errs = append(errs, fmt.Errorf("%w: OUTPUT_DIR must be set", ErrInvalidConfig))
	}
	if c.CycleSeconds > 0 {
		if _, err := Threshold(c.VideoDurationHours, c.CycleSeconds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Threshold is the number of captured frames that make up one artifact:
// floor(hours*3600/interval).
func Threshold(durationHours float64, intervalSeconds int) (int, error) {
	if intervalSeconds <= 0 {
		return 0, fmt.Errorf("%w: capture interval must be positive, got %d", ErrInvalidThreshold, intervalSeconds)
	}
	n := math.Floor(durationHours * 3600 / float64(intervalSeconds))
	if math.IsNaN(n) || n < 1 {
		return 0, fmt.Errorf("%w: %g hours at one frame every %ds", ErrInvalidThreshold, durationHours, intervalSeconds)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %g hours at one frame every %ds overflows", ErrInvalidThreshold, durationHours, intervalSeconds)
	}
	return int(n), nil
}

// FramesPerArtifact is the validated accumulator threshold.
func (c *Config) FramesPerArtifact() int {
	n, _ := Threshold(c.VideoDurationHours, c.CycleSeconds)
	return n
}

func (c *Config) PreloadDelay() time.Duration {
	return time.Duration(c.PreloadSeconds) * time.Second
}

func (c *Config) CaptureTimeout() time.Duration {
	return c.PreloadDelay() + c.CaptureTimeoutBuffer
}

// SleepInterval is the idle time after each capture: cycle minus preload,
// never negative.
func (c *Config) SleepInterval() time.Duration {
	d := time.Duration(c.CycleSeconds-c.PreloadSeconds) * time.Second
	if d < 0 {
		return 0
	}
	return d
}

func (c *Config) RetryDelay() time.Duration {
	if c.ErrorBackoff > 0 {
		return c.ErrorBackoff
	}
	return c.SleepInterval()
}

func (c *Config) TempFramesDir() string {
	return filepath.Join(c.OutputDir, TempFramesDirName)
}

// RetainedFramesDir holds frames kept by KEEP_FRAMES after their batch was
// assembled.
func (c *Config) RetainedFramesDir() string {
	return filepath.Join(c.OutputDir, RetainedFramesDirName)
}

func (c *Config) LegacyFramesDir() string {
	if c.FramesDir != "" {
		return c.FramesDir
	}
	return c.OutputDir
}

func (c *Config) MigrationGroupSpan() time.Duration {
	return time.Duration(c.MigrationGroupHours * float64(time.Hour))
}
