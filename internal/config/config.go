package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the recognition engine service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Address of the gRPC health service used by the call-control layer
	GRPCHealthAddr string `envconfig:"GRPC_HEALTH_ADDR" default:":50052"`

	// Acoustic/language model configuration
	ModelPath string `envconfig:"MODEL_PATH" required:"true"`

	// Audio configuration
	SampleRate      int `envconfig:"SAMPLE_RATE" default:"8000"`       // 8000 or 16000 Hz
	FrameDurationMs int `envconfig:"FRAME_DURATION_MS" default:"20"`   // Fixed media frame duration
	AudioBufferSize int `envconfig:"AUDIO_BUFFER_SIZE" default:"8192"` // Frame assembly buffer in bytes

	// Voice activity detection configuration
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold
	VADSpeechFrames    int     `envconfig:"VAD_SPEECH_FRAMES" default:"3"`        // Sustained frames before activity starts
	NoInputTimeoutMs   int     `envconfig:"NO_INPUT_TIMEOUT_MS" default:"5000"`   // Default no-input timeout
	SilenceTimeoutMs   int     `envconfig:"SILENCE_TIMEOUT_MS" default:"1000"`    // Default trailing-silence timeout

	// Result extraction configuration
	PartialMinFrames int `envconfig:"PARTIAL_MIN_FRAMES" default:"50"` // Decoded frames before partial results appear

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("SAMPLE_RATE must be 8000 or 16000, got %d", c.SampleRate)
	}
	if c.FrameDurationMs <= 0 {
		return fmt.Errorf("FRAME_DURATION_MS must be positive, got %d", c.FrameDurationMs)
	}
	if c.PartialMinFrames < 0 {
		return fmt.Errorf("PARTIAL_MIN_FRAMES must not be negative, got %d", c.PartialMinFrames)
	}
	return nil
}

// FrameSize returns the number of samples in one media frame
func (c *Config) FrameSize() int {
	return c.SampleRate * c.FrameDurationMs / 1000
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
