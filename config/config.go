// Package config loads the service configuration with the precedence
// defaults, then YAML file, then environment variables prefixed with
// BLOCKBENCH_.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Sessions   SessionsConfig   `yaml:"sessions" env:"SESSIONS"`
	Browser    BrowserConfig    `yaml:"browser" env:"BROWSER"`
	Perception PerceptionConfig `yaml:"perception" env:"PERCEPTION"`
	Recording  RecordingConfig  `yaml:"recording" env:"RECORDING"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RateLimit is the per-client request budget in requests per second.
	// Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
}

// SessionsConfig holds the pool lifecycle settings.
type SessionsConfig struct {
	MaxSessions   int           `yaml:"max_sessions" env:"MAX_SESSIONS"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// BrowserConfig holds the page engine settings.
type BrowserConfig struct {
	EditorURL      string `yaml:"editor_url" env:"EDITOR_URL"`
	Headless       bool   `yaml:"headless" env:"HEADLESS"`
	ViewportWidth  int    `yaml:"viewport_width" env:"VIEWPORT_WIDTH"`
	ViewportHeight int    `yaml:"viewport_height" env:"VIEWPORT_HEIGHT"`
}

// PerceptionConfig holds the OCR sidecar settings.
type PerceptionConfig struct {
	OCRServiceURL string        `yaml:"ocr_service_url" env:"OCR_SERVICE_URL"`
	OCRTimeout    time.Duration `yaml:"ocr_timeout" env:"OCR_TIMEOUT"`
	MinConfidence float64       `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	// HideCoveredOCROnCanvas drops OCR text boxes sitting under canvas
	// blocks during fusion.
	HideCoveredOCROnCanvas bool `yaml:"hide_covered_ocr_on_canvas" env:"HIDE_COVERED_OCR_ON_CANVAS"`
}

// RecordingConfig holds the capture settings.
type RecordingConfig struct {
	Dir     string `yaml:"dir" env:"DIR"`
	Quality string `yaml:"quality" env:"QUALITY"`
}

// LogConfig holds the zap logger settings.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       0,
			RateBurst:       20,
		},
		Sessions: SessionsConfig{
			MaxSessions:   100,
			TTL:           900 * time.Second,
			SweepInterval: 30 * time.Second,
		},
		Browser: BrowserConfig{
			EditorURL:      "http://localhost:8601/",
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 720,
		},
		Perception: PerceptionConfig{
			OCRServiceURL:          "http://localhost:8002",
			OCRTimeout:             30 * time.Second,
			MinConfidence:          0.5,
			HideCoveredOCROnCanvas: true,
		},
		Recording: RecordingConfig{
			Dir:     "recordings",
			Quality: "medium",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Loader builds a Config from its sources.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with the BLOCKBENCH env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "BLOCKBENCH"}
}

// WithConfigPath sets the YAML file to read. A missing file is not an
// error; defaults apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the configuration with full precedence and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}
	if err := setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []string
	if c.Sessions.MaxSessions < 0 {
		errs = append(errs, "max_sessions must not be negative")
	}
	if c.Sessions.TTL < 0 {
		errs = append(errs, "ttl must not be negative")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, "viewport dimensions must be positive")
	}
	if c.Perception.MinConfidence < 0 || c.Perception.MinConfidence > 1 {
		errs = append(errs, "min_confidence must be between 0 and 1")
	}
	switch c.Recording.Quality {
	case "low", "medium", "high":
	default:
		errs = append(errs, "quality must be one of low, medium, high")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	}
	return nil
}
