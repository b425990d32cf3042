package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AppConfigName is the base name of the application config file searched
// for in the working directory.
const AppConfigName = "ride-report"

// EnvPrefix prefixes environment overrides, e.g. RIDE_HTTP_LISTEN.
const EnvPrefix = "RIDE"

// AppConfig holds process-level settings. Tuning thresholds live in
// TuningConfig and are loaded from TuningPath.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database"`
	Tuning   TuningRef      `mapstructure:"tuning"`
	Detector DetectorConfig `mapstructure:"detector"`
	Report   ReportConfig   `mapstructure:"report"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// TuningRef points at an optional tuning JSON file.
type TuningRef struct {
	Path string `mapstructure:"path"`
}

// DetectorConfig configures the ONNX object detector.
type DetectorConfig struct {
	ModelPath     string  `mapstructure:"model_path"`
	InputSize     int     `mapstructure:"input_size"`
	ConfThreshold float64 `mapstructure:"conf_threshold"`
	NMSThreshold  float64 `mapstructure:"nms_threshold"`
}

type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// KafkaConfig configures critical-event publishing. Publishing is off
// unless Enabled is set and Brokers is non-empty.
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// HTTPConfig configures the API server. Analysis requests may only name
// videos under MediaDirs.
type HTTPConfig struct {
	Listen    string   `mapstructure:"listen"`
	MediaDirs []string `mapstructure:"media_dirs"`
}

// LogConfig selects the zap level and which package streams are attached.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Diag        bool   `mapstructure:"diag"`
	Trace       bool   `mapstructure:"trace"`
}

func setAppDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "ride_report.db")
	v.SetDefault("tuning.path", "")
	v.SetDefault("detector.model_path", "models/yolov8n.onnx")
	v.SetDefault("detector.input_size", 640)
	v.SetDefault("detector.conf_threshold", 0.25)
	v.SetDefault("detector.nms_threshold", 0.45)
	v.SetDefault("report.dir", "reports")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "ride.critical-events")
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.media_dirs", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.diag", false)
	v.SetDefault("log.trace", false)
}

// LoadAppConfig reads the application config. An explicit path must
// exist; with an empty path ride-report.yaml is looked up in the working
// directory and is optional. RIDE_* environment variables override both.
func LoadAppConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setAppDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(AppConfigName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the application settings.
func (c *AppConfig) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("detector.input_size must be a positive multiple of 32, got %d", c.Detector.InputSize)
	}
	for name, f := range map[string]float64{
		"detector.conf_threshold": c.Detector.ConfThreshold,
		"detector.nms_threshold":  c.Detector.NMSThreshold,
	} {
		if f < 0 || f > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, f)
		}
	}
	if c.Kafka.Enabled && (c.Kafka.Brokers == "" || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	return nil
}

// TuningThresholds resolves the configured tuning file, or the built-in
// defaults when none is set.
func (c *AppConfig) TuningThresholds() (Thresholds, error) {
	if c.Tuning.Path == "" {
		return DefaultThresholds(), nil
	}
	tc, err := LoadTuningConfig(c.Tuning.Path)
	if err != nil {
		return Thresholds{}, err
	}
	return tc.Thresholds(), nil
}
