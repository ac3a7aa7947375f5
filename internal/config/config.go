// Package config loads moodsense settings from a YAML file, MOODSENSE_*
// environment variables and built-in defaults, in that order of precedence
// (environment first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ayusman/moodsense/internal/detector"
	"github.com/ayusman/moodsense/internal/emitter"
	"github.com/ayusman/moodsense/internal/ingest"
	"github.com/ayusman/moodsense/internal/smoother"
)

// EnvPrefix prefixes environment overrides, e.g. MOODSENSE_SERVER_ADDR.
const EnvPrefix = "MOODSENSE"

// Source kinds.
const (
	SourceMediaPipe = "mediapipe"
	SourceZMQ       = "zmq"
	SourceReplay    = "replay"
)

// Config is the complete moodsense configuration, one section per component.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Source    SourceConfig    `mapstructure:"source"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Smoothing SmoothingConfig `mapstructure:"smoothing"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Hooks     HooksConfig     `mapstructure:"hooks"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Kind     string `mapstructure:"kind"`
	Codec    string `mapstructure:"codec"`
	Endpoint string `mapstructure:"endpoint"` // zmq
	File     string `mapstructure:"file"`     // replay

	Camera          int     `mapstructure:"camera"`
	MaxFaces        int     `mapstructure:"max_faces"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
	MinTrackingConf float64 `mapstructure:"min_tracking_confidence"`
	Script          string  `mapstructure:"script"`
	Python          string  `mapstructure:"python"`
	LogEvery        int     `mapstructure:"log_every"`
}

// ScoringConfig configures the emotion scorer.
type ScoringConfig struct {
	// RulesFile replaces the built-in rule table when set.
	RulesFile string `mapstructure:"rules_file"`
}

// SmoothingConfig configures the temporal smoother. Zero values fall back
// to the smoother defaults.
type SmoothingConfig struct {
	Capacity       int     `mapstructure:"capacity"`
	WarmUp         int     `mapstructure:"warm_up"`
	ConsensusRatio float64 `mapstructure:"consensus_ratio"`
}

// MQTTConfig configures the MQTT emitter. It is only used when Enabled is set.
type MQTTConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Broker     string `mapstructure:"broker"`
	ClientID   string `mapstructure:"client_id"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Topic      string `mapstructure:"topic"`
	QoS        int    `mapstructure:"qos"`
	PublishAll bool   `mapstructure:"publish_all"`
}

// HooksConfig configures plugin discovery and the per-run timeout.
type HooksConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig sets the logrus level and output format (text or json).
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DataDir returns ~/.moodsense, falling back to .moodsense in the working
// directory when the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".moodsense"
	}
	return filepath.Join(home, ".moodsense")
}

func setDefaults(v *viper.Viper) {
	dataDir := DataDir()
	det := detector.DefaultConfig()
	in := ingest.DefaultConfig()
	sm := smoother.DefaultConfig()
	em := emitter.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("store.path", filepath.Join(dataDir, "moodsense.db"))

	v.SetDefault("source.kind", SourceMediaPipe)
	v.SetDefault("source.codec", "")
	v.SetDefault("source.endpoint", in.Endpoint)
	v.SetDefault("source.file", "")
	v.SetDefault("source.camera", 0)
	v.SetDefault("source.max_faces", det.MaxFaces)
	v.SetDefault("source.min_confidence", det.MinConfidence)
	v.SetDefault("source.min_tracking_confidence", det.MinTrackingConf)
	v.SetDefault("source.script", "")
	v.SetDefault("source.python", "")
	v.SetDefault("source.log_every", in.LogEvery)

	v.SetDefault("scoring.rules_file", "")

	v.SetDefault("smoothing.capacity", sm.Capacity)
	v.SetDefault("smoothing.warm_up", sm.WarmUp)
	v.SetDefault("smoothing.consensus_ratio", sm.ConsensusRatio)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", em.Broker)
	v.SetDefault("mqtt.client_id", em.ClientID)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", em.Topic)
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.publish_all", false)

	v.SetDefault("hooks.enabled", true)
	v.SetDefault("hooks.dir", filepath.Join(dataDir, "plugins"))
	v.SetDefault("hooks.timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// searchPaths lists the config files tried when no file is given.
func searchPaths() []string {
	return []string{
		"moodsense.yaml",
		filepath.Join(DataDir(), "config.yaml"),
	}
}

// Load reads the configuration. An explicit path must exist; otherwise the
// first file found in the search paths is used, and defaults apply when
// there is none.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		for _, p := range searchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.WithField("file", v.ConfigFileUsed()).Debug("Loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceMediaPipe, SourceZMQ, SourceReplay:
	default:
		errs = append(errs, fmt.Errorf("source.kind: unknown source %q", c.Source.Kind))
	}
	if c.Source.Codec != "" {
		if _, err := detector.CodecByName(c.Source.Codec); err != nil {
			errs = append(errs, fmt.Errorf("source.codec: %w", err))
		}
	}
	if c.Smoothing.ConsensusRatio < 0 || c.Smoothing.ConsensusRatio > 1 {
		errs = append(errs, fmt.Errorf("smoothing.consensus_ratio: %v is outside [0, 1]", c.Smoothing.ConsensusRatio))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos: %d is not 0, 1 or 2", c.MQTT.QoS))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// DetectorConfig returns the MediaPipe bridge settings.
func (c *Config) DetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.MaxFaces = c.Source.MaxFaces
	cfg.MinConfidence = c.Source.MinConfidence
	cfg.MinTrackingConf = c.Source.MinTrackingConf
	cfg.CameraID = c.Source.Camera
	cfg.Script = c.Source.Script
	cfg.Python = c.Source.Python
	if c.Source.Codec != "" {
		cfg.Codec = c.Source.Codec
	}
	return cfg
}

// IngestConfig returns the ZMQ ingest settings.
func (c *Config) IngestConfig() ingest.Config {
	cfg := ingest.DefaultConfig()
	cfg.Endpoint = c.Source.Endpoint
	cfg.LogEvery = c.Source.LogEvery
	if c.Source.Codec != "" {
		cfg.Codec = c.Source.Codec
	}
	return cfg
}

// SmootherConfig returns the smoothing window settings.
func (c *Config) SmootherConfig() smoother.Config {
	return smoother.Config{
		Capacity:       c.Smoothing.Capacity,
		WarmUp:         c.Smoothing.WarmUp,
		ConsensusRatio: c.Smoothing.ConsensusRatio,
	}
}

// EmitterConfig returns the MQTT emitter settings.
func (c *Config) EmitterConfig() emitter.Config {
	return emitter.Config{
		Broker:     c.MQTT.Broker,
		ClientID:   c.MQTT.ClientID,
		Username:   c.MQTT.Username,
		Password:   c.MQTT.Password,
		Topic:      c.MQTT.Topic,
		QoS:        byte(c.MQTT.QoS),
		PublishAll: c.MQTT.PublishAll,
	}
}

// SetupLogging applies the log level and format to the standard logrus logger.
func SetupLogging(c LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	switch c.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}
