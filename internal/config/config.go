// Package config loads the oxobuilder configuration file.
//
// Loading runs in a fixed order: .env files, environment expansion of the
// YAML text, decode, defaults, environment overrides, normalize, validate.
package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

// CurrentVersion is the only configuration format version understood.
const CurrentVersion = 1

// DefaultPath is the configuration file used when none is given.
const DefaultPath = "oxo.yaml"

// Config is the complete oxobuilder configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Remote    RemoteConfig    `yaml:"remote"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Notify    NotifyConfig    `yaml:"notify"`
	Build     BuildConfig     `yaml:"build"`
}

// WorkspaceConfig locates the project tree and the archive cache.
type WorkspaceConfig struct {
	Root     string `yaml:"root"`
	CacheDir string `yaml:"cache_dir"`
}

// RemoteConfig describes the build service.
type RemoteConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ArtifactConfig says where the downloaded binary lands.
type ArtifactConfig struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
}

// HistoryConfig locates the build event store.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// NotifyConfig enables NATS publication of finished builds when NATSURL is set.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// BuildConfig holds optional build automation.
type BuildConfig struct {
	// Schedule is a cron expression; builds fire through the dispatcher.
	Schedule string `yaml:"schedule"`

	// Interval fires builds at a fixed period instead of a cron expression.
	Interval time.Duration `yaml:"interval"`
}

// ArtifactPath joins the artifact directory and filename.
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.Artifact.Directory, c.Artifact.Filename)
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", path).
				WithCause(err).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read configuration file").
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but falls back to the defaults when path
// does not exist. found reports whether a file was read.
func LoadOrDefault(path string) (cfg *Config, found bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		loadEnvFiles()
		cfg = Default()
		applyEnvOverrides(cfg)
		if err := finish(cfg); err != nil {
			return nil, false, err
		}
		return cfg, false, nil
	}
	cfg, err = Load(path)
	return cfg, err == nil, err
}

// Parse decodes YAML text after expanding environment references.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode configuration").Build()
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).
			Build()
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	for _, w := range normalize(cfg) {
		slog.Warn("Configuration normalized", slog.String("detail", w))
	}
	return Validate(cfg)
}

// Init writes a default configuration file. An existing file is kept unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode default configuration").Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create configuration directory").
				WithContext("path", dir).
				Build()
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write configuration file").
			WithContext("path", path).
			Build()
	}
	slog.Info("Configuration written", logfields.Path(path))
	return nil
}
