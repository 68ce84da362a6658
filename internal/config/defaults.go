package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/workspace"
)

// Defaults.
const (
	DefaultEndpoint         = "https://your-oxo-service.onrender.com/build"
	DefaultTimeout          = 10 * time.Minute
	DefaultWorkspaceRoot    = "./OxoProject"
	DefaultCacheDir         = ".oxo/cache"
	DefaultArtifactDir      = ".oxo/artifacts"
	DefaultArtifactFilename = "OxoBuild.apk"
	DefaultHistoryPath      = ".oxo/history.db"
	DefaultNotifySubject    = "oxo.builds"
)

// EnvEndpoint overrides remote.endpoint.
const EnvEndpoint = "OXO_ENDPOINT"

var envFiles = []string{".env", ".env.local"}

// Default returns a configuration with every field at its default.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = DefaultWorkspaceRoot
	}
	if cfg.Workspace.CacheDir == "" {
		cfg.Workspace.CacheDir = DefaultCacheDir
	}
	if cfg.Remote.Endpoint == "" {
		cfg.Remote.Endpoint = DefaultEndpoint
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = DefaultTimeout
	}
	if cfg.Artifact.Directory == "" {
		cfg.Artifact.Directory = DefaultArtifactDir
	}
	if cfg.Artifact.Filename == "" {
		cfg.Artifact.Filename = DefaultArtifactFilename
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}
}

// loadEnvFiles reads .env files that exist. Variables already set in the
// process environment win.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", name, err)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvEndpoint)); v != "" {
		cfg.Remote.Endpoint = v
	}
}

// normalize trims whitespace and cleans paths. It returns human readable
// notes for values it had to change beyond trimming.
func normalize(cfg *Config) []string {
	var warnings []string

	cfg.Workspace.Root = cleanPath(cfg.Workspace.Root)
	cfg.Workspace.CacheDir = cleanPath(cfg.Workspace.CacheDir)
	cfg.Artifact.Directory = cleanPath(cfg.Artifact.Directory)
	cfg.History.Path = cleanPath(cfg.History.Path)
	cfg.Remote.Endpoint = strings.TrimSpace(cfg.Remote.Endpoint)
	cfg.Metrics.Address = strings.TrimSpace(cfg.Metrics.Address)
	cfg.Notify.NATSURL = strings.TrimSpace(cfg.Notify.NATSURL)
	cfg.Notify.Subject = strings.TrimSpace(cfg.Notify.Subject)
	cfg.Build.Schedule = strings.TrimSpace(cfg.Build.Schedule)

	name := strings.TrimSpace(cfg.Artifact.Filename)
	if base := filepath.Base(name); base != name {
		warnings = append(warnings, fmt.Sprintf("artifact.filename %q reduced to %q", name, base))
		name = base
	}
	cfg.Artifact.Filename = name

	if cfg.Remote.Timeout < 0 {
		warnings = append(warnings, "remote.timeout was negative; using default")
		cfg.Remote.Timeout = DefaultTimeout
	}
	return warnings
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

// Validate checks cross-field constraints.
func Validate(cfg *Config) error {
	if cfg.Remote.Endpoint == "" {
		return ferrors.ValidationError("remote.endpoint is required").Build()
	}
	if !strings.HasPrefix(cfg.Remote.Endpoint, "http://") && !strings.HasPrefix(cfg.Remote.Endpoint, "https://") {
		return ferrors.ValidationError("remote.endpoint must be an http or https URL").
			WithContext("endpoint", cfg.Remote.Endpoint).
			Build()
	}
	if cfg.Artifact.Filename == "" || cfg.Artifact.Filename == "." || cfg.Artifact.Filename == ".." {
		return ferrors.ValidationError("artifact.filename is invalid").
			WithContext("filename", cfg.Artifact.Filename).
			Build()
	}

	root, err := filepath.Abs(cfg.Workspace.Root)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "resolve workspace.root").Build()
	}
	for field, p := range map[string]string{
		"workspace.cache_dir": cfg.Workspace.CacheDir,
		"artifact.directory":  cfg.Artifact.Directory,
	} {
		abs, err := filepath.Abs(p)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryValidation, "resolve "+field).Build()
		}
		if workspace.Contains(root, abs) {
			return ferrors.ValidationError(field+" must be outside workspace.root").
				WithContext("root", root).
				WithContext("path", abs).
				Build()
		}
	}

	if cfg.Build.Interval < 0 {
		return ferrors.ValidationError("build.interval must not be negative").
			WithContext("interval", cfg.Build.Interval.String()).
			Build()
	}
	if cfg.Build.Interval > 0 && cfg.Build.Schedule != "" {
		return ferrors.ValidationError("build.schedule and build.interval are mutually exclusive").Build()
	}

	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		return ferrors.ValidationError("notify.subject is required when notify.nats_url is set").Build()
	}
	return nil
}
