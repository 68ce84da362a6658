package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "oxo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// replaceConfig swaps the file in atomically so a watcher never reads a
// half-written document.
func replaceConfig(t *testing.T, path, body string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestLoad_FullFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvEndpoint, "")
	path := writeConfig(t, ".", `version: 1
workspace:
  root: ./proj
  cache_dir: ./cache
remote:
  endpoint: https://builds.example.com/build
  timeout: 90s
artifact:
  directory: ./out
  filename: App.apk
history:
  path: ./state/history.db
metrics:
  address: ":9102"
notify:
  nats_url: nats://127.0.0.1:4222
  subject: builds.done
build:
  schedule: "0 3 * * *"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "proj", cfg.Workspace.Root)
	assert.Equal(t, "cache", cfg.Workspace.CacheDir)
	assert.Equal(t, "https://builds.example.com/build", cfg.Remote.Endpoint)
	assert.Equal(t, 90*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, filepath.Join("out", "App.apk"), cfg.ArtifactPath())
	assert.Equal(t, filepath.Join("state", "history.db"), cfg.History.Path)
	assert.Equal(t, ":9102", cfg.Metrics.Address)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Notify.NATSURL)
	assert.Equal(t, "builds.done", cfg.Notify.Subject)
	assert.Equal(t, "0 3 * * *", cfg.Build.Schedule)
}

func TestParse_EmptyDocumentGetsDefaults(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, DefaultEndpoint, cfg.Remote.Endpoint)
	assert.Equal(t, DefaultTimeout, cfg.Remote.Timeout)
	assert.Equal(t, filepath.Clean(DefaultWorkspaceRoot), cfg.Workspace.Root)
	assert.Equal(t, filepath.Join(DefaultArtifactDir, DefaultArtifactFilename), cfg.ArtifactPath())
	assert.Equal(t, DefaultNotifySubject, cfg.Notify.Subject)
	assert.Empty(t, cfg.Build.Schedule)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	t.Setenv("OXO_TEST_HOST", "ci.example.org")

	cfg, err := Parse([]byte("remote:\n  endpoint: https://${OXO_TEST_HOST}/build\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://ci.example.org/build", cfg.Remote.Endpoint)
}

func TestParse_EndpointOverride(t *testing.T) {
	t.Setenv(EnvEndpoint, "http://localhost:8080/build")

	cfg, err := Parse([]byte("remote:\n  endpoint: https://ignored.example.com/build\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/build", cfg.Remote.Endpoint)
}

func TestParse_Rejections(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	cases := map[string]struct {
		yaml     string
		category ferrors.ErrorCategory
	}{
		"unknown field":       {"remote:\n  endpont: x\n", ferrors.CategoryConfig},
		"future version":      {"version: 2\n", ferrors.CategoryConfig},
		"not a url":           {"remote:\n  endpoint: ftp://host/build\n", ferrors.CategoryValidation},
		"cache inside root":   {"workspace:\n  root: ./p\n  cache_dir: ./p/.cache\n", ferrors.CategoryValidation},
		"artifact under root": {"workspace:\n  root: ./p\nartifact:\n  directory: ./p/out\n", ferrors.CategoryValidation},
		"blank subject":       {"notify:\n  nats_url: nats://x\n  subject: \"  \"\n", ferrors.CategoryValidation},
		"negative interval":   {"build:\n  interval: -1m\n", ferrors.CategoryValidation},
		"schedule and period": {"build:\n  schedule: \"0 3 * * *\"\n  interval: 1h\n", ferrors.CategoryValidation},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, tc.category), "got %v", err)
		})
	}
}

func TestParse_BuildInterval(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	cfg, err := Parse([]byte("build:\n  interval: 90m\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Build.Interval)
	assert.Empty(t, cfg.Build.Schedule)
}

func TestNormalize_ArtifactFilenameKeepsBase(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	cfg, err := Parse([]byte("artifact:\n  filename: nested/dir/App.apk\n"))
	require.NoError(t, err)
	assert.Equal(t, "App.apk", cfg.Artifact.Filename)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	dir := t.TempDir()

	cfg, found, err := LoadOrDefault(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultEndpoint, cfg.Remote.Endpoint)

	path := writeConfig(t, dir, "remote:\n  endpoint: http://other/build\n")
	cfg, found, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "http://other/build", cfg.Remote.Endpoint)
}

func TestInit_WritesLoadableDefaults(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	path := filepath.Join(t.TempDir(), "conf", "oxo.yaml")

	require.NoError(t, Init(path, false))
	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	require.NoError(t, Validate(want))
	normalize(want)
	assert.Equal(t, want, cfg)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.NoError(t, Init(path, true))
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvEndpoint, "")
	t.Setenv("OXO_TEST_SCHEME", "https")
	t.Cleanup(func() { _ = os.Unsetenv("OXO_TEST_DOTENV_HOST") })

	require.NoError(t, os.WriteFile(".env", []byte("OXO_TEST_DOTENV_HOST=dotenv.example.com\nOXO_TEST_SCHEME=http\n"), 0o600))
	path := writeConfig(t, ".", "remote:\n  endpoint: ${OXO_TEST_SCHEME}://${OXO_TEST_DOTENV_HOST}/build\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://dotenv.example.com/build", cfg.Remote.Endpoint)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	dir := t.TempDir()
	path := writeConfig(t, dir, "remote:\n  endpoint: http://first/build\n")

	got := make(chan string, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(_ context.Context, cfg *Config) {
		got <- cfg.Remote.Endpoint
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	replaceConfig(t, path, "remote:\n  endpoint: http://second/build\n")

	select {
	case endpoint := <-got:
		assert.Equal(t, "http://second/build", endpoint)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcher_InvalidFileKeepsQuiet(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "version: 1\n")

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, 20*time.Millisecond, func(context.Context, *Config) { called <- struct{}{} })
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	replaceConfig(t, path, "version: 9\n")

	select {
	case <-called:
		t.Fatal("invalid configuration must not be applied")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewWatcher_RequiresCallback(t *testing.T) {
	_, err := NewWatcher("oxo.yaml", 0, nil)
	require.Error(t, err)
}
