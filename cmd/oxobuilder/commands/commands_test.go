package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/oxobuilder/internal/config"
	"git.home.luguber.info/inful/oxobuilder/internal/events"
	"git.home.luguber.info/inful/oxobuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

// setup writes a configuration pointing at handler and returns a CLI rooted
// in a fresh directory.
func setup(t *testing.T, handler http.HandlerFunc) (*CLI, *Global, *bytes.Buffer) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvEndpoint, "")

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	body := "remote:\n  endpoint: " + srv.URL + "/build\n  timeout: 5s\n"
	require.NoError(t, os.WriteFile("oxo.yaml", []byte(body), 0o600))

	var out bytes.Buffer
	return &CLI{Config: "oxo.yaml"}, &Global{Out: &out}, &out
}

func run(t *testing.T, cli *CLI, g *Global, words ...string) error {
	t.Helper()
	return (&RunCmd{Words: words}).Run(g, cli)
}

func TestRun_ScaffoldAndBuild(t *testing.T) {
	cli, g, out := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _, _ = r.FormFile("file")
		_, _ = w.Write([]byte("binary"))
	})

	require.NoError(t, run(t, cli, g, "create", "android", "folder"))
	require.NoError(t, run(t, cli, g, "build"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "oxo@user:~$ create android folder", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "System: Oxo structure initialized at "))
	assert.Equal(t, []string{
		"oxo@user:~$ build",
		"System: Compressing project...",
		"System: Sending to Render Cloud...",
		"SUCCESS: APK generated at OxoBuild.apk",
	}, lines[2:])

	got, err := os.ReadFile(filepath.Join(config.DefaultArtifactDir, config.DefaultArtifactFilename))
	require.NoError(t, err)
	assert.Equal(t, "binary", string(got))
	_, err = os.Stat(filepath.Join(config.DefaultCacheDir, "oxo_bundle.zip"))
	assert.NoError(t, err)
}

func TestRun_RemoteFailureReturnsClassifiedError(t *testing.T) {
	cli, g, out := setup(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	require.NoError(t, run(t, cli, g, "create android folder"))
	err := run(t, cli, g, "build")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRemoteBuild))
	assert.Equal(t, 8, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, out.String(), "BUILD ERROR: remote build failed (HTTP 502). Check cloud logs.")
}

func TestRun_UnknownCommand(t *testing.T) {
	cli, g, out := setup(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})

	require.NoError(t, run(t, cli, g, "flibbertigibbet"))
	assert.Equal(t, "oxo@user:~$ flibbertigibbet\nCommand not found: flibbertigibbet\n", out.String())
}

func TestApp_IntervalFiresScheduledBuilds(t *testing.T) {
	cli, _, _ := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _, _ = r.FormFile("file")
		_, _ = w.Write([]byte("binary"))
	})
	f, err := os.OpenFile(cli.Config, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("build:\n  interval: 50ms\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, _, err := cli.loadConfig()
	require.NoError(t, err)
	app, err := NewApp(t.Context(), cfg)
	require.NoError(t, err)
	defer app.Close()

	started, unsubscribe := events.Subscribe[events.BuildStarted](app.Bus, 16)
	defer unsubscribe()

	app.Dispatcher.Dispatch(t.Context(), "create android folder")
	require.NoError(t, app.Start(t.Context()))
	require.NotNil(t, app.scheduler)

	select {
	case evt := <-started:
		assert.Equal(t, "schedule", evt.Trigger)
	case <-time.After(5 * time.Second):
		t.Fatal("no scheduled build started")
	}
}

func TestHistory_ListsBuilds(t *testing.T) {
	cli, g, out := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _, _ = r.FormFile("file")
		_, _ = w.Write([]byte("ok"))
	})
	require.NoError(t, run(t, cli, g, "create android folder"))
	require.NoError(t, run(t, cli, g, "build"))
	require.NoError(t, run(t, cli, g, "status"))
	out.Reset()

	require.NoError(t, (&HistoryCmd{Limit: 5, JSON: true}).Run(g, cli))
	var builds []eventstore.BuildSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &builds))
	require.Len(t, builds, 1)
	assert.Equal(t, "succeeded", builds[0].Status)
	assert.Equal(t, "command", builds[0].Trigger)
	assert.Equal(t, int64(2), builds[0].ArtifactBytes)
	assert.Contains(t, builds[0].Stages, "archive")
	assert.Contains(t, builds[0].Stages, "submit")

	out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 5}).Run(g, cli))
	assert.Contains(t, out.String(), "succeeded")
	assert.Contains(t, out.String(), builds[0].BuildID[:8])
}

func TestHistory_Empty(t *testing.T) {
	cli, g, out := setup(t, func(http.ResponseWriter, *http.Request) {})
	require.NoError(t, (&HistoryCmd{}).Run(g, cli))
	assert.Equal(t, "No builds recorded.\n", out.String())
}

func TestInit_WritesConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	g := &Global{Out: &out}
	cli := &CLI{Config: filepath.Join("conf", "oxo.yaml")}

	require.NoError(t, (&InitCmd{}).Run(g, cli))
	assert.Contains(t, out.String(), "initialized successfully")
	_, err := config.Load(cli.Config)
	require.NoError(t, err)

	err = (&InitCmd{}).Run(g, cli)
	require.Error(t, err)
	require.NoError(t, (&InitCmd{Force: true}).Run(g, cli))
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&VersionCmd{}).Run(&Global{Out: &out}, &CLI{}))
	assert.True(t, strings.HasPrefix(out.String(), "oxobuilder "))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", (&CLI{Verbose: true, LogLevel: "error"}).level().String())
	assert.Equal(t, "WARN", (&CLI{LogLevel: "Warn"}).level().String())
	assert.Equal(t, "INFO", (&CLI{LogLevel: "bogus"}).level().String())
}
