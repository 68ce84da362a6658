package scaffold

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
)

type dirTarget struct{ root string }

func (d dirTarget) Root() string { return d.root }

func (d dirTarget) Reset() error {
	if err := os.RemoveAll(d.root); err != nil {
		return err
	}
	return os.MkdirAll(d.root, 0o750)
}

// snapshotTree maps every path under root to a digest of its content and mode.
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, p)
		info, err := d.Info()
		require.NoError(t, err)
		if d.IsDir() {
			out[filepath.ToSlash(rel)] = "dir"
			return nil
		}
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		sum := sha256.Sum256(data)
		out[filepath.ToSlash(rel)] = info.Mode().Perm().String() + ":" + hex.EncodeToString(sum[:])
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestScaffold_Layout(t *testing.T) {
	s, err := New(DefaultProject())
	require.NoError(t, err)
	root := filepath.Join(t.TempDir(), "OxoProject")

	res, err := s.Scaffold(t.Context(), dirTarget{root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"gradlew", "build.gradle", "app/build.gradle"}, res.Files)
	assert.Equal(t, []string{"app/src/main/java/com/oxo/generated"}, res.Dirs)

	gradlew, err := os.ReadFile(filepath.Join(root, "gradlew"))
	require.NoError(t, err)
	assert.Contains(t, string(gradlew), `"$@"`)
	info, err := os.Stat(filepath.Join(root, "gradlew"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm())

	app, err := os.ReadFile(filepath.Join(root, "app", "build.gradle"))
	require.NoError(t, err)
	assert.Contains(t, string(app), "namespace 'com.oxo.generated'")
	assert.Contains(t, string(app), `applicationId "com.oxo.generated"`)
	assert.Contains(t, string(app), "compileSdk 34")
	assert.Contains(t, string(app), "minSdk 24")

	entries, err := os.ReadDir(filepath.Join(root, "app", "src", "main", "java", "com", "oxo", "generated"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScaffold_IsDeterministic(t *testing.T) {
	s, err := New(DefaultProject())
	require.NoError(t, err)
	target := dirTarget{root: filepath.Join(t.TempDir(), "OxoProject")}

	_, err = s.Scaffold(t.Context(), target)
	require.NoError(t, err)
	first := snapshotTree(t, target.root)

	_, err = s.Scaffold(t.Context(), target)
	require.NoError(t, err)
	second := snapshotTree(t, target.root)

	assert.Equal(t, first, second)
}

func TestScaffold_RemovesStaleFiles(t *testing.T) {
	s, err := New(DefaultProject())
	require.NoError(t, err)
	target := dirTarget{root: filepath.Join(t.TempDir(), "OxoProject")}
	require.NoError(t, os.MkdirAll(target.root, 0o750))
	stale := filepath.Join(target.root, "stale.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	_, err = s.Scaffold(t.Context(), target)
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestScaffold_FilesystemFailureIsClassified(t *testing.T) {
	s, err := New(DefaultProject())
	require.NoError(t, err)
	base := t.TempDir()
	root := filepath.Join(base, "OxoProject")

	// A regular file where "app" must become a directory.
	target := blockingTarget{root: root}
	_, err = s.Scaffold(t.Context(), target)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}

type blockingTarget struct{ root string }

func (b blockingTarget) Root() string { return b.root }

func (b blockingTarget) Reset() error {
	if err := os.MkdirAll(b.root, 0o750); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.root, "app"), []byte("not a dir"), 0o600)
}
