package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

// ArchiveName is the file name of the bundle staged in the cache directory.
const ArchiveName = "oxo_bundle.zip"

var (
	liveMu sync.Mutex
	live   = map[string]bool{}
)

// Workspace is the handle to a project root plus its cache directory.
type Workspace struct {
	root     string
	cacheDir string

	mu     sync.Mutex
	holder string
	closed bool
}

// New registers a handle for root. cacheDir holds staged archives and must
// live outside root so a build never archives its own output.
func New(root, cacheDir string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ferrors.ValidationError("workspace root is required").Build()
	}
	if strings.TrimSpace(cacheDir) == "" {
		cacheDir = filepath.Join(os.TempDir(), "oxobuilder-cache")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve workspace root").Build()
	}
	absCache, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve cache directory").Build()
	}
	if Contains(absRoot, absCache) {
		return nil, ferrors.ValidationError("cache directory must be outside the workspace root").
			WithContext("root", absRoot).
			WithContext("cache_dir", absCache).
			Build()
	}

	liveMu.Lock()
	defer liveMu.Unlock()
	if live[absRoot] {
		return nil, ferrors.BusyError("a workspace handle is already live for this root").
			WithContext("root", absRoot).
			Build()
	}
	live[absRoot] = true

	return &Workspace{root: absRoot, cacheDir: absCache}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// CacheDir returns the absolute cache directory.
func (w *Workspace) CacheDir() string { return w.cacheDir }

// ArchivePath is where the build pipeline stages the workspace bundle.
func (w *Workspace) ArchivePath() string {
	return filepath.Join(w.cacheDir, ArchiveName)
}

// Ensure creates the root and cache directories if missing.
func (w *Workspace) Ensure() error {
	for _, dir := range []string{w.root, w.cacheDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create workspace directory").
				WithContext("path", dir).
				Build()
		}
	}
	return nil
}

// Reset removes the whole tree under root and recreates an empty root.
// It succeeds when nothing existed.
func (w *Workspace) Reset() error {
	if err := w.Destroy(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.root, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "recreate workspace root").
			WithContext("path", w.root).
			Build()
	}
	slog.Debug("Workspace reset", logfields.Path(w.root))
	return nil
}

// Destroy removes the tree under root.
func (w *Workspace) Destroy() error {
	if err := os.RemoveAll(w.root); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove workspace").
			WithContext("path", w.root).
			Build()
	}
	return nil
}

// Close unregisters the handle so another may be created for the same root.
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	liveMu.Lock()
	delete(live, w.root)
	liveMu.Unlock()
	return nil
}

// Acquire takes the exclusive lease for op ("scaffold", "build"). It never
// blocks: when another operation holds the lease a busy error is returned.
func (w *Workspace) Acquire(op string) (*Lease, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ferrors.RuntimeError("workspace handle is closed").Build()
	}
	if w.holder != "" {
		return nil, ferrors.BusyError(fmt.Sprintf("workspace busy (%s in progress)", w.holder)).
			WithContext("holder", w.holder).
			WithContext("requested", op).
			Build()
	}
	w.holder = op
	return &Lease{ws: w, op: op}, nil
}

// Holder returns the operation currently holding the lease, or "".
func (w *Workspace) Holder() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.holder
}

// Lease is an exclusive claim on the workspace.
type Lease struct {
	ws   *Workspace
	op   string
	once sync.Once
}

// Op returns the operation name the lease was taken for.
func (l *Lease) Op() string { return l.op }

// Release gives the lease back. Extra calls are no-ops.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.ws.mu.Lock()
		l.ws.holder = ""
		l.ws.mu.Unlock()
	})
}

// Contains reports whether path equals dir or lies below it.
func Contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
