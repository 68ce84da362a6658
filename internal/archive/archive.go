// Package archive produces deterministic, relocatable ZIP bundles of a
// directory tree.
//
// Entries are written in lexical walk order with forward-slash names relative
// to the source root. Timestamps, compression method and level are fixed, so an
// unchanged tree always yields byte-identical output.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

// EntryTime is stamped on every entry. It is the earliest time the ZIP DOS
// format can represent.
var EntryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	fileMode = 0o644
	execMode = 0o755
)

// Archive describes a finished bundle on disk.
type Archive struct {
	Path    string
	Entries []string
	Bytes   int64
}

// Create walks sourceRoot and writes a ZIP to destination. The bundle is
// staged next to destination and renamed into place, so readers of a
// previous archive never observe a partial write. On any error the staged
// file is removed and a filesystem error is returned.
func Create(ctx context.Context, sourceRoot, destination string) (*Archive, error) {
	info, err := os.Stat(sourceRoot)
	if err != nil {
		return nil, fsError("stat source root", sourceRoot, err)
	}
	// WalkDir does not follow a symlinked root; walk its target instead.
	root, err := filepath.EvalSymlinks(sourceRoot)
	if err != nil {
		return nil, fsError("resolve source root", sourceRoot, err)
	}
	if !info.IsDir() {
		return nil, ferrors.FileSystemError("source root is not a directory").
			WithContext("path", sourceRoot).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o750); err != nil {
		return nil, fsError("create archive directory", filepath.Dir(destination), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destination), "."+filepath.Base(destination)+".*")
	if err != nil {
		return nil, fsError("create archive file", destination, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	entries, err := write(ctx, tmp, root, destination, tmpPath)
	if err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, fsError("sync archive", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fsError("close archive", tmpPath, err)
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		return nil, fsError("move archive into place", destination, err)
	}
	committed = true

	st, err := os.Stat(destination)
	if err != nil {
		return nil, fsError("stat archive", destination, err)
	}

	slog.Debug("Archive written",
		logfields.Path(destination),
		logfields.Entries(len(entries)),
		logfields.Bytes(st.Size()))

	return &Archive{Path: destination, Entries: entries, Bytes: st.Size()}, nil
}

func write(ctx context.Context, out io.Writer, sourceRoot string, skip ...string) ([]string, error) {
	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = true
		}
	}

	var entries []string
	walkErr := filepath.WalkDir(sourceRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fsError("walk", p, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ferrors.WrapError(ctxErr, ferrors.CategoryFileSystem, "archive canceled").Build()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if abs, absErr := filepath.Abs(p); absErr == nil && skipped[abs] {
			return nil
		}

		rel, err := filepath.Rel(sourceRoot, p)
		if err != nil {
			return fsError("relative path", p, err)
		}
		name := EntryName(rel)
		if name == "" {
			return ferrors.FileSystemError("entry escapes source root").
				WithContext("path", p).
				Build()
		}

		info, err := d.Info()
		if err != nil {
			return fsError("stat", p, err)
		}
		if err := addFile(zw, p, name, info.Mode()); err != nil {
			return err
		}
		entries = append(entries, name)
		return nil
	})
	if walkErr != nil {
		_ = zw.Close()
		if ferrors.IsClassified(walkErr) {
			return nil, walkErr
		}
		return nil, fsError("archive", sourceRoot, walkErr)
	}
	if err := zw.Close(); err != nil {
		return nil, fsError("finish archive", sourceRoot, err)
	}
	return entries, nil
}

func addFile(zw *zip.Writer, src, name string, mode fs.FileMode) error {
	f, err := os.Open(src)
	if err != nil {
		return fsError("open", src, err)
	}
	defer func() { _ = f.Close() }()

	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: EntryTime,
	}
	if mode.Perm()&0o111 != 0 {
		hdr.SetMode(execMode)
	} else {
		hdr.SetMode(fileMode)
	}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fsError("create entry", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fsError("read", src, err)
	}
	return nil
}

// EntryName converts a path relative to the source root into a ZIP entry
// name. It returns "" for anything that would escape the root.
func EntryName(rel string) string {
	if filepath.VolumeName(rel) != "" {
		return ""
	}
	name := path.Clean(filepath.ToSlash(rel))
	name = strings.TrimLeft(name, "/")
	if name == "." || name == "" || name == ".." || strings.HasPrefix(name, "../") {
		return ""
	}
	return name
}

func fsError(op, p string, err error) error {
	return ferrors.FileSystemError(fmt.Sprintf("%s %s", op, p)).
		WithCause(err).
		WithContext("path", p).
		Build()
}
