// Package scaffold (re)initializes the minimal Android project layout inside a
// workspace from embedded templates.
package scaffold

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Target is the part of a workspace the scaffolder needs.
type Target interface {
	Root() string
	Reset() error
}

// Project holds the values substituted into the templates.
type Project struct {
	Namespace     string
	ApplicationID string
	CompileSDK    int
	MinSDK        int
}

// DefaultProject is the generated Android project.
func DefaultProject() Project {
	return Project{
		Namespace:     "com.oxo.generated",
		ApplicationID: "com.oxo.generated",
		CompileSDK:    34,
		MinSDK:        24,
	}
}

type fileSpec struct {
	rel      string // slash separated, relative to the root
	template string
	mode     fs.FileMode
}

// Written in this order. The trailing empty directory is created last.
var files = []fileSpec{
	{rel: "gradlew", template: "gradlew.tmpl", mode: 0o755},
	{rel: "build.gradle", template: "build.gradle.tmpl", mode: 0o644},
	{rel: "app/build.gradle", template: "app.build.gradle.tmpl", mode: 0o644},
}

// Result describes a finished scaffold.
type Result struct {
	Root  string
	Files []string
	Dirs  []string
}

// Scaffolder renders the project layout.
type Scaffolder struct {
	project Project
	tmpl    *template.Template
}

// New parses the embedded templates for project.
func New(project Project) (*Scaffolder, error) {
	tmpl, err := template.New("scaffold").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "parse scaffold templates").Build()
	}
	return &Scaffolder{project: project, tmpl: tmpl}, nil
}

// SourceDir is the empty package directory under app/src/main/java.
func (s *Scaffolder) SourceDir() string {
	return path.Join("app/src/main/java", filepath.ToSlash(packagePath(s.project.Namespace)))
}

// Scaffold wipes the target root and writes the layout. Any filesystem error
// stops the run and is returned as a filesystem error; files already written
// stay behind.
func (s *Scaffolder) Scaffold(ctx context.Context, target Target) (*Result, error) {
	root := target.Root()
	if err := target.Reset(); err != nil {
		return nil, err
	}

	res := &Result{Root: root}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "scaffold canceled").Build()
		}
		body, err := s.render(f.template)
		if err != nil {
			return nil, err
		}
		if err := writeFile(root, f.rel, body, f.mode); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, f.rel)
	}

	src := s.SourceDir()
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(src)), 0o755); err != nil {
		return nil, ferrors.FileSystemError(fmt.Sprintf("create %s", src)).
			WithCause(err).
			WithContext("path", src).
			Build()
	}
	res.Dirs = append(res.Dirs, src)

	slog.Debug("Workspace scaffolded", logfields.Path(root), logfields.Entries(len(res.Files)))
	return res, nil
}

func (s *Scaffolder) render(name string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, s.project); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "render scaffold template").
			WithContext("template", name).
			Build()
	}
	return buf.Bytes(), nil
}

func writeFile(root, rel string, body []byte, mode fs.FileMode) error {
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ferrors.FileSystemError(fmt.Sprintf("create directory for %s", rel)).
			WithCause(err).
			WithContext("path", rel).
			Build()
	}
	if err := os.WriteFile(full, body, mode); err != nil {
		return ferrors.FileSystemError(fmt.Sprintf("write %s", rel)).
			WithCause(err).
			WithContext("path", rel).
			Build()
	}
	// umask may have stripped bits.
	if err := os.Chmod(full, mode); err != nil {
		return ferrors.FileSystemError(fmt.Sprintf("chmod %s", rel)).
			WithCause(err).
			WithContext("path", rel).
			Build()
	}
	return nil
}

func packagePath(namespace string) string {
	return strings.ReplaceAll(namespace, ".", "/")
}
