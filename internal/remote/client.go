// Package remote submits workspace archives to the remote build service and
// materializes the returned artifact.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"git.home.luguber.info/inful/oxobuilder/internal/build"
	"git.home.luguber.info/inful/oxobuilder/internal/foundation"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

// Multipart shape expected by the build service.
const (
	FormField       = "file"
	UploadFilename  = "project.zip"
	UploadMediaType = "application/zip"
)

// DefaultTimeout bounds one complete submission including the download.
const DefaultTimeout = 10 * time.Minute

// maxDetail caps how much of an error response body is kept for logs.
const maxDetail = 512

const tracerName = "git.home.luguber.info/inful/oxobuilder/internal/remote"

// Client is the HTTP implementation of build.Submitter.
type Client struct {
	http   *http.Client
	tracer trace.Tracer
}

// NewClient returns a client with an instrumented transport.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: otel.Tracer(tracerName),
	}
}

// archiveReadError marks failures reading the local archive while streaming
// the request body.
type archiveReadError struct{ err error }

func (e *archiveReadError) Error() string { return e.err.Error() }
func (e *archiveReadError) Unwrap() error { return e.err }

// Submit uploads archivePath to endpoint. On a 2xx response the body is
// written to artifactPath through a temporary file and renamed into place.
// Any other status leaves artifactPath untouched.
func (c *Client) Submit(ctx context.Context, archivePath, endpoint, artifactPath string) foundation.Result[build.Artifact, *build.BuildError] {
	ctx, span := c.tracer.Start(ctx, "remote.submit", trace.WithAttributes(
		attribute.String("oxo.endpoint", endpoint),
		attribute.String("oxo.archive", filepath.Base(archivePath)),
	))
	defer span.End()

	art, be := c.submit(ctx, archivePath, endpoint, artifactPath)
	if be != nil {
		span.RecordError(be)
		span.SetStatus(codes.Error, string(be.Kind))
		if be.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", be.StatusCode))
		}
		return foundation.Err[build.Artifact](be)
	}
	span.SetAttributes(attribute.Int64("oxo.artifact.bytes", art.Bytes))
	return foundation.Ok[build.Artifact, *build.BuildError](art)
}

func (c *Client) submit(ctx context.Context, archivePath, endpoint, artifactPath string) (build.Artifact, *build.BuildError) {
	f, err := os.Open(archivePath)
	if err != nil {
		return build.Artifact{}, build.NewFilesystemError(
			ferrors.FileSystemError("open archive").WithCause(err).WithContext("path", archivePath).Build())
	}
	defer func() { _ = f.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	writeErr := make(chan error, 1)
	go func() {
		err := writeBody(mw, f)
		_ = pw.CloseWithError(err)
		writeErr <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		_ = pr.Close()
		<-writeErr
		return build.Artifact{}, build.NewNetworkError(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	slog.Debug("Submitting archive", logfields.Endpoint(endpoint), logfields.Path(archivePath))
	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.Close()
		var are *archiveReadError
		if werr := <-writeErr; errors.As(werr, &are) {
			return build.Artifact{}, build.NewFilesystemError(
				ferrors.FileSystemError("read archive").WithCause(are.err).WithContext("path", archivePath).Build())
		}
		return build.Artifact{}, build.NewNetworkError(err)
	}
	defer func() {
		_ = resp.Body.Close()
		_ = pr.Close()
		<-writeErr
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetail))
		_, _ = io.Copy(io.Discard, resp.Body)
		slog.Warn("Remote build rejected",
			logfields.Endpoint(endpoint),
			logfields.Status(resp.StatusCode),
			slog.String("detail", strings.TrimSpace(string(detail))))
		return build.Artifact{}, build.NewRemoteBuildError(resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	n, be := materialize(resp.Body, artifactPath)
	if be != nil {
		return build.Artifact{}, be
	}
	slog.Debug("Artifact written", logfields.Path(artifactPath), logfields.Bytes(n))
	return build.Artifact{Path: artifactPath, Name: filepath.Base(artifactPath), Bytes: n}, nil
}

func writeBody(mw *multipart.Writer, src io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FormField, UploadFilename))
	h.Set("Content-Type", UploadMediaType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, readerFunc(func(p []byte) (int, error) {
		n, err := src.Read(p)
		if err != nil && !errors.Is(err, io.EOF) {
			return n, &archiveReadError{err: err}
		}
		return n, err
	})); err != nil {
		return err
	}
	return mw.Close()
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

// errWriter remembers write failures so they can be told apart from
// failures reading the response body.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

func materialize(body io.Reader, artifactPath string) (int64, *build.BuildError) {
	dir := filepath.Dir(artifactPath)
	fsFail := func(msg string, err error) *build.BuildError {
		return build.NewFilesystemError(
			ferrors.FileSystemError(msg).WithCause(err).WithContext("path", artifactPath).Build())
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fsFail("create artifact directory", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(artifactPath)+".*")
	if err != nil {
		return 0, fsFail("create artifact file", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	ew := &errWriter{w: tmp}
	n, err := io.Copy(ew, body)
	if err != nil {
		if ew.err != nil {
			return 0, fsFail("write artifact", ew.err)
		}
		return 0, build.NewNetworkError(err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fsFail("sync artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fsFail("close artifact", err)
	}
	if err := os.Rename(tmpPath, artifactPath); err != nil {
		return 0, fsFail("move artifact into place", err)
	}
	committed = true
	return n, nil
}
