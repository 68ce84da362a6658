package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID      = "job_id"
	KeyJobState   = "job_state"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyEndpoint   = "endpoint"
	KeyStatus     = "status"
	KeyBytes      = "bytes"
	KeyEntries    = "entries"
	KeyCommand    = "command"
	KeyKind       = "kind"
	KeyWorker     = "worker"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func JobState(s string) slog.Attr     { return slog.String(KeyJobState, s) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Endpoint(u string) slog.Attr     { return slog.String(KeyEndpoint, u) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func Entries(n int) slog.Attr         { return slog.Int(KeyEntries, n) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Worker(w string) slog.Attr       { return slog.String(KeyWorker, w) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
