package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"JobID", KeyJobID, "123", JobID("123")},
		{"JobState", KeyJobState, "uploading", JobState("uploading")},
		{"Stage", KeyStage, "archive", Stage("archive")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Endpoint", KeyEndpoint, "http://example", Endpoint("http://example")},
		{"Command", KeyCommand, "build", Command("build")},
		{"Kind", KeyKind, "network", Kind("network")},
		{"Worker", KeyWorker, "worker-0", Worker("worker-0")},
		{"Subject", KeySubject, "oxo.builds", Subject("oxo.builds")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Status(500); v.Key != KeyStatus || v.Value.Int64() != 500 {
		t.Fatalf("Status mismatch: %v", v)
	}
	if v := Bytes(42); v.Key != KeyBytes {
		t.Fatalf("Bytes key mismatch: %s", v.Key)
	}
	if v := Entries(3); v.Key != KeyEntries {
		t.Fatalf("Entries key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errors.New("err-test"))
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}
