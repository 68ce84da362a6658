package eventstore

import (
	"encoding/json"
	"time"
)

// Event is one entry in a build job's history, keyed by the job ID.
// Type is one of the Type* constants in events.go.
type Event interface {
	ID() int64
	// BuildID is the ID of the build.Job the event belongs to.
	BuildID() string
	Type() string
	Timestamp() time.Time
	// Payload is the JSON encoding of the matching *Payload struct.
	Payload() []byte
	Metadata() map[string]string
}

// Record is the stored form of an Event. Seq is assigned by the store and is
// zero until the record has been appended.
type Record struct {
	Seq   int64
	JobID string
	Kind  string
	At    time.Time
	Data  []byte
	Meta  map[string]string
}

func (r *Record) ID() int64                   { return r.Seq }
func (r *Record) BuildID() string             { return r.JobID }
func (r *Record) Type() string                { return r.Kind }
func (r *Record) Timestamp() time.Time        { return r.At }
func (r *Record) Payload() []byte             { return r.Data }
func (r *Record) Metadata() map[string]string { return r.Meta }

// decodePayload reports whether the payload of evt decoded into v.
func decodePayload(evt Event, v any) bool {
	return json.Unmarshal(evt.Payload(), v) == nil
}
