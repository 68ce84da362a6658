package events

import "time"

// LogEvent is implemented by every event describing a change to the console log.
// Subscribing to LogEvent yields appends and clears in publish order.
type LogEvent interface {
	logEvent()
}

// LogAppended is published for each line appended to the console log.
type LogAppended struct {
	Seq  int
	Line string
	At   time.Time
}

// LogCleared is published when the console log is truncated.
type LogCleared struct {
	At time.Time
}

func (LogAppended) logEvent() {}
func (LogCleared) logEvent()  {}

// BuildEvent is implemented by the build lifecycle events.
type BuildEvent interface {
	buildEvent()
}

// BuildStarted is published when the queue worker picks up a job.
type BuildStarted struct {
	JobID     string
	Trigger   string
	StartedAt time.Time
}

// BuildFinished is published once per job after it reached a terminal state.
type BuildFinished struct {
	JobID        string
	State        string
	Kind         string
	Message      string
	ArtifactPath string
	Bytes        int64
	Duration     time.Duration
	FinishedAt   time.Time
}

func (BuildStarted) buildEvent()  {}
func (BuildFinished) buildEvent() {}
