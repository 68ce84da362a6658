// Package console holds the user-facing log: the ordered, append-only
// sequence of lines that the terminal surface renders.
//
// It is separate from operational logging (slog). Lines are only ever
// appended or cleared in bulk; observers follow changes through the event
// bus rather than by polling shared state.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/oxobuilder/internal/events"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

// Log is the append-only console log. The zero value is not usable; call New.
type Log struct {
	mu      sync.Mutex
	entries []string
	seq     int
	bus     *events.Bus
	now     func() time.Time
}

// New returns an empty log publishing to bus. A nil bus gets a private one.
func New(bus *events.Bus) *Log {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Log{bus: bus, now: time.Now}
}

// Append adds one line. The publish happens under the log lock so that
// subscribers observe lines in exactly the order they were appended.
func (l *Log) Append(ctx context.Context, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.entries = append(l.entries, line)
	if err := l.bus.Publish(ctx, events.LogAppended{Seq: l.seq, Line: line, At: l.now()}); err != nil {
		slog.Debug("Console log publish failed", logfields.Error(err))
	}
}

// Appendf formats and appends one line.
func (l *Log) Appendf(ctx context.Context, format string, args ...any) {
	l.Append(ctx, fmt.Sprintf(format, args...))
}

// Clear truncates the log.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = nil
	if err := l.bus.Publish(ctx, events.LogCleared{At: l.now()}); err != nil {
		slog.Debug("Console log publish failed", logfields.Error(err))
	}
}

// Snapshot returns a copy of the current lines.
func (l *Log) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of lines currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Subscribe follows appends and clears from now on.
func (l *Log) Subscribe(buffer int) (<-chan events.LogEvent, func()) {
	return events.Subscribe[events.LogEvent](l.bus, buffer)
}

// Bus exposes the bus the log publishes to so other producers can share it.
func (l *Log) Bus() *events.Bus {
	return l.bus
}
