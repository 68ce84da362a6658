// Package notify publishes finished builds to NATS.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/oxobuilder/internal/events"
	ferrors "git.home.luguber.info/inful/oxobuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/oxobuilder/internal/logfields"
)

// Publisher sends one message. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body published for each finished build.
type Message struct {
	JobID        string    `json:"job_id"`
	State        string    `json:"state"`
	Kind         string    `json:"kind,omitempty"`
	Message      string    `json:"message,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Bytes        int64     `json:"bytes,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Notifier forwards BuildFinished events to a subject.
type Notifier struct {
	pub     Publisher
	subject string
	conn    *nats.Conn

	unsubscribe func()
	wg          sync.WaitGroup
}

// New wraps an existing publisher.
func New(pub Publisher, subject string) *Notifier {
	return &Notifier{pub: pub, subject: subject}
}

// Connect dials url and returns a notifier owning the connection.
func Connect(url, subject string) (*Notifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("oxobuilder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "connect to NATS").
			WithContext("url", url).
			Build()
	}
	slog.Info("NATS notifier connected", slog.String("url", url), logfields.Subject(subject))
	n := New(conn, subject)
	n.conn = conn
	return n, nil
}

// Notify publishes evt.
func (n *Notifier) Notify(evt events.BuildFinished) error {
	data, err := json.Marshal(Message{
		JobID:        evt.JobID,
		State:        evt.State,
		Kind:         evt.Kind,
		Message:      evt.Message,
		ArtifactPath: evt.ArtifactPath,
		Bytes:        evt.Bytes,
		DurationMS:   evt.Duration.Milliseconds(),
		FinishedAt:   evt.FinishedAt.UTC(),
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode build notification").Build()
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "publish build notification").
			WithContext("subject", n.subject).
			Build()
	}
	slog.Debug("Published build notification", logfields.JobID(evt.JobID), logfields.Subject(n.subject))
	return nil
}

// Start subscribes to bus. Events published after Start returns are forwarded
// until ctx ends or Stop is called. Publish failures are logged and dropped.
func (n *Notifier) Start(ctx context.Context, bus *events.Bus) {
	ch, unsubscribe := events.Subscribe[events.BuildFinished](bus, 16)
	n.unsubscribe = unsubscribe

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if err := n.Notify(evt); err != nil {
					slog.Warn("Build notification failed", logfields.JobID(evt.JobID), logfields.Error(err))
				}
			}
		}
	}()
}

// Stop unsubscribes, waits for the forwarder and drains the connection if owned.
func (n *Notifier) Stop() {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
	n.wg.Wait()
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
		}
	}
}
