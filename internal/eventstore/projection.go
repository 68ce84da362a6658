// Package eventstore records build lifecycle events in SQLite and projects
// them into a build history.
package eventstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

const buildStatusRunning = "running"

// BuildSummary is a read model of one build job.
type BuildSummary struct {
	BuildID       string           `json:"build_id"`
	Trigger       string           `json:"trigger,omitempty"`
	Status        string           `json:"status"` // "running" or a terminal job state
	StartedAt     time.Time        `json:"started_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Duration      time.Duration    `json:"duration,omitempty"`
	Stages        map[string]int64 `json:"stage_durations_ms,omitempty"`
	ErrorKind     string           `json:"error_kind,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	StatusCode    int              `json:"status_code,omitempty"`
	ArtifactPath  string           `json:"artifact_path,omitempty"`
	ArtifactBytes int64            `json:"artifact_bytes,omitempty"`
}

// BuildHistoryProjection maintains an in-memory view of build history,
// reconstructed from the event store.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary // completed builds, newest first
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a new projection backed by store.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		history: make([]*BuildSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every stored event.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = make([]*BuildSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	slices.SortStableFunc(p.history, func(a, b *BuildSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event as it is emitted.
func (p *BuildHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *BuildHistoryProjection) applyEventLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	summary, exists := p.builds[buildID]
	if !exists {
		summary = &BuildSummary{
			BuildID:   buildID,
			Status:    buildStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = buildStatusRunning
		var payload BuildStartedPayload
		if decodePayload(event, &payload) {
			summary.Trigger = payload.Trigger
		}

	case TypeStageCompleted:
		var payload StageCompletedPayload
		if decodePayload(event, &payload) {
			if summary.Stages == nil {
				summary.Stages = make(map[string]int64)
			}
			summary.Stages[payload.Stage] = payload.DurationMS
		}

	case TypeBuildFinished:
		at := event.Timestamp()
		summary.CompletedAt = &at
		var payload BuildFinishedPayload
		if decodePayload(event, &payload) {
			summary.Status = payload.State
			summary.ErrorKind = payload.Kind
			summary.ErrorMessage = payload.Message
			summary.StatusCode = payload.StatusCode
			summary.ArtifactPath = payload.ArtifactPath
			summary.ArtifactBytes = payload.ArtifactBytes
			summary.Duration = time.Duration(payload.DurationMS) * time.Millisecond
		}
		p.addToHistoryLocked(summary)
	}
}

func (p *BuildHistoryProjection) addToHistoryLocked(summary *BuildSummary) {
	for _, h := range p.history {
		if h.BuildID == summary.BuildID {
			return
		}
	}
	p.history = append([]*BuildSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneBuildsLocked()
}

// pruneBuildsLocked drops completed builds that fell out of the bounded
// history. Running builds are kept.
func (p *BuildHistoryProjection) pruneBuildsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.BuildID] = struct{}{}
	}
	for id, summary := range p.builds {
		if summary.Status == buildStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.builds, id)
		}
	}
}

// GetHistory returns copies of completed builds, newest first.
func (p *BuildHistoryProjection) GetHistory() []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]BuildSummary, 0, len(p.history))
	for _, h := range p.history {
		out = append(out, copySummary(h))
	}
	return out
}

// GetBuild returns the summary for one build.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return copySummary(summary), true
}

// GetActiveBuild returns a running build, if any.
func (p *BuildHistoryProjection) GetActiveBuild() (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, summary := range p.builds {
		if summary.Status == buildStatusRunning {
			return copySummary(summary), true
		}
	}
	return BuildSummary{}, false
}

// GetLastCompletedBuild returns the newest terminal build.
func (p *BuildHistoryProjection) GetLastCompletedBuild() (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return BuildSummary{}, false
	}
	return copySummary(p.history[0]), true
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}

func copySummary(s *BuildSummary) BuildSummary {
	cp := *s
	cp.Stages = maps.Clone(s.Stages)
	return cp
}
