package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"git.home.luguber.info/inful/oxobuilder/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of builds to show" default:"10"`
	JSON  bool `name:"json" help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, _, err := root.loadConfig()
	if err != nil {
		return err
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	builds, err := recentBuilds(context.Background(), store, h.Limit)
	if err != nil {
		return err
	}

	out := g.out()
	if h.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(builds)
	}
	if len(builds) == 0 {
		_, err := fmt.Fprintln(out, "No builds recorded.")
		return err
	}
	_, err = fmt.Fprintln(out, historyTable(builds))
	return err
}

// recentBuilds projects the newest limit builds, newest first.
func recentBuilds(ctx context.Context, store eventstore.Store, limit int) ([]eventstore.BuildSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := store.RecentBuildIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	projection := eventstore.NewBuildHistoryProjection(store, limit)
	out := make([]eventstore.BuildSummary, 0, len(ids))
	for _, id := range ids {
		evts, err := store.GetByBuildID(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range evts {
			projection.Apply(e)
		}
		if s, ok := projection.GetBuild(id); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func historyTable(builds []eventstore.BuildSummary) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers("BUILD", "TRIGGER", "STARTED", "STATUS", "DURATION", "RESULT")
	for _, b := range builds {
		duration := "-"
		if b.CompletedAt != nil {
			duration = b.Duration.Round(time.Millisecond).String()
		}
		t.Row(shortID(b.BuildID), b.Trigger, b.StartedAt.Local().Format(time.DateTime), b.Status, duration, resultText(b))
	}
	return t.String()
}

func resultText(b eventstore.BuildSummary) string {
	switch {
	case b.ArtifactPath != "":
		return b.ArtifactPath + " (" + strconv.FormatInt(b.ArtifactBytes, 10) + " bytes)"
	case b.StatusCode != 0:
		return b.ErrorKind + " HTTP " + strconv.Itoa(b.StatusCode)
	case b.ErrorKind != "":
		return b.ErrorKind + ": " + b.ErrorMessage
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
