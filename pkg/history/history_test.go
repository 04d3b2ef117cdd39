package history_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ivyci/enginectl/pkg/deploy"
	"github.com/ivyci/enginectl/pkg/history"
	"github.com/ivyci/enginectl/pkg/types"
)

// openTestStore opens a ledger in a temp dir with all migrations applied
func openTestStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	e := history.Entry{
		ID:          "dep_1",
		Artifact:    "/build/app.pkg",
		Target:      "/engine/deploy/SYSTEM/app.pkg",
		Application: "SYSTEM",
		Deployer:    "file",
		Kind:        types.OutcomeTimeout,
		Elapsed:     30 * time.Second,
		Error:       "deployment timed out",
		RecordedAt:  time.UnixMilli(1700000000000),
	}
	if err := s.Record(ctx, e); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := s.Get(ctx, "dep_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != types.OutcomeTimeout || got.Success || got.Elapsed != 30*time.Second {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.Error != "deployment timed out" || got.LogPath != "" {
		t.Errorf("unexpected error/log path: %q %q", got.Error, got.LogPath)
	}
	if !got.RecordedAt.Equal(e.RecordedAt) {
		t.Errorf("expected recorded at %v, got %v", e.RecordedAt, got.RecordedAt)
	}

	if err := s.Record(ctx, e); !errors.Is(err, history.ErrAlreadyRecorded) {
		t.Errorf("expected ErrAlreadyRecorded, got %v", err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_RecentAndStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	kinds := []types.OutcomeKind{types.OutcomeSuccess, types.OutcomeSuccess, types.OutcomeTimeout, types.OutcomeIOFailure}
	for i, kind := range kinds {
		err := s.Record(ctx, history.Entry{
			ID:          "dep_" + string(rune('a'+i)),
			Artifact:    "app.pkg",
			Target:      "t",
			Application: "SYSTEM",
			Deployer:    "file",
			Kind:        kind,
			Success:     kind == types.OutcomeSuccess,
			RecordedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "dep_d" || recent[1].ID != "dep_c" {
		t.Errorf("expected newest first [dep_d dep_c], got %v", ids(recent))
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[types.OutcomeSuccess] != 2 || stats[types.OutcomeTimeout] != 1 || stats[types.OutcomeIOFailure] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}

	n, err := s.Prune(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned entries, got %d", n)
	}
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := history.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Record(ctx, history.Entry{ID: "dep_1", Artifact: "a", Target: "t", Application: "SYSTEM", Deployer: "file", Kind: types.OutcomeSuccess, Success: true})
	s.Close()

	s, err = history.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.Get(ctx, "dep_1"); err != nil {
		t.Errorf("expected entry to survive reopen: %v", err)
	}
}

func TestFromOutcome(t *testing.T) {
	tmpDir := t.TempDir()
	src := filepath.Join(tmpDir, "app.pkg")
	os.WriteFile(src, []byte("x"), 0644)
	deployDir := filepath.Join(tmpDir, "deploy")
	os.MkdirAll(deployDir, 0755)

	req, err := deploy.NewRequest(deploy.RequestSpec{ID: "dep_42", Source: src, DeployDir: deployDir, Application: "Portal"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	out := deploy.Outcome{
		ID:      req.ID(),
		Kind:    types.OutcomeEngineError,
		Elapsed: 1500 * time.Millisecond,
		Target:  req.Target(),
		Log:     strings.Repeat("x", 70*1024),
		Err:     errors.New("engine reported failure"),
	}

	e := history.FromOutcome(req, out, "marker")
	if e.ID != "dep_42" || e.Application != "Portal" || e.Deployer != "marker" || e.Artifact != src {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Error != "engine reported failure" {
		t.Errorf("expected error text, got %q", e.Error)
	}
	if len(e.EngineLog) != 64*1024 {
		t.Errorf("expected engine log capped at 64KiB, got %d", len(e.EngineLog))
	}
}

func ids(entries []history.Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
