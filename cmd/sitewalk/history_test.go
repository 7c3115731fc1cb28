package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitewalk/internal/database"
	"github.com/nao1215/sitewalk/internal/model"
)

// setupHistory opens a database in a temporary directory and stores two
// runs of https://shop.test and one of https://other.test.
func setupHistory(t *testing.T) (string, *database.HistoryDB, []*model.Run) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	record := func(url string, outcome model.Outcome, hash string) *model.VisitRecord {
		rec := model.NewSuccessRecord(url, 0)
		rec.Outcome = outcome
		rec.ContentHash = hash
		rec.VisitedAt = base
		if outcome == model.OutcomeFailure {
			rec.Error = "navigation timed out"
		}
		return rec
	}
	newRun := func(seed string, startedAt time.Time, records ...*model.VisitRecord) *model.Run {
		run := model.NewRun(seed)
		run.StartedAt = startedAt
		run.FinishedAt = startedAt.Add(time.Minute)
		run.Records = records
		return run
	}

	runs := []*model.Run{
		newRun("https://shop.test", base,
			record("https://shop.test", model.OutcomeSuccess, "aaa"),
			record("https://shop.test/cart", model.OutcomeSuccess, "bbb"),
			record("https://shop.test/old", model.OutcomeSuccess, "ccc"),
		),
		newRun("https://shop.test", base.Add(time.Hour),
			record("https://shop.test", model.OutcomeSuccess, "aaa"),
			record("https://shop.test/cart", model.OutcomeFailure, ""),
			record("https://shop.test/new", model.OutcomeSuccess, "ddd"),
		),
		newRun("https://other.test", base.Add(2*time.Hour),
			record("https://other.test", model.OutcomeSuccess, "eee"),
		),
	}
	for _, run := range runs {
		if err := db.SaveRun(context.Background(), run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}
	return dir, db, runs
}

func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()
	if cmd.Use != "history [seed-url]" {
		t.Errorf("expected use 'history [seed-url]', got %q", cmd.Use)
	}

	for _, name := range []string{"seeds", "limit", "run-id", "compare", "delete", "json", "markdown", "db-dir"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
	if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
		t.Error("expected at most one argument")
	}
}

func TestRunHistory(t *testing.T) {
	t.Parallel()

	t.Run("lists all runs newest first", func(t *testing.T) {
		t.Parallel()
		_, db, runs := setupHistory(t)

		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, db, historyOptions{limit: defaultHistoryLimit}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := out.String()
		if !strings.Contains(output, "Stored runs (3)") {
			t.Errorf("expected 3 runs, got:\n%s", output)
		}
		newest := strings.Index(output, runs[2].ID)
		oldest := strings.Index(output, runs[0].ID)
		if newest < 0 || oldest < 0 || newest > oldest {
			t.Errorf("expected newest run first, got:\n%s", output)
		}
	})

	t.Run("lists runs of one seed as JSON", func(t *testing.T) {
		t.Parallel()
		_, db, _ := setupHistory(t)

		var out bytes.Buffer
		opts := historyOptions{seed: "https://shop.test", json: true}
		if err := runHistory(context.Background(), &out, db, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var metas []database.RunMetadata
		if err := json.Unmarshal(out.Bytes(), &metas); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out.String())
		}
		if len(metas) != 2 {
			t.Errorf("expected 2 runs, got %d", len(metas))
		}
	})

	t.Run("lists runs as markdown", func(t *testing.T) {
		t.Parallel()
		_, db, _ := setupHistory(t)

		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, db, historyOptions{markdown: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "# Sitewalk History") {
			t.Errorf("expected a markdown heading, got:\n%s", out.String())
		}
		if !strings.Contains(out.String(), "https://other.test") {
			t.Errorf("expected a row per run, got:\n%s", out.String())
		}
	})

	t.Run("lists seeds", func(t *testing.T) {
		t.Parallel()
		_, db, _ := setupHistory(t)

		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, db, historyOptions{seeds: true}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := out.String()
		if !strings.Contains(output, "(2)") || !strings.Contains(output, "https://other.test") {
			t.Errorf("expected two seeds, got:\n%s", output)
		}
	})

	t.Run("shows one run", func(t *testing.T) {
		t.Parallel()
		_, db, runs := setupHistory(t)

		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, db, historyOptions{runID: runs[1].ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := out.String()
		if !strings.Contains(output, "https://shop.test/new") {
			t.Errorf("expected the page list, got:\n%s", output)
		}
		if !strings.Contains(output, "navigation timed out") {
			t.Errorf("expected the failure, got:\n%s", output)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()
		_, db, _ := setupHistory(t)

		err := runHistory(context.Background(), &bytes.Buffer{}, db, historyOptions{runID: "missing"})
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("compares the latest two runs", func(t *testing.T) {
		t.Parallel()
		_, db, runs := setupHistory(t)

		var out bytes.Buffer
		opts := historyOptions{seed: "https://shop.test", compare: true}
		if err := runHistory(context.Background(), &out, db, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := out.String()
		for _, want := range []string{
			"New Pages (1)", "[+] https://shop.test/new",
			"Vanished Pages (1)", "[-] https://shop.test/old",
			"Outcome Changes (1)", "success -> failure",
			"Unchanged: 1 pages",
			runs[0].ID, runs[1].ID,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("compares as JSON", func(t *testing.T) {
		t.Parallel()
		_, db, runs := setupHistory(t)

		var out bytes.Buffer
		opts := historyOptions{seed: "https://shop.test", compare: true, json: true}
		if err := runHistory(context.Background(), &out, db, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var diff model.RunDiff
		if err := json.Unmarshal(out.Bytes(), &diff); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out.String())
		}
		if diff.OlderID != runs[0].ID || diff.NewerID != runs[1].ID {
			t.Errorf("expected %s -> %s, got %s -> %s", runs[0].ID, runs[1].ID, diff.OlderID, diff.NewerID)
		}
		if len(diff.Changes) != 3 {
			t.Errorf("expected 3 changes, got %d", len(diff.Changes))
		}
	})

	t.Run("compares as markdown", func(t *testing.T) {
		t.Parallel()
		_, db, _ := setupHistory(t)

		var out bytes.Buffer
		opts := historyOptions{seed: "https://shop.test", compare: true, markdown: true}
		if err := runHistory(context.Background(), &out, db, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "## New Pages (1)") {
			t.Errorf("expected a new pages section, got:\n%s", out.String())
		}
	})

	t.Run("compare needs two runs", func(t *testing.T) {
		t.Parallel()
		_, db, _ := setupHistory(t)

		err := runHistory(context.Background(), &bytes.Buffer{}, db, historyOptions{seed: "https://other.test", compare: true})
		if err == nil || !strings.Contains(err.Error(), "at least 2 runs") {
			t.Errorf("expected at least 2 runs error, got %v", err)
		}
	})

	t.Run("deletes a run", func(t *testing.T) {
		t.Parallel()
		_, db, runs := setupHistory(t)

		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, db, historyOptions{deleteID: runs[2].ID}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		run, err := db.GetRun(context.Background(), runs[2].ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run != nil {
			t.Error("expected the run to be gone")
		}
	})
}

func TestHistoryCmdExecute(t *testing.T) {
	t.Parallel()

	t.Run("completes a bare host seed", func(t *testing.T) {
		t.Parallel()
		dir, db, _ := setupHistory(t)
		// The command opens its own connection.
		_ = db.Close()

		var out bytes.Buffer
		cmd := NewHistoryCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--db-dir", dir, "shop.test"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Stored runs (2)") {
			t.Errorf("expected 2 runs of shop.test, got:\n%s", out.String())
		}
	})

	t.Run("compare without seed", func(t *testing.T) {
		t.Parallel()
		cmd := NewHistoryCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--db-dir", t.TempDir(), "--compare"})
		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), "seed URL is required") {
			t.Errorf("expected seed required error, got %v", err)
		}
	})

	t.Run("exclusive output formats", func(t *testing.T) {
		t.Parallel()
		cmd := NewHistoryCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--db-dir", t.TempDir(), "--json", "--markdown"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected an error for --json with --markdown")
		}
	})

	t.Run("invalid seed", func(t *testing.T) {
		t.Parallel()
		cmd := NewHistoryCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--db-dir", t.TempDir(), "ftp://files.test"})
		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected an error for an ftp seed")
		}
		if errors.Unwrap(err) == nil {
			t.Errorf("expected a wrapped error, got %v", err)
		}
	})
}
