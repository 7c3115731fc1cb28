package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/sitewalk/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	final     bool
	doFunc    func(ctx context.Context, run *model.Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *model.Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// Final implements FinalStep.Final.
func (m *mockStep) Final() bool {
	return m.final
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to be false")
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	names := p.StepNames()
	expected := []string{"first", "second", "third"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d steps, got %d", len(expected), len(names))
	}
	for i, name := range names {
		if name != expected[i] {
			t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
		}
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		order := make([]string, 0)
		record := func(name string) func(context.Context, *model.Run) error {
			return func(context.Context, *model.Run) error {
				order = append(order, name)
				return nil
			}
		}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&mockStep{name: "a", doFunc: record("a")},
			&mockStep{name: "b", doFunc: record("b")},
		)

		run := model.NewRun("https://example.test")
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 2 || order[0] != "a" || order[1] != "b" {
			t.Errorf("unexpected order %v", order)
		}
		if len(run.Steps) != 2 {
			t.Errorf("expected 2 performed steps, got %v", run.Steps)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("login rejected")
		failing := &mockStep{name: "login", doFunc: func(context.Context, *model.Run) error { return boom }}
		after := &mockStep{name: "report", final: true}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(failing, after)

		run := model.NewRun("https://example.test")
		err := p.Execute(context.Background(), run)
		if !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
		if after.callCount != 0 {
			t.Error("expected no step to run after a failure, final steps included")
		}
		if run.Error != "login rejected" {
			t.Errorf("expected run error to be recorded, got %q", run.Error)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		failing := &mockStep{name: "first", doFunc: func(context.Context, *model.Run) error {
			return errors.New("failed")
		}}
		second := &mockStep{name: "second"}

		p := New(WithLogger(discardLogger()), WithContinueOnError(true))
		p.AddSteps(failing, second)

		if err := p.Execute(context.Background(), model.NewRun("https://example.test")); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if second.callCount != 1 {
			t.Errorf("expected second step to run once, got %d", second.callCount)
		}
	})

	t.Run("cancellation skips ordinary steps and runs final steps", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())

		var finalCtxErr error
		crawl := &mockStep{name: "crawl", doFunc: func(context.Context, *model.Run) error {
			cancel()
			return nil
		}}
		skipped := &mockStep{name: "analyze"}
		final := &mockStep{name: "report", final: true, doFunc: func(ctx context.Context, _ *model.Run) error {
			finalCtxErr = ctx.Err()
			return nil
		}}

		p := New(WithLogger(discardLogger()))
		p.AddSteps(crawl, skipped, final)

		run := model.NewRun("https://example.test")
		err := p.Execute(ctx, run)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if skipped.callCount != 0 {
			t.Error("expected ordinary step to be skipped")
		}
		if final.callCount != 1 {
			t.Error("expected final step to run")
		}
		if finalCtxErr != nil {
			t.Errorf("expected final step context to be live, got %v", finalCtxErr)
		}
		if !run.TimedOut {
			t.Error("expected run to be marked TimedOut")
		}
	})
}
