package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/sitewalk/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the run that
// previous steps filled in.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; problems with single
	// pages are recorded in the run and return nil.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// FinalStep is implemented by steps that still run after the context is
// done, so that a cancelled or timed out run keeps its partial result.
// Final steps get a context without the cancellation.
type FinalStep interface {
	Step
	Final() bool
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The default is to stop, because a failed login
// must not be followed by a traversal or a report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation is checked before each step. Once the context is done the
// run is marked TimedOut, ordinary steps are skipped and final steps still
// run, after which ctx.Err() is returned.
//
// Returns the first step error if continueOnError is false. The error
// message is also stored in run.Error.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	for _, step := range p.steps {
		stepCtx := ctx

		if ctx.Err() != nil {
			run.TimedOut = true
			if !isFinal(step) {
				p.logger.Warn("step skipped",
					"step", step.Name(),
					"seed", run.Seed,
					"reason", ctx.Err(),
				)
				continue
			}
			stepCtx = context.WithoutCancel(ctx)
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"seed", run.Seed,
		)

		if err := step.Do(stepCtx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", run.Seed,
				"error", err,
			)

			run.Error = err.Error()

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"seed", run.Seed,
			)
		}

		run.Steps = append(run.Steps, step.Name())
	}

	return ctx.Err()
}

// isFinal reports whether step runs after cancellation.
func isFinal(step Step) bool {
	f, ok := step.(FinalStep)
	return ok && f.Final()
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
