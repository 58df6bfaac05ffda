package saga

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Step is one unit of work with a compensating action that undoes it.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator runs steps in order. When a step fails, every step that had
// already succeeded is compensated in reverse order before the error returns.
type Orchestrator struct {
	steps  []Step
	logger *zap.Logger
}

func NewOrchestrator(logger *zap.Logger, steps ...Step) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{steps: steps, logger: logger}
}

func (o *Orchestrator) Add(step Step) {
	o.steps = append(o.steps, step)
}

// Run executes the saga. The returned error is the failing step's error,
// joined with any compensation failures.
func (o *Orchestrator) Run(ctx context.Context) error {
	done := make([]Step, 0, len(o.steps))

	for _, step := range o.steps {
		o.logger.Debug("saga step executing", zap.String("step", step.Name()))
		if err := step.Execute(ctx); err != nil {
			o.logger.Info("saga step failed, compensating",
				zap.String("step", step.Name()),
				zap.Int("completed_steps", len(done)),
				zap.Error(err),
			)
			if cerr := o.compensate(ctx, done); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
		done = append(done, step)
	}
	return nil
}

// Compensate undoes every step, newest first. Used when a later stage of the
// surrounding use case fails after the saga itself completed.
func (o *Orchestrator) Compensate(ctx context.Context) error {
	return o.compensate(ctx, o.steps)
}

func (o *Orchestrator) compensate(ctx context.Context, steps []Step) error {
	// Compensation must run even when the request context is already done.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx); err != nil {
			o.logger.Error("saga compensation failed", zap.String("step", step.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
