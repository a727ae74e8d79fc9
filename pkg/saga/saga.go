// Package saga runs a sequence of steps and undoes the completed ones when a
// later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Step represents a single step in a saga with an execute and compensate function.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed. It unwraps to the step's own error so
// callers can keep matching domain errors with errors.Is and errors.As.
type StepError struct {
	Saga  string
	Step  string
	Index int
	Err   error
	// CompensationErr joins every compensation that failed, if any.
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %q failed (%v), compensation also failed: %v", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %q failed: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Saga orchestrates a series of steps with automatic compensation on failure.
type Saga struct {
	name  string
	steps []Step
}

// New creates a new saga with the given name.
func New(name string) *Saga {
	return &Saga{name: name}
}

// AddStep adds a step to the saga.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs all saga steps sequentially. If a step fails, the completed
// steps are compensated in reverse order and a *StepError is returned along
// with the failed index. On success it returns -1 and nil.
//
// Compensation runs detached from ctx cancellation: a client that hangs up
// mid-request must not leave a half-created reservation behind.
func (s *Saga) Execute(ctx context.Context) (failedStep int, err error) {
	for i, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			return i, &StepError{
				Saga:            s.name,
				Step:            step.Name,
				Index:           i,
				Err:             err,
				CompensationErr: s.compensate(context.WithoutCancel(ctx), i),
			}
		}
	}
	return -1, nil
}

// compensate undoes steps[0:failed] in reverse order.
func (s *Saga) compensate(ctx context.Context, failed int) error {
	var errs []error
	for i := failed - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			log.Error().Err(err).Str("saga", s.name).Str("step", step.Name).Msg("compensation failed")
			errs = append(errs, fmt.Errorf("compensate step %q: %w", step.Name, err))
			continue
		}
		log.Debug().Str("saga", s.name).Str("step", step.Name).Msg("step compensated")
	}
	return errors.Join(errs...)
}
