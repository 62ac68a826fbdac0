package engine

import (
	"context"
	"fmt"
	"time"
)

// StepEntry holds a step with its ID for ordered execution.
type StepEntry struct {
	ID   string
	Step Step
}

// Pipeline runs named steps in insertion order and stops at the first failure.
type Pipeline struct {
	name  string
	date  time.Time
	steps []StepEntry
}

func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		name: name,
		date: time.Now().UTC(),
	}
}

func (p *Pipeline) Name() string {
	return p.name
}

func (p *Pipeline) AddStep(id string, step Step) error {
	for _, entry := range p.steps {
		if entry.ID == id {
			return fmt.Errorf("step %s already exists", id)
		}
	}

	p.steps = append(p.steps, StepEntry{ID: id, Step: step})
	return nil
}

func (p *Pipeline) Date() time.Time {
	return p.date
}

func (p *Pipeline) Steps() []StepEntry {
	return p.steps
}

// Run resolves every step in order. Results of the steps that completed are returned
// alongside the error of the first failing step.
func (p *Pipeline) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(p.steps))

	for _, entry := range p.steps {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("context cancelled while running pipeline at step '%s': %w", entry.ID, err)
		}

		result, err := entry.Step.Resolve(ctx)
		if err != nil {
			return results, fmt.Errorf("failed to resolve step '%s': %w", entry.ID, err)
		}

		result.ID = entry.ID
		results = append(results, result)
	}

	return results, nil
}
