package adapter

import (
	"context"

	"persona-research/internal/domain/model"
)

// Synthesizer turns the aggregated collector results of a job into a persona.
type Synthesizer interface {
	Synthesize(ctx context.Context, in model.SynthesisInput) (*model.PersonaDocument, error)
}
