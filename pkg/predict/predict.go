// Package predict attaches per-record scores produced by an external model
// to a table.
package predict

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/dsworkflows/chidata/pkg/table"
)

// ErrPredictionCount is returned when a predictor does not yield exactly one
// value per record.
var ErrPredictionCount = errors.New("prediction count does not match record count")

// Predictor scores every record of a table. The returned slice holds one
// value per record, in record order.
type Predictor interface {
	Predict(ctx context.Context, t *table.Table) ([]float64, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, t *table.Table) ([]float64, error)

// Predict calls f(ctx, t).
func (f PredictorFunc) Predict(ctx context.Context, t *table.Table) ([]float64, error) {
	return f(ctx, t)
}

// Attach runs p over t and returns a copy of t with the scores stored in
// column.
func Attach(ctx context.Context, p Predictor, t *table.Table, column string) (*table.Table, error) {
	scores, err := p.Predict(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", column, err)
	}
	if len(scores) != t.Len() {
		return nil, fmt.Errorf("%w: got %d for %d records", ErrPredictionCount, len(scores), t.Len())
	}

	values := make([]any, len(scores))
	for i, s := range scores {
		values[i] = s
	}
	return t.WithColumn(column, values)
}

// Placeholder returns uniformly random scores in [0, 1). It stands in for a
// real model service.
type Placeholder struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPlaceholder creates a placeholder predictor seeded with seed.
func NewPlaceholder(seed uint64) *Placeholder {
	return &Placeholder{rnd: rand.New(rand.NewPCG(seed, seed))}
}

// Predict implements Predictor.
func (p *Placeholder) Predict(ctx context.Context, t *table.Table) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]float64, t.Len())
	for i := range out {
		out[i] = p.rnd.Float64()
	}
	return out, nil
}
