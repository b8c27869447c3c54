// Package scoring holds the per-window risk models and their loader.
package scoring

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/okian/riskwatch/internal/domain/features"
)

// Predictor returns the probability of the at-risk class for a feature vector.
type Predictor interface {
	PredictProba(ctx context.Context, x []float64) (float64, error)
}

// LogisticModel is a standardised binary logistic regression.
type LogisticModel struct {
	weights []float64
	means   []float64
	scales  []float64
	bias    float64
}

// NewLogisticModel builds a model from name-keyed parameters. Missing means
// default to 0 and missing or zero scales to 1.
func NewLogisticModel(bias float64, weights, means, scales map[string]float64) (*LogisticModel, error) {
	m := &LogisticModel{
		weights: make([]float64, features.Count),
		means:   make([]float64, features.Count),
		scales:  make([]float64, features.Count),
		bias:    bias,
	}
	for i := range m.scales {
		m.scales[i] = 1
	}
	assign := func(kind string, src map[string]float64, dst []float64) error {
		for name, v := range src {
			i := features.Index(name)
			if i < 0 {
				return fmt.Errorf("%w: unknown feature %q in %s", ErrInvalidModel, name, kind)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s[%s] is not finite", ErrInvalidModel, kind, name)
			}
			dst[i] = v
		}
		return nil
	}
	if err := assign("weights", weights, m.weights); err != nil {
		return nil, err
	}
	if err := assign("means", means, m.means); err != nil {
		return nil, err
	}
	if err := assign("scales", scales, m.scales); err != nil {
		return nil, err
	}
	for i, s := range m.scales {
		if s == 0 {
			m.scales[i] = 1
		}
	}
	return m, nil
}

// PredictProba implements Predictor.
func (m *LogisticModel) PredictProba(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(x), len(m.weights))
	}
	z := m.bias
	for i, v := range x {
		z += m.weights[i] * (v - m.means[i]) / m.scales[i]
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// FallbackModel stands in for a trained model when none is available. It is
// deterministic: the same features and salt always give the same score, drawn
// from Beta(2,2).
type FallbackModel struct {
	salt string
}

// NewFallbackModel returns a fallback model; salt separates windows.
func NewFallbackModel(salt string) *FallbackModel {
	return &FallbackModel{salt: salt}
}

// PredictProba implements Predictor.
func (m *FallbackModel) PredictProba(ctx context.Context, x []float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.salt))
	for _, v := range x {
		_, _ = h.Write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
		_, _ = h.Write([]byte{','})
	}
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // deterministic stand-in, not security sensitive

	// The median of three uniforms is Beta(2,2) distributed.
	u := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
	sort.Float64s(u)
	return u[1], nil
}
