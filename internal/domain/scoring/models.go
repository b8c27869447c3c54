package scoring

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
	"go.yaml.in/yaml/v3"
)

// Thresholds used when no model file is present.
const (
	fallbackThreshold7Day  = 0.6
	fallbackThreshold30Day = 0.5
	fallbackVersion        = "fallback"
)

// WindowModel pairs a predictor with its decision threshold.
type WindowModel struct {
	Predictor Predictor
	Threshold float64
}

// ModelSet holds one model per prediction window.
type ModelSet struct {
	Version string
	// Loaded is true when the models came from a model file.
	Loaded bool
	models map[model.Window]WindowModel
}

// NewModelSet builds a set from explicit window models.
func NewModelSet(version string, loaded bool, models map[model.Window]WindowModel) *ModelSet {
	cp := make(map[model.Window]WindowModel, len(models))
	for w, m := range models {
		cp[w] = m
	}
	return &ModelSet{Version: version, Loaded: loaded, models: cp}
}

// Fallback returns the deterministic stand-in models.
func Fallback() *ModelSet {
	return NewModelSet(fallbackVersion, false, map[model.Window]WindowModel{
		model.Window7Day:  {Predictor: NewFallbackModel(string(model.Window7Day)), Threshold: fallbackThreshold7Day},
		model.Window30Day: {Predictor: NewFallbackModel(string(model.Window30Day)), Threshold: fallbackThreshold30Day},
	})
}

// Window returns the model for w.
func (s *ModelSet) Window(w model.Window) (WindowModel, error) {
	m, ok := s.models[w]
	if !ok {
		return WindowModel{}, fmt.Errorf("%w: %s", ErrUnknownWindow, w)
	}
	return m, nil
}

// Thresholds returns the decision threshold per window.
func (s *ModelSet) Thresholds() map[model.Window]float64 {
	out := make(map[model.Window]float64, len(s.models))
	for w, m := range s.models {
		out[w] = m.Threshold
	}
	return out
}

// Score runs every window model on x.
func (s *ModelSet) Score(ctx context.Context, x []float64) (model.Scores, error) {
	var scores model.Scores
	for _, w := range model.Windows() {
		m, err := s.Window(w)
		if err != nil {
			return model.Scores{}, err
		}
		p, err := m.Predictor.PredictProba(ctx, x)
		if err != nil {
			return model.Scores{}, fmt.Errorf("score %s: %w", w, err)
		}
		scores.Set(w, clamp01(p))
	}
	return scores, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// fileModel is the on-disk representation of one window.
type fileModel struct {
	Threshold float64            `yaml:"threshold"`
	Bias      float64            `yaml:"bias"`
	Weights   map[string]float64 `yaml:"weights"`
	Means     map[string]float64 `yaml:"means"`
	Scales    map[string]float64 `yaml:"scales"`
}

type modelFile struct {
	Version string                `yaml:"version"`
	Windows map[string]*fileModel `yaml:"windows"`
}

// Load reads a YAML model file. A missing file logs a warning and returns the
// fallback set; an unreadable or malformed file is an error.
func Load(ctx context.Context, path string, log logger.Logger) (*ModelSet, error) {
	if log == nil {
		log = logger.Get()
	}
	var raw []byte
	err := fs.ErrNotExist
	if path != "" {
		raw, err = os.ReadFile(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn(ctx, "model file not found, using fallback models", logger.String("path", path))
		return Fallback(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	set, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	log.Info(ctx, "models loaded", logger.String("path", path), logger.String("version", set.Version))
	return set, nil
}

// Parse decodes a YAML model document.
func Parse(raw []byte) (*ModelSet, error) {
	var doc modelFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrInvalidModel)
	}
	models := make(map[model.Window]WindowModel, len(doc.Windows))
	for _, w := range model.Windows() {
		fm, ok := doc.Windows[string(w)]
		if !ok || fm == nil {
			return nil, fmt.Errorf("%w: missing window %s", ErrInvalidModel, w)
		}
		if fm.Threshold <= 0 || fm.Threshold >= 1 {
			return nil, fmt.Errorf("%w: %s threshold must be within (0,1)", ErrInvalidModel, w)
		}
		if len(fm.Weights) == 0 {
			return nil, fmt.Errorf("%w: %s has no weights", ErrInvalidModel, w)
		}
		lm, err := NewLogisticModel(fm.Bias, fm.Weights, fm.Means, fm.Scales)
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", w, err)
		}
		models[w] = WindowModel{Predictor: lm, Threshold: fm.Threshold}
	}
	return NewModelSet(doc.Version, true, models), nil
}
