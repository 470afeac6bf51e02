package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Predictor runs the trained model on one feature vector and returns one
// score per severity state.
type Predictor interface {
	Predict(ctx context.Context, features FeatureVector) ([]float32, error)
}

// PredictorLoader builds a Predictor. It runs at most once per ModelHandle.
type PredictorLoader func(ctx context.Context) (Predictor, error)

// ModelHandle lazily loads the model exactly once. Concurrent first callers
// wait on the same load and a failed load is remembered until restart.
type ModelHandle struct {
	get func() (Predictor, error)
}

// NewModelHandle wraps loader with single-flight semantics. timeout bounds
// the load; zero means no bound.
func NewModelHandle(loader PredictorLoader, timeout time.Duration, logger *slog.Logger) *ModelHandle {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "assessment.ModelHandle")
	return &ModelHandle{
		get: sync.OnceValues(func() (Predictor, error) {
			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			start := time.Now()
			predictor, err := loader(ctx)
			if err == nil && predictor == nil {
				err = errors.New("loader returned no predictor")
			}
			if err != nil {
				log.Error("model load failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
				return nil, &ModelUnavailableError{Err: err}
			}
			log.Info("model loaded", "duration_ms", time.Since(start).Milliseconds())
			return predictor, nil
		}),
	}
}

// StaticModelHandle returns a handle that is already loaded.
func StaticModelHandle(p Predictor) *ModelHandle {
	return &ModelHandle{get: func() (Predictor, error) { return p, nil }}
}

// Predictor returns the loaded model or the cached load failure.
func (h *ModelHandle) Predictor() (Predictor, error) {
	return h.get()
}

// ModelClassifier normalizes scores and classifies them with the trained model.
type ModelClassifier struct {
	handle     *ModelHandle
	stats      FeatureStats
	degenerate float64
	logits     bool
	logger     *slog.Logger
}

// ModelClassifierOptions tunes the model classifier.
type ModelClassifierOptions struct {
	DegenerateValue float64
	// OutputIsLogits applies softmax before reporting probabilities.
	OutputIsLogits bool
}

// NewModelClassifier constructs the model-backed classifier.
func NewModelClassifier(handle *ModelHandle, stats FeatureStats, opts ModelClassifierOptions, logger *slog.Logger) *ModelClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelClassifier{
		handle:     handle,
		stats:      stats,
		degenerate: opts.DegenerateValue,
		logits:     opts.OutputIsLogits,
		logger:     logger.With("component", "assessment.ModelClassifier"),
	}
}

// Classify implements Classifier.
func (c *ModelClassifier) Classify(ctx context.Context, scores Scores) (Classification, error) {
	features := Normalize(scores, c.stats, c.degenerate)
	c.logger.Debug("pipeline stage", "stage", "normalized")
	return c.ClassifyFeatures(ctx, features)
}

// ClassifyFeatures picks the most likely state for an already normalized vector.
func (c *ModelClassifier) ClassifyFeatures(ctx context.Context, features FeatureVector) (Classification, error) {
	predictor, err := c.handle.Predictor()
	if err != nil {
		var unavailable *ModelUnavailableError
		if errors.As(err, &unavailable) {
			return Classification{}, err
		}
		return Classification{}, &ModelUnavailableError{Err: err}
	}
	raw, err := predictor.Predict(ctx, features)
	if err != nil {
		return Classification{}, &ModelUnavailableError{Err: fmt.Errorf("predict: %w", err)}
	}
	if len(raw) != StateCount {
		return Classification{}, &ModelUnavailableError{Err: fmt.Errorf("model returned %d outputs, want %d", len(raw), StateCount)}
	}
	probs := append([]float32(nil), raw...)
	if c.logits {
		probs = softmax(probs)
	}
	state := argmax(probs)
	c.logger.Info("model prediction", "state", int(state), "probabilities", probs)
	return Classification{State: state, Strategy: StrategyModel, Probabilities: probs}, nil
}

// argmax returns the index of the largest value; ties keep the lowest index.
func argmax(values []float32) SeverityState {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return SeverityState(best)
}

func softmax(values []float32) []float32 {
	if len(values) == 0 {
		return values
	}
	maxV := values[0]
	for _, v := range values[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	out := make([]float32, len(values))
	for i, v := range values {
		e := math.Exp(float64(v - maxV))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
