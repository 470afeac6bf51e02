package onnxmodel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
)

// Config locates the classifier artifact and the onnxruntime library.
type Config struct {
	Path              string
	SharedLibraryPath string
	InputName         string
	OutputName        string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.InputName) == "" {
		c.InputName = "input"
	}
	if strings.TrimSpace(c.OutputName) == "" {
		c.OutputName = "output"
	}
	if strings.TrimSpace(c.SharedLibraryPath) == "" {
		c.SharedLibraryPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	return c
}

// Model runs the severity classifier. Input is [1,12] normalized
// features, output is [1,4] scores.
type Model struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	mu sync.Mutex
}

// Load initializes onnxruntime and opens a session on the artifact.
func Load(cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if cfg.Path == "" {
		return nil, errors.New("model path is empty")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", cfg.Path, err)
	}
	if cfg.SharedLibraryPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set classifier.model.sharedLibraryPath or ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, assessment.FieldCount))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, assessment.StateCount))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(
		cfg.Path,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &Model{session: session, input: input, output: output}, nil
}

// Predict implements assessment.Predictor. Runs are serialized because the
// tensors are shared.
func (m *Model) Predict(ctx context.Context, features assessment.FeatureVector) ([]float32, error) {
	if m == nil || m.session == nil {
		return nil, errors.New("onnx model not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.input.GetData(), features[:])
	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	out := make([]float32, assessment.StateCount)
	copy(out, m.output.GetData())
	return out, nil
}

// Close releases the session and tensors.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	if m.input != nil {
		errs = append(errs, m.input.Destroy())
	}
	if m.output != nil {
		errs = append(errs, m.output.Destroy())
	}
	return errors.Join(errs...)
}

var _ assessment.Predictor = (*Model)(nil)
