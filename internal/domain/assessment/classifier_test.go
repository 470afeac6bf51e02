package assessment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRuleBasedClassifierUniformPatterns(t *testing.T) {
	c := NewRuleBasedClassifier()
	require.Equal(t, SeverityNone, c.ClassifyScores(uniformScores(1)))
	// All "Always" answers sum to 24 but are deliberately Severe.
	require.Equal(t, SeveritySevere, c.ClassifyScores(uniformScores(2)))
	require.Equal(t, SeverityNone, c.ClassifyScores(uniformScores(6)))
}

func TestRuleBasedClassifierSums(t *testing.T) {
	c := NewRuleBasedClassifier()

	twentyFour := uniformScores(2)
	twentyFour[0], twentyFour[1] = 1, 3
	require.Equal(t, 24, twentyFour.Sum())
	require.Equal(t, SeverityNone, c.ClassifyScores(twentyFour))

	twentyThree := uniformScores(2)
	twentyThree[0] = 1
	require.Equal(t, 23, twentyThree.Sum())
	require.Equal(t, SeverityMild, c.ClassifyScores(twentyThree))

	fifteen := uniformScores(1)
	fifteen[0], fifteen[1], fifteen[2] = 2, 2, 2
	require.Equal(t, 15, fifteen.Sum())
	// 15 sits below the Mild floor of 16.
	require.Equal(t, SeverityModerate, c.ClassifyScores(fifteen))

	got, err := c.Classify(context.Background(), twentyThree)
	require.NoError(t, err)
	require.Equal(t, Classification{State: SeverityMild, Strategy: StrategyRule}, got)
}

func TestStateForTotalThresholds(t *testing.T) {
	cases := map[int]SeverityState{
		72: SeverityNone,
		24: SeverityNone,
		23: SeverityMild,
		16: SeverityMild,
		15: SeverityModerate,
		8:  SeverityModerate,
		7:  SeveritySevere,
		0:  SeveritySevere,
	}
	for total, want := range cases {
		require.Equal(t, want, stateForTotal(total), "total %d", total)
	}
}

type stubPredictor struct {
	out []float32
	err error
}

func (s stubPredictor) Predict(context.Context, FeatureVector) ([]float32, error) {
	return s.out, s.err
}

func TestModelClassifierArgmaxTieBreak(t *testing.T) {
	cases := []struct {
		name string
		out  []float32
		want SeverityState
	}{
		{"clear winner", []float32{0.1, 0.2, 0.6, 0.1}, SeverityModerate},
		{"tie keeps lowest index", []float32{0.1, 0.4, 0.4, 0.1}, SeverityMild},
		{"all equal", []float32{0.25, 0.25, 0.25, 0.25}, SeverityNone},
		{"last", []float32{0, 0, 0, 1}, SeveritySevere},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewModelClassifier(StaticModelHandle(stubPredictor{out: tc.out}), DefaultFeatureStats(), ModelClassifierOptions{}, discardLogger())
			got, err := c.ClassifyFeatures(context.Background(), FeatureVector{})
			require.NoError(t, err)
			require.Equal(t, tc.want, got.State)
			require.True(t, got.State.Valid())
			require.Equal(t, StrategyModel, got.Strategy)
		})
	}
}

func TestModelClassifierSoftmaxLogits(t *testing.T) {
	c := NewModelClassifier(StaticModelHandle(stubPredictor{out: []float32{1, 3, 2, 0}}), DefaultFeatureStats(), ModelClassifierOptions{OutputIsLogits: true}, discardLogger())
	got, err := c.ClassifyFeatures(context.Background(), FeatureVector{})
	require.NoError(t, err)
	require.Equal(t, SeverityMild, got.State)
	var sum float32
	for _, p := range got.Probabilities {
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}

func TestModelClassifierRejectsWrongOutputWidth(t *testing.T) {
	c := NewModelClassifier(StaticModelHandle(stubPredictor{out: []float32{1, 0}}), DefaultFeatureStats(), ModelClassifierOptions{}, discardLogger())
	_, err := c.ClassifyFeatures(context.Background(), FeatureVector{})
	var unavailable *ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestModelHandleLoadsOnceUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	handle := NewModelHandle(func(context.Context) (Predictor, error) {
		loads.Add(1)
		<-release
		return stubPredictor{out: []float32{0, 0, 1, 0}}, nil
	}, time.Second, discardLogger())
	c := NewModelClassifier(handle, DefaultFeatureStats(), ModelClassifierOptions{}, discardLogger())

	const callers = 16
	var wg sync.WaitGroup
	results := make([]SeverityState, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.Classify(context.Background(), uniformScores(4))
			results[i], errs[i] = got.State, err
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), loads.Load())
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, SeverityModerate, results[i])
	}
}

func TestModelHandleCachesFailure(t *testing.T) {
	var loads atomic.Int32
	handle := NewModelHandle(func(context.Context) (Predictor, error) {
		loads.Add(1)
		return nil, errors.New("artifact missing")
	}, 0, discardLogger())
	c := NewModelClassifier(handle, DefaultFeatureStats(), ModelClassifierOptions{}, discardLogger())

	for i := 0; i < 3; i++ {
		_, err := c.Classify(context.Background(), uniformScores(3))
		var unavailable *ModelUnavailableError
		require.ErrorAs(t, err, &unavailable)
		require.ErrorContains(t, err, "artifact missing")
	}
	require.Equal(t, int32(1), loads.Load())
}
