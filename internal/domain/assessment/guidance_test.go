package assessment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	text  string
	err   error
	delay time.Duration
	calls int
	last  GenerationRequest
}

func (s *stubGenerator) GenerateText(ctx context.Context, req GenerationRequest) (Generation, error) {
	s.calls++
	s.last = req
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Generation{}, ctx.Err()
		}
	}
	if s.err != nil {
		return Generation{}, s.err
	}
	return Generation{Text: s.text, Model: "stub"}, nil
}

const validBundleJSON = `{"suggestion":{"en":"Talk to someone you trust.","id":"Bicaralah dengan orang yang Anda percaya."},"tips":{"en":"Take a short walk.","id":"Berjalan-jalan sebentar."}}`

func newGuidance(gen TextGenerator, timeout time.Duration) *GuidanceGenerator {
	return NewGuidanceGenerator(GuidanceConfig{Timeout: timeout}, gen, discardLogger())
}

func TestGuidanceGeneratorUsesGeneratorOutput(t *testing.T) {
	gen := &stubGenerator{text: "```json\n" + validBundleJSON + "\n```"}
	bundle := newGuidance(gen, time.Second).Generate(context.Background(), GuidanceRequest{State: SeverityMild, Scores: uniformScores(4)})

	require.Equal(t, 1, gen.calls)
	require.Equal(t, "Talk to someone you trust.", bundle.Suggestion.EN)
	require.Equal(t, "Berjalan-jalan sebentar.", bundle.Tips.ID)
	require.NotNil(t, gen.last.Schema)
	require.Contains(t, gen.last.System, `"suggestion"`)
}

func TestGuidanceGeneratorFallsBack(t *testing.T) {
	cases := []struct {
		name string
		gen  *stubGenerator
	}{
		{"call throws", &stubGenerator{err: errors.New("upstream 503")}},
		{"non JSON", &stubGenerator{text: "Here is some friendly advice for you."}},
		{"missing locale", &stubGenerator{text: `{"suggestion":{"en":"hi"},"tips":{"en":"a","id":"b"}}`}},
		{"blank string", &stubGenerator{text: `{"suggestion":{"en":" ","id":"x"},"tips":{"en":"a","id":"b"}}`}},
		{"wrong type", &stubGenerator{text: `{"suggestion":"hi","tips":{"en":"a","id":"b"}}`}},
		{"timeout", &stubGenerator{text: validBundleJSON, delay: time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bundle := newGuidance(tc.gen, 20*time.Millisecond).Generate(context.Background(), GuidanceRequest{State: SeverityModerate, Scores: uniformScores(3)})
			require.Equal(t, FallbackGuidance(SeverityModerate, false), bundle)
			require.NotEmpty(t, bundle.Suggestion.EN)
			require.NotEmpty(t, bundle.Suggestion.ID)
			require.NotEmpty(t, bundle.Tips.EN)
			require.NotEmpty(t, bundle.Tips.ID)
		})
	}
}

func TestGuidanceGeneratorWithoutClientUsesFallback(t *testing.T) {
	geo := &GeoPoint{Latitude: -6.2, Longitude: 106.8}
	bundle := newGuidance(nil, 0).Generate(context.Background(), GuidanceRequest{State: SeveritySevere, Geo: geo})
	require.Equal(t, FallbackGuidance(SeveritySevere, true), bundle)
	require.NotEqual(t, FallbackGuidance(SeveritySevere, false).Tips, bundle.Tips)
}

func TestFallbackGuidanceCoversEveryState(t *testing.T) {
	for state := SeverityNone; state <= SeveritySevere; state++ {
		for _, geo := range []bool{false, true} {
			b := FallbackGuidance(state, geo)
			require.NotEmpty(t, b.Suggestion.EN, "state %d geo %v", state, geo)
			require.NotEmpty(t, b.Suggestion.ID)
			require.NotEmpty(t, b.Tips.EN)
			require.NotEmpty(t, b.Tips.ID)
		}
	}
	require.Equal(t, "Your responses suggest you are doing well. Keep up the positive habits!", FallbackGuidance(SeverityNone, false).Suggestion.EN)
	require.Equal(t, FallbackGuidance(SeveritySevere, false), FallbackGuidance(SeverityState(9), false))
}

func TestConcerningFields(t *testing.T) {
	scores := uniformScores(6)
	scores[0] = 2  // appetite, concerning
	scores[2] = 5  // fatigue, not concerning at 5
	scores[6] = 5  // suicidalIdeation, concerning at 5
	scores[9] = 3  // panicAttacks
	scores[11] = 1 // restlessness, not concerning

	require.Equal(t, []string{
		"appetite (Always)",
		"suicidalIdeation (Sometimes)",
		"panicAttacks (Often)",
	}, ConcerningFields(scores))
}

func TestBuildGuidancePromptGeoOnlyForSevere(t *testing.T) {
	geo := &GeoPoint{Latitude: 1.3521, Longitude: 103.8198}

	severe := BuildGuidancePrompt(GuidanceRequest{State: SeveritySevere, Scores: uniformScores(2), Geo: geo})
	require.Contains(t, severe, "severe depressive symptoms")
	require.Contains(t, severe, "latitude 1.3521")
	require.Contains(t, severe, "suicidalIdeation (Always)")

	noGeo := BuildGuidancePrompt(GuidanceRequest{State: SeveritySevere, Scores: uniformScores(2)})
	require.Contains(t, noGeo, "enabling location sharing")

	mild := BuildGuidancePrompt(GuidanceRequest{State: SeverityMild, Scores: uniformScores(4), Geo: geo})
	require.NotContains(t, mild, "latitude")
	require.NotContains(t, mild, "particular concerns")
	require.True(t, strings.HasSuffix(mild, "empathetic and actionable."))
}

func TestParseGuidance(t *testing.T) {
	bundle, failure := ParseGuidance(validBundleJSON)
	require.Nil(t, failure)
	require.Equal(t, "Take a short walk.", bundle.Tips.EN)

	_, failure = ParseGuidance("")
	require.NotNil(t, failure)
	require.Equal(t, "empty response", failure.Reason)

	_, failure = ParseGuidance("[1,2]")
	require.NotNil(t, failure)
	require.Contains(t, failure.Reason, "schema mismatch")
}
