package assessment

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeatureRange is the min/max a single feature was scaled with at training time.
type FeatureRange struct {
	Name string  `yaml:"name" json:"name"`
	Min  float64 `yaml:"min" json:"min"`
	Max  float64 `yaml:"max" json:"max"`
}

// FeatureStats holds one range per field, in Fields order.
type FeatureStats [FieldCount]FeatureRange

// DefaultFeatureStats spans the raw answer scale for every field.
func DefaultFeatureStats() FeatureStats {
	var stats FeatureStats
	for i, name := range Fields {
		stats[i] = FeatureRange{Name: name, Min: MinScore, Max: MaxScore}
	}
	return stats
}

type featureStatsFile struct {
	Features []FeatureRange `yaml:"features" json:"features"`
}

// LoadFeatureStats reads a YAML or JSON stats artifact. Entries may appear
// in any order but every field must be present exactly once.
func LoadFeatureStats(path string) (FeatureStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeatureStats{}, fmt.Errorf("read feature stats: %w", err)
	}
	var file featureStatsFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return FeatureStats{}, fmt.Errorf("decode feature stats: %w", err)
	}
	return buildFeatureStats(file.Features)
}

func buildFeatureStats(entries []FeatureRange) (FeatureStats, error) {
	var (
		stats FeatureStats
		seen  = make(map[string]bool, FieldCount)
	)
	index := make(map[string]int, FieldCount)
	for i, name := range Fields {
		index[name] = i
	}
	for _, entry := range entries {
		i, ok := index[entry.Name]
		if !ok {
			return FeatureStats{}, fmt.Errorf("feature stats: unknown field %q", entry.Name)
		}
		if seen[entry.Name] {
			return FeatureStats{}, fmt.Errorf("feature stats: duplicate field %q", entry.Name)
		}
		if !finite(entry.Min) || !finite(entry.Max) {
			return FeatureStats{}, fmt.Errorf("feature stats: %s range must be finite", entry.Name)
		}
		if entry.Max < entry.Min {
			return FeatureStats{}, fmt.Errorf("feature stats: %s max %.3f below min %.3f", entry.Name, entry.Max, entry.Min)
		}
		seen[entry.Name] = true
		stats[i] = entry
	}
	for _, name := range Fields {
		if !seen[name] {
			return FeatureStats{}, fmt.Errorf("feature stats: missing field %q", name)
		}
	}
	return stats, nil
}

// Normalize min-max scales scores into [0,1]. A feature whose training
// range is degenerate (max == min) maps to degenerate.
func Normalize(scores Scores, stats FeatureStats, degenerate float64) FeatureVector {
	var out FeatureVector
	for i, v := range scores {
		out[i] = float32(scale(float64(v), stats[i], degenerate))
	}
	return out
}

func scale(v float64, r FeatureRange, degenerate float64) float64 {
	span := r.Max - r.Min
	if span == 0 {
		return clamp01(degenerate)
	}
	return clamp01((v - r.Min) / span)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
