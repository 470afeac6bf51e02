package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/infra/onnxmodel"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "screenctl",
		Short:         "Offline tools for the depression screening pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("stats", "", "Path to a feature statistics file (YAML or JSON); defaults to the 1..6 answer range")

	root.AddCommand(newClassifyCmd())
	root.AddCommand(newStatsCmd())
	return root
}

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one questionnaire read from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			strategy, _ := cmd.Flags().GetString("strategy")
			modelPath, _ := cmd.Flags().GetString("model")
			sharedLib, _ := cmd.Flags().GetString("onnxruntime")
			logits, _ := cmd.Flags().GetBool("logits")
			degenerate, _ := cmd.Flags().GetFloat64("degenerate")
			statsPath, _ := cmd.Flags().GetString("stats")

			scores, err := readScores(file)
			if err != nil {
				return err
			}
			stats, err := loadStats(statsPath)
			if err != nil {
				return err
			}

			var classifier assessment.Classifier
			switch strategy {
			case string(assessment.StrategyRule):
				classifier = assessment.NewRuleBasedClassifier()
			case string(assessment.StrategyModel):
				model, err := onnxmodel.Load(onnxmodel.Config{Path: modelPath, SharedLibraryPath: sharedLib})
				if err != nil {
					return fmt.Errorf("load model: %w", err)
				}
				defer model.Close()
				classifier = assessment.NewModelClassifier(assessment.StaticModelHandle(model), stats,
					assessment.ModelClassifierOptions{DegenerateValue: degenerate, OutputIsLogits: logits}, quietLogger())
			default:
				return fmt.Errorf("unknown strategy %q, want rule or model", strategy)
			}

			result, err := classifier.Classify(context.Background(), scores)
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}
			return printClassification(cmd.OutOrStdout(), scores, stats, degenerate, result)
		},
	}
	cmd.Flags().String("file", "", "JSON file with the twelve answers")
	cmd.Flags().String("strategy", string(assessment.StrategyRule), "Classifier strategy: rule or model")
	cmd.Flags().String("model", "", "Path to the ONNX classifier (model strategy)")
	cmd.Flags().String("onnxruntime", "", "Path to the onnxruntime shared library (model strategy)")
	cmd.Flags().Bool("logits", false, "Apply softmax to the model output")
	cmd.Flags().Float64("degenerate", 0, "Normalized value for features whose range is empty")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Validate a feature statistics file and print its ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			stats, err := assessment.LoadFeatureStats(file)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s  %6s  %6s\n", "Feature", "Min", "Max")
			fmt.Fprintln(out, strings.Repeat("-", 36))
			for _, r := range stats {
				note := ""
				if r.Max == r.Min {
					note = "  (degenerate)"
				}
				fmt.Fprintf(out, "%-20s  %6g  %6g%s\n", r.Name, r.Min, r.Max, note)
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "Feature statistics file to check")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readScores(path string) (assessment.Scores, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return assessment.Scores{}, fmt.Errorf("read answers: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return assessment.Scores{}, fmt.Errorf("answers must be a JSON object: %w", err)
	}
	scores, err := assessment.ValidateScores(raw)
	if err != nil {
		return assessment.Scores{}, err
	}
	return scores, nil
}

func loadStats(path string) (assessment.FeatureStats, error) {
	if strings.TrimSpace(path) == "" {
		return assessment.DefaultFeatureStats(), nil
	}
	return assessment.LoadFeatureStats(path)
}

type classifyReport struct {
	State         int                       `json:"state"`
	Severity      string                    `json:"severity"`
	Strategy      assessment.Strategy       `json:"strategy"`
	Total         int                       `json:"total"`
	Probabilities []float32                 `json:"probabilities,omitempty"`
	Concerning    []string                  `json:"concerning,omitempty"`
	Features      map[string]float32        `json:"features"`
	Guidance      assessment.GuidanceBundle `json:"guidance"`
}

func printClassification(out io.Writer, scores assessment.Scores, stats assessment.FeatureStats, degenerate float64, result assessment.Classification) error {
	vector := assessment.Normalize(scores, stats, degenerate)
	features := make(map[string]float32, len(vector))
	for i, name := range assessment.Fields {
		features[name] = vector[i]
	}
	report := classifyReport{
		State:         int(result.State),
		Severity:      result.State.String(),
		Strategy:      result.Strategy,
		Total:         scores.Sum(),
		Probabilities: result.Probabilities,
		Concerning:    assessment.ConcerningFields(scores),
		Features:      features,
		Guidance:      assessment.FallbackGuidance(result.State, false),
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
