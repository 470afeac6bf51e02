package assessment

import (
	"encoding/json"
	"time"
)

// FieldCount is the number of questionnaire items.
const FieldCount = 12

// Fields lists the questionnaire items in the order used for storage,
// normalization and model input.
var Fields = [FieldCount]string{
	"appetite",
	"interest",
	"fatigue",
	"worthlessness",
	"concentration",
	"agitation",
	"suicidalIdeation",
	"sleepDisturbance",
	"aggression",
	"panicAttacks",
	"hopelessness",
	"restlessness",
}

// Answer bounds on the raw scale.
const (
	MinScore = 1
	MaxScore = 6
)

// ScoreMeanings labels the raw scale. Lower is not monotonic in severity:
// 2 ("Always") and 3 ("Often") are the most concerning answers.
var ScoreMeanings = map[int]string{
	1: "Never",
	2: "Always",
	3: "Often",
	4: "Rarely",
	5: "Sometimes",
	6: "Not at all",
}

// Scores holds validated raw answers in Fields order.
type Scores [FieldCount]int

// Sum returns the total raw score.
func (s Scores) Sum() int {
	total := 0
	for _, v := range s {
		total += v
	}
	return total
}

// Get returns the answer for a field name.
func (s Scores) Get(field string) (int, bool) {
	for i, name := range Fields {
		if name == field {
			return s[i], true
		}
	}
	return 0, false
}

// MarshalJSON renders scores keyed by field name.
func (s Scores) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, FieldCount)
	for i, name := range Fields {
		out[name] = s[i]
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the keyed form written by MarshalJSON. Unknown keys
// are ignored.
func (s *Scores) UnmarshalJSON(data []byte) error {
	var in map[string]int
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for i, name := range Fields {
		s[i] = in[name]
	}
	return nil
}

// FeatureVector is the normalized model input, each element in [0,1].
type FeatureVector [FieldCount]float32

// SeverityState is the ordinal screening outcome.
type SeverityState int

const (
	SeverityNone SeverityState = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

// StateCount is the number of severity states.
const StateCount = 4

// Valid reports whether the state is one of the four known states.
func (s SeverityState) Valid() bool {
	return s >= SeverityNone && s <= SeveritySevere
}

func (s SeverityState) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityMild:
		return "mild"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return "unknown"
	}
}

// Language is a supported response locale.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageIndonesian Language = "id"
)

// GeoPoint is an optional caller location.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Input is a fully validated assessment request.
type Input struct {
	UserID   int64
	Scores   Scores
	Language Language
	Geo      *GeoPoint
}

// LocalizedText carries one string per supported locale.
type LocalizedText struct {
	EN string `json:"en"`
	ID string `json:"id"`
}

// GuidanceBundle is the bilingual suggestion returned with every assessment.
type GuidanceBundle struct {
	Suggestion LocalizedText `json:"suggestion"`
	Tips       LocalizedText `json:"tips"`
}

// Strategy names the classifier implementation that produced a state.
type Strategy string

const (
	StrategyRule  Strategy = "rule"
	StrategyModel Strategy = "model"
)

// Record is the persisted result of one assessment. Records are immutable.
type Record struct {
	ID         int64
	UserID     int64
	Scores     Scores
	State      SeverityState
	Classifier Strategy
	Language   Language
	Geo        *GeoPoint
	Guidance   GuidanceBundle
	CreatedAt  time.Time
}

// RecordView is the externally visible shape of a record.
type RecordView struct {
	ID              int64         `json:"id"`
	UserID          int64         `json:"userId"`
	HealthTestDate  time.Time     `json:"healthTestDate"`
	DepressionState SeverityState `json:"depressionState"`
	Language        Language      `json:"language"`
	Scores          Scores        `json:"scores"`
	Suggestion      LocalizedText `json:"suggestion"`
	Tips            LocalizedText `json:"tips"`
}

// View converts a record to its response shape.
func (r Record) View() RecordView {
	return RecordView{
		ID:              r.ID,
		UserID:          r.UserID,
		HealthTestDate:  r.CreatedAt,
		DepressionState: r.State,
		Language:        r.Language,
		Scores:          r.Scores,
		Suggestion:      r.Guidance.Suggestion,
		Tips:            r.Guidance.Tips,
	}
}

// Response is returned by the predict endpoint.
type Response struct {
	Message string     `json:"message"`
	Data    RecordView `json:"data"`
}

// HistoryResponse is returned by the history endpoints.
type HistoryResponse struct {
	Message string       `json:"message"`
	Data    []RecordView `json:"data"`
}
