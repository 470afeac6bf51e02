package assessmentrepo

import (
	"database/sql"
	"time"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
)

// scoreColumns maps assessment.Fields order to column names.
var scoreColumns = [assessment.FieldCount]string{
	"appetite",
	"interest",
	"fatigue",
	"worthlessness",
	"concentration",
	"agitation",
	"suicidal_ideation",
	"sleep_disturbance",
	"aggression",
	"panic_attacks",
	"hopelessness",
	"restlessness",
}

const recordColumns = "id, user_id, appetite, interest, fatigue, worthlessness, concentration, agitation, " +
	"suicidal_ideation, sleep_disturbance, aggression, panic_attacks, hopelessness, restlessness, " +
	"depression_state, classifier, language, suggestion_en, suggestion_id, tips_en, tips_id, " +
	"latitude, longitude, health_test_date"

type rowScanner interface {
	Scan(dest ...any) error
}

// insertArgs returns values in recordColumns order minus id.
func insertArgs(r assessment.Record) []any {
	args := make([]any, 0, 23)
	args = append(args, r.UserID)
	for _, v := range r.Scores {
		args = append(args, v)
	}
	var lat, lng sql.NullFloat64
	if r.Geo != nil {
		lat = sql.NullFloat64{Float64: r.Geo.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: r.Geo.Longitude, Valid: true}
	}
	args = append(args,
		int(r.State),
		string(r.Classifier),
		string(r.Language),
		r.Guidance.Suggestion.EN,
		r.Guidance.Suggestion.ID,
		r.Guidance.Tips.EN,
		r.Guidance.Tips.ID,
		lat,
		lng,
		r.CreatedAt,
	)
	return args
}

func scanRecord(row rowScanner) (assessment.Record, error) {
	var (
		rec        assessment.Record
		state      int
		classifier string
		language   string
		lat, lng   sql.NullFloat64
		created    time.Time
	)
	dest := []any{&rec.ID, &rec.UserID}
	for i := range rec.Scores {
		dest = append(dest, &rec.Scores[i])
	}
	dest = append(dest,
		&state,
		&classifier,
		&language,
		&rec.Guidance.Suggestion.EN,
		&rec.Guidance.Suggestion.ID,
		&rec.Guidance.Tips.EN,
		&rec.Guidance.Tips.ID,
		&lat,
		&lng,
		&created,
	)
	if err := row.Scan(dest...); err != nil {
		return assessment.Record{}, err
	}
	rec.State = assessment.SeverityState(state)
	rec.Classifier = assessment.Strategy(classifier)
	rec.Language = assessment.Language(language)
	if lat.Valid && lng.Valid {
		rec.Geo = &assessment.GeoPoint{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	rec.CreatedAt = created.UTC()
	return rec, nil
}
