package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidateScores checks that every questionnaire field is present, an
// integer and within [MinScore, MaxScore]. All offending fields are
// reported together.
func ValidateScores(raw map[string]json.RawMessage) (Scores, error) {
	var (
		scores Scores
		verr   ValidationError
	)
	for i, field := range Fields {
		value, ok := raw[field]
		if !ok || isEmpty(value) {
			verr.add(field, field+" score is required")
			continue
		}
		n, err := parseInteger(value)
		if err != nil {
			verr.add(field, fmt.Sprintf("%s score must be an integer between %d and %d", field, MinScore, MaxScore))
			continue
		}
		if n < MinScore || n > MaxScore {
			verr.add(field, fmt.Sprintf("%s score must be an integer between %d and %d", field, MinScore, MaxScore))
			continue
		}
		scores[i] = int(n)
	}
	if len(verr.Fields) > 0 {
		return Scores{}, &verr
	}
	return scores, nil
}

// ParseInput validates a full predict payload.
func ParseInput(raw map[string]json.RawMessage) (Input, error) {
	var verr ValidationError

	userID, err := parseUserID(raw["userId"])
	if err != nil {
		verr.add("userId", err.Error())
	}

	scores, err := ValidateScores(raw)
	if err != nil {
		verr.Fields = append(verr.Fields, FieldErrors(err)...)
	}

	language, err := parseLanguage(raw["language"])
	if err != nil {
		verr.add("language", err.Error())
	}

	geo, geoErrs := parseGeo(raw["latitude"], raw["longitude"])
	verr.Fields = append(verr.Fields, geoErrs...)

	if len(verr.Fields) > 0 {
		return Input{}, &verr
	}
	return Input{
		UserID:   userID,
		Scores:   scores,
		Language: language,
		Geo:      geo,
	}, nil
}

// ParseUserID validates a user id taken from a path parameter.
func ParseUserID(value string) (int64, error) {
	id, err := parseUserID(json.RawMessage(strconv.Quote(value)))
	if err != nil {
		return 0, &ValidationError{Fields: []FieldError{{Field: "userId", Reason: err.Error()}}}
	}
	return id, nil
}

func parseUserID(value json.RawMessage) (int64, error) {
	if isEmpty(value) {
		return 0, fmt.Errorf("user ID is required")
	}
	n, err := parseInteger(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("user ID must be a positive integer")
	}
	return n, nil
}

func parseLanguage(value json.RawMessage) (Language, error) {
	if isEmpty(value) {
		return LanguageEnglish, nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", fmt.Errorf("language must be one of en, id")
	}
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case "", LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageIndonesian:
		return LanguageIndonesian, nil
	default:
		return "", fmt.Errorf("language must be one of en, id")
	}
}

func parseGeo(latRaw, lngRaw json.RawMessage) (*GeoPoint, []FieldError) {
	hasLat, hasLng := !isEmpty(latRaw), !isEmpty(lngRaw)
	if !hasLat && !hasLng {
		return nil, nil
	}
	var errs []FieldError
	if hasLat != hasLng {
		missing := "latitude"
		if !hasLng {
			missing = "longitude"
		}
		return nil, []FieldError{{Field: missing, Reason: "latitude and longitude must be provided together"}}
	}
	lat, err := parseFloat(latRaw)
	if err != nil || lat < -90 || lat > 90 {
		errs = append(errs, FieldError{Field: "latitude", Reason: "latitude must be a number between -90 and 90"})
	}
	lng, err := parseFloat(lngRaw)
	if err != nil || lng < -180 || lng > 180 {
		errs = append(errs, FieldError{Field: "longitude", Reason: "longitude must be a number between -180 and 180"})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &GeoPoint{Latitude: lat, Longitude: lng}, nil
}

// parseInteger accepts a JSON integer or a string holding one.
func parseInteger(value json.RawMessage) (int64, error) {
	text, err := scalarText(value)
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(text, "+") {
		return 0, fmt.Errorf("unexpected sign in %q", text)
	}
	return strconv.ParseInt(text, 10, 64)
}

func parseFloat(value json.RawMessage) (float64, error) {
	text, err := scalarText(value)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

func scalarText(value json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case '{', '[', 't', 'f', 'n':
		return "", fmt.Errorf("unsupported value %s", trimmed)
	default:
		return string(trimmed), nil
	}
}

func isEmpty(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}
