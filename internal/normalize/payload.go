// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload is a loosely-structured client payload. Three generations of
// mobile clients named the same fields differently (snake_case, camelCase,
// PascalCase); every semantic field resolves through an ordered alias list
// and the first present non-null value wins.
type Payload map[string]any

// aliases maps each semantic field to its historical client spellings, in
// resolution order. New spellings go last so older clients keep precedence
// they historically had.
var aliases = map[string][]string{
	"owner_id":    {"user_id", "userId", "UserId", "UserID", "author"},
	"latitude":    {"latitude", "Latitude", "lat"},
	"longitude":   {"longitude", "Longitude", "lng", "lon"},
	"accuracy":    {"accuracy", "Accuracy", "gps_accuracy", "gpsAccuracy"},
	"elevation":   {"elevation", "Elevation", "altitude"},
	"datetime":    {"datetime", "dateTime", "DateTime", "observed_at"},
	"date":        {"date", "Date", "observation_date", "observationDate", "ObservationDate"},
	"time":        {"time", "Time", "observation_time", "observationTime", "ObservationTime"},
	"township":    {"township", "Township", "trs_township"},
	"range":       {"range", "Range", "trs_range"},
	"section":     {"section", "Section", "trs_section"},
	"air_temp":    {"air_temp", "airTemp", "AirTemp", "air_temperature"},
	"ground_temp": {"ground_temp", "groundTemp", "GroundTemp", "ground_temperature"},
	"temp_unit":   {"temp_unit", "tempUnit", "TempUnit", "temperature_unit"},
	"humidity":    {"humidity", "Humidity"},
	"sky":         {"sky", "Sky", "sky_condition", "skyCondition"},
	"moon_phase":  {"moon_phase", "moonPhase", "MoonPhase", "moon"},
	"county":      {"county", "County", "county_name", "countyName"},
	"locale":      {"locale", "Locale", "locality", "Locality"},
	"notes":       {"notes", "Notes", "comments", "Comments"},
	"admin_notes": {"admin_notes", "adminNotes", "AdminNotes"},
	"source":      {"source", "Source", "app_source"},
	"visibility":  {"visibility", "Visibility", "security_level", "securityLevel", "SecurityLevel"},
	"group":       {"group", "Group", "group_name", "groupName", "GroupName"},
	"species":     {"species", "Species", "species_name", "speciesName", "common_name", "commonName", "CommonName"},
	"subspecies":  {"subspecies", "Subspecies", "subspecies_name", "subspeciesName"},
	"sex":         {"sex", "Sex", "gender"},
	"age":         {"age", "Age", "age_class", "ageClass"},
	"quantity":    {"quantity", "Quantity", "count", "Count"},
	"diseased":    {"diseased", "Diseased", "disease", "has_disease", "hasDisease"},
}

// First returns the first present non-null value among keys, in order.
func (p Payload) First(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := p[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Field resolves a semantic field through its alias list. Fields without a
// registered alias list fall back to a literal key lookup.
func (p Payload) Field(name string) (any, bool) {
	if names, ok := aliases[name]; ok {
		return p.First(names...)
	}
	return p.First(name)
}

// String returns the field as a trimmed string, coercing scalar types.
func (p Payload) String(name string) string {
	v, ok := p.Field(name)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// Float returns the field as a float64, accepting numeric strings.
func (p Payload) Float(name string) (float64, bool) {
	v, ok := p.Field(name)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int returns the field as an int64, accepting numeric strings and floats
// with no fractional part.
func (p Payload) Int(name string) (int64, bool) {
	v, ok := p.Field(name)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Bool returns the field as a bool, accepting "1"/"0", "true"/"false",
// "yes"/"no" strings and numeric forms.
func (p Payload) Bool(name string) bool {
	v, ok := p.Field(name)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int64:
		return t != 0
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y":
			return true
		}
	}
	return false
}

// Has reports whether the semantic field is present with a non-null value.
func (p Payload) Has(name string) bool {
	_, ok := p.Field(name)
	return ok
}
