// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package normalize coerces heterogeneous client field values into
// storage-ready form. Unmappable input is never silently dropped: invalid
// grid-reference values spill over into the record's free-text locale, and
// unknown moon phases pass through unchanged.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TemperatureUnit classifies a unit string by its first letter,
// case-insensitively. Unrecognized input maps to the empty string.
func TemperatureUnit(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	switch s[0] {
	case 'f', 'F':
		return "F"
	case 'c', 'C':
		return "C"
	default:
		return ""
	}
}

// moonPhases maps free-text synonyms to the ten canonical phase labels.
// Keys are lower-cased, trimmed client input.
var moonPhases = map[string]string{
	"new":              "New Moon",
	"new moon":         "New Moon",
	"dark":             "Dark Moon",
	"dark moon":        "Dark Moon",
	"waxing crescent":  "Waxing Crescent",
	"crescent waxing":  "Waxing Crescent",
	"first quarter":    "First Quarter",
	"1st quarter":      "First Quarter",
	"quarter":          "First Quarter",
	"waxing gibbous":   "Waxing Gibbous",
	"gibbous waxing":   "Waxing Gibbous",
	"full":             "Full Moon",
	"full moon":        "Full Moon",
	"waning gibbous":   "Waning Gibbous",
	"gibbous waning":   "Waning Gibbous",
	"last quarter":     "Last Quarter",
	"third quarter":    "Last Quarter",
	"3rd quarter":      "Last Quarter",
	"waning crescent":  "Waning Crescent",
	"crescent waning":  "Waning Crescent",
	"blue":             "Blue Moon",
	"blue moon":        "Blue Moon",
	"second full moon": "Blue Moon",
}

// MoonPhase maps free text to a canonical phase label. Unmapped input is
// passed through unchanged rather than rejected; the field is advisory.
func MoonPhase(s string) string {
	if canonical, ok := moonPhases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return canonical
	}
	return s
}

// Spillover collects field values that failed validation so they can be
// appended to the record's free-text locale instead of being lost.
type Spillover struct {
	notes []string
}

// Add records a rejected raw value under its field name.
func (s *Spillover) Add(field, raw string) {
	s.notes = append(s.notes, fmt.Sprintf("%s: %s", field, raw))
}

// Empty reports whether nothing spilled over.
func (s *Spillover) Empty() bool { return len(s.notes) == 0 }

// AppendTo appends the collected notes to a locale string.
func (s *Spillover) AppendTo(locale string) string {
	if len(s.notes) == 0 {
		return locale
	}
	joined := strings.Join(s.notes, "; ")
	if strings.TrimSpace(locale) == "" {
		return joined
	}
	return locale + " " + joined
}

var (
	townshipPattern = regexp.MustCompile(`^[0-9]{1,2}[NSns]$`)
	rangePattern    = regexp.MustCompile(`^[0-9]{1,2}[EWew]$`)
)

// Township validates a township grid reference (1-68 + N/S). Invalid
// values are stored as "" and spill into the locale text verbatim.
func Township(raw string, sp *Spillover) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if townshipPattern.MatchString(trimmed) {
		if n, err := strconv.Atoi(trimmed[:len(trimmed)-1]); err == nil && n >= 1 && n <= 68 {
			return strings.ToUpper(trimmed)
		}
	}
	sp.Add("Township", raw)
	return ""
}

// Range validates a range grid reference (1-2 digits + E/W).
func Range(raw string, sp *Spillover) string {
	return gridRef("Range", raw, rangePattern, sp)
}

// Section validates a section number (1-36). Invalid values spill into the
// locale text like the other grid-reference fields.
func Section(raw string, sp *Spillover) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 || n > 36 {
		sp.Add("Section", raw)
		return ""
	}
	return strconv.Itoa(n)
}

func gridRef(field, raw string, pattern *regexp.Regexp, sp *Spillover) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !pattern.MatchString(trimmed) {
		sp.Add(field, raw)
		return ""
	}
	return strings.ToUpper(trimmed)
}

// DateTime builds a storage datetime string ("2006-01-02 15:04:05") from
// either a combined datetime or separate date and time parts.
//
// A combined value is accepted as-is only when it contains both a date
// separator and a time separator. Otherwise the parts apply: a date without
// a time defaults to midnight, a time without a date yields no datetime,
// and a bare HH:MM is normalized to HH:MM:SS.
func DateTime(combined, date, timeOfDay string) string {
	combined = strings.TrimSpace(combined)
	if combined != "" && containsDateSeparator(combined) && strings.Contains(combined, ":") {
		return combined
	}

	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}

	timeOfDay = strings.TrimSpace(timeOfDay)
	if timeOfDay == "" {
		timeOfDay = "00:00:00"
	} else if strings.Count(timeOfDay, ":") == 1 {
		timeOfDay += ":00"
	}

	return date + " " + timeOfDay
}

func containsDateSeparator(s string) bool {
	return strings.ContainsAny(s, "-/")
}
