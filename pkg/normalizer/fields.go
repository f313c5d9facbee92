package normalizer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	GenderMale    = "M"
	GenderFemale  = "F"
	GenderOther   = "O"
	GenderUnknown = "UNK"

	MinBirthYear = 1800
	MaxBirthYear = 2100

	minKeywordRunes = 5
	maxKeywordsLen  = 256
)

// NormalizeGender maps a raw gender value onto M, F, O or UNK.
func NormalizeGender(raw interface{}) string {
	switch strings.ToUpper(strings.TrimSpace(SafeString(raw))) {
	case "M", "MALE":
		return GenderMale
	case "F", "FEMALE":
		return GenderFemale
	case "O", "OTHER":
		return GenderOther
	default:
		return GenderUnknown
	}
}

// YearToBirthTimestamp returns January 1, 00:00:00 UTC of the given year.
// Values such as "1980.0" are accepted; anything unparsable or outside
// [MinBirthYear, MaxBirthYear] reports false.
func YearToBirthTimestamp(raw interface{}) (time.Time, bool) {
	if raw == nil {
		return time.Time{}, false
	}
	f, ok := ParseNumber(raw)
	if !ok {
		return time.Time{}, false
	}
	year := math.Trunc(f)
	if year < MinBirthYear || year > MaxBirthYear {
		return time.Time{}, false
	}
	return time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC), true
}

// ExtractKeywords keeps the distinct lowercase whitespace tokens longer than
// four characters, sorted and comma-joined, capped at 256 characters.
// Non-string or blank input reports false.
func ExtractKeywords(raw interface{}) (string, bool) {
	text, ok := raw.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}

	seen := make(map[string]struct{})
	for _, token := range strings.Fields(text) {
		if utf8.RuneCountInString(token) < minKeywordRunes {
			continue
		}
		seen[strings.ToLower(token)] = struct{}{}
	}
	if len(seen) == 0 {
		return "", false
	}

	keywords := make([]string, 0, len(seen))
	for k := range seen {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	return truncateRunes(strings.Join(keywords, ","), maxKeywordsLen), true
}

// SafeString renders nil as the empty string and everything else in its
// natural string form.
func SafeString(x interface{}) string {
	switch v := x.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseNumber parses the string form of raw as a finite float.
func ParseNumber(raw interface{}) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		s := strings.TrimSpace(SafeString(raw))
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
