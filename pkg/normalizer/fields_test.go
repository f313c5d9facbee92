package normalizer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGenderIsClosedAndIdempotent(t *testing.T) {
	allowed := map[string]bool{"M": true, "F": true, "O": true, "UNK": true}
	inputs := []interface{}{"m", "Male", " F ", "other", "", nil, "xyz", "FEMALE", "o", 7}

	for _, in := range inputs {
		got := NormalizeGender(in)
		assert.True(t, allowed[got], "input %v produced %q", in, got)
		assert.Equal(t, got, NormalizeGender(got), "not idempotent for %v", in)
	}

	assert.Equal(t, "M", NormalizeGender("m"))
	assert.Equal(t, "M", NormalizeGender("Male"))
	assert.Equal(t, "F", NormalizeGender(" F "))
	assert.Equal(t, "O", NormalizeGender("other"))
	assert.Equal(t, "UNK", NormalizeGender(""))
	assert.Equal(t, "UNK", NormalizeGender(nil))
	assert.Equal(t, "UNK", NormalizeGender("xyz"))
}

func TestYearToBirthTimestampRange(t *testing.T) {
	for y := 1790; y <= 2110; y++ {
		ts, ok := YearToBirthTimestamp(y)
		inRange := y >= 1800 && y <= 2100
		require.Equal(t, inRange, ok, "year %d", y)
		if ok {
			assert.Equal(t, y, ts.Year())
		}
	}

	ts, ok := YearToBirthTimestamp("1980")
	require.True(t, ok)
	assert.Equal(t, 1980, ts.Year())
	assert.Equal(t, time.January, ts.Month())
	assert.Equal(t, 1, ts.Day())
	assert.Equal(t, 0, ts.Hour())
	assert.Equal(t, time.UTC, ts.Location())
}

func TestYearToBirthTimestampTolerantParsing(t *testing.T) {
	ts, ok := YearToBirthTimestamp("1980.0")
	require.True(t, ok)
	assert.Equal(t, 1980, ts.Year())

	ts, ok = YearToBirthTimestamp(" 1975.9 ")
	require.True(t, ok)
	assert.Equal(t, 1975, ts.Year())

	ts, ok = YearToBirthTimestamp(1966.0)
	require.True(t, ok)
	assert.Equal(t, 1966, ts.Year())

	for _, bad := range []interface{}{nil, "", "abc", "nan", "inf", "1e9", "-1980", "2100.5e3"} {
		_, ok := YearToBirthTimestamp(bad)
		assert.False(t, ok, "expected absence for %v", bad)
	}
}

func TestExtractKeywords(t *testing.T) {
	kw, ok := ExtractKeywords("Patient reports Fatigue and fatigue after running, mild")
	require.True(t, ok)
	assert.Equal(t, "after,fatigue,patient,reports,running,", kw)

	_, ok = ExtractKeywords("tiny bits only")
	assert.False(t, ok)

	_, ok = ExtractKeywords("   ")
	assert.False(t, ok)

	_, ok = ExtractKeywords(nil)
	assert.False(t, ok)

	_, ok = ExtractKeywords(12345678)
	assert.False(t, ok)
}

func TestExtractKeywordsTruncates(t *testing.T) {
	var words []string
	for i := 0; i < 100; i++ {
		words = append(words, "keyword"+strings.Repeat("x", i%7)+string(rune('a'+i%26)))
	}
	kw, ok := ExtractKeywords(strings.Join(words, " "))
	require.True(t, ok)
	assert.Len(t, []rune(kw), 256)
}

func TestExtractKeywordsCountsRunes(t *testing.T) {
	kw, ok := ExtractKeywords("café naïve résumé")
	require.True(t, ok)
	assert.Equal(t, "naïve,résumé", kw)
}

func TestSafeString(t *testing.T) {
	assert.Equal(t, "", SafeString(nil))
	assert.Equal(t, "E11", SafeString("E11"))
	assert.Equal(t, "42", SafeString(42))
	assert.Equal(t, "7.5", SafeString(7.5))
	assert.Equal(t, "true", SafeString(true))
}

func TestParseNumber(t *testing.T) {
	v, ok := ParseNumber(" 7.25 ")
	require.True(t, ok)
	assert.Equal(t, 7.25, v)

	for _, bad := range []interface{}{nil, "", "n/a", "NaN", "Inf"} {
		_, ok := ParseNumber(bad)
		assert.False(t, ok, "expected absence for %v", bad)
	}
}
