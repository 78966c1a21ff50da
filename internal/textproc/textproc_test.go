package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStripsMarkup(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "html tags become spaces",
			input:    "<div>login <b>fails</b></div>",
			expected: "login fails",
		},
		{
			name:     "special characters removed",
			input:    "error: crash @ #startup!",
			expected: "error crash startup!",
		},
		{
			name:     "whitespace collapsed and trimmed",
			input:    "  too   many\n\tspaces  ",
			expected: "too many spaces",
		},
		{
			name:     "basic punctuation kept",
			input:    "Is it broken? Yes, badly.",
			expected: "Is it broken? Yes, badly.",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only markup",
			input:    "<br/><hr>",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	input := "<p>Login page crashes    on submit!</p>"
	once := Normalize(input)
	assert.Equal(t, once, Normalize(once))
}

func TestExtractKeywordsShortInput(t *testing.T) {
	assert.Empty(t, ExtractKeywords("", DefaultMaxKeywords))
	assert.Empty(t, ExtractKeywords("ab", DefaultMaxKeywords))
	assert.Empty(t, ExtractKeywords("<b>x</b>", DefaultMaxKeywords))
}

func TestExtractKeywordsRanksByFrequency(t *testing.T) {
	text := "database timeout database timeout database connection failed during login"

	keywords := ExtractKeywords(text, DefaultMaxKeywords)

	assert.NotEmpty(t, keywords)
	assert.Equal(t, "database", keywords[0])
	assert.Contains(t, keywords, "timeout")
}

func TestExtractKeywordsFiltersStopwords(t *testing.T) {
	keywords := ExtractKeywords("the crash is in the login and the session", DefaultMaxKeywords)

	assert.NotContains(t, keywords, "the")
	assert.NotContains(t, keywords, "and")
	assert.NotContains(t, keywords, "is")
	assert.Contains(t, keywords, "crash")
	assert.Contains(t, keywords, "login")
}

func TestExtractKeywordsDeterministic(t *testing.T) {
	text := "payment gateway rejects valid credit card numbers on checkout page"

	first := ExtractKeywords(text, DefaultMaxKeywords)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ExtractKeywords(text, DefaultMaxKeywords))
	}
}

func TestExtractKeywordsRespectsCap(t *testing.T) {
	text := "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima mike"

	keywords := ExtractKeywords(text, 5)
	assert.LessOrEqual(t, len(keywords), 5)
}

func TestExtractKeywordsTieBreakAlphabetical(t *testing.T) {
	// Every term appears exactly once so scores tie across the board.
	keywords := ExtractKeywords("zebra apple mango kiwi banana", DefaultMaxKeywords)

	for i := 1; i < len(keywords); i++ {
		assert.Less(t, keywords[i-1], keywords[i])
	}
}
