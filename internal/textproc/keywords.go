package textproc

import (
	"math"
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/pkg/logger"
)

const (
	// Terms scoring at or below this floor carry no signal worth surfacing.
	keywordNoiseFloor = 0.1
	// Normalized input shorter than this has too little signal to extract from.
	minExtractableLength = 10

	DefaultMaxKeywords = 10
)

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {},
	"and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {},
	"her": {}, "here": {}, "his": {}, "how": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "just": {}, "more": {},
	"most": {}, "no": {}, "not": {}, "of": {}, "on": {}, "only": {},
	"or": {}, "other": {}, "our": {}, "out": {}, "over": {}, "she": {},
	"should": {}, "so": {}, "some": {}, "such": {}, "than": {}, "that": {},
	"the": {}, "their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "under": {}, "up": {}, "very": {},
	"was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "who": {}, "why": {}, "will": {}, "with": {},
	"would": {}, "you": {}, "your": {},
}

// ExtractKeywords surfaces the most salient terms from a single document
// using term-frequency weighting over the normalized text. Results are
// sorted by descending score with alphabetical order breaking ties, filtered
// to scores above the noise floor, and capped at maxKeywords. Deterministic
// for identical input.
func ExtractKeywords(text string, maxKeywords int) []string {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}

	cleaned := Normalize(text)
	if len(cleaned) < minExtractableLength {
		return nil
	}

	freqs := termFrequencies(cleaned)
	if len(freqs) == 0 {
		return nil
	}

	// L2-normalize so scores are comparable across documents of any length.
	var sumSquares float64
	for _, count := range freqs {
		sumSquares += float64(count * count)
	}
	norm := math.Sqrt(sumSquares)

	type scored struct {
		term  string
		score float64
	}

	terms := make([]scored, 0, len(freqs))
	for term, count := range freqs {
		terms = append(terms, scored{term: term, score: float64(count) / norm})
	}

	sort.Slice(terms, func(i, j int) bool {
		if terms[i].score != terms[j].score {
			return terms[i].score > terms[j].score
		}
		return terms[i].term < terms[j].term
	})

	keywords := make([]string, 0, maxKeywords)
	for _, t := range terms {
		if len(keywords) >= maxKeywords {
			break
		}
		if t.score > keywordNoiseFloor {
			keywords = append(keywords, t.term)
		}
	}

	return keywords
}

func termFrequencies(text string) map[string]int {
	freqs := make(map[string]int)

	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithTagging(false))
	if err != nil {
		// Tokenizer failure degrades to whitespace splitting rather than
		// dropping the document.
		logger.Debug("Tokenizer failed, falling back to field split", zap.Error(err))
		for _, field := range strings.Fields(strings.ToLower(text)) {
			if isCandidateTerm(field) {
				freqs[field]++
			}
		}
		return freqs
	}

	for _, tok := range doc.Tokens() {
		term := strings.ToLower(tok.Text)
		if isCandidateTerm(term) {
			freqs[term]++
		}
	}

	return freqs
}

func isCandidateTerm(term string) bool {
	if len(term) < 2 {
		return false
	}
	if _, stop := stopWords[term]; stop {
		return false
	}
	for _, r := range term {
		if !isWordChar(r) {
			return false
		}
	}
	return true
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
