package safety

import (
	"regexp"
	"strings"
)

// DefaultBlockedTerms is the term list used when NewFilter gets no terms.
var DefaultBlockedTerms = []string{
	"bomb", "terrorist", "hack", "steal", "murder", "kill",
	"illegal", "fraud", "abuse", "harmful", "violent",
	"weapon", "explicit", "offensive", "gambling", "suicide",
}

// SafetyPrompt replaces the request contents of a blocked model call.
const SafetyPrompt = "The user's query contained potentially harmful content that I cannot respond to. " +
	"Please provide a polite response explaining that you cannot assist with " +
	"harmful, illegal, unethical, or dangerous requests. Offer to help with " +
	"weather and time-related queries instead."

// Filter detects blocked terms as whole words.
type Filter struct {
	terms    []string
	patterns []*regexp.Regexp
}

// NewFilter compiles a filter for terms. Terms are matched case
// insensitively; an empty list selects DefaultBlockedTerms.
func NewFilter(terms ...string) *Filter {
	if len(terms) == 0 {
		terms = DefaultBlockedTerms
	}

	f := &Filter{
		terms:    make([]string, 0, len(terms)),
		patterns: make([]*regexp.Regexp, 0, len(terms)),
	}

	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}

		f.terms = append(f.terms, term)
		f.patterns = append(f.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(term)+`\b`))
	}

	return f
}

// Terms returns the configured terms.
func (f *Filter) Terms() []string {
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

// Detect returns the blocked terms found in text, in list order.
func (f *Filter) Detect(text string) []string {
	lower := strings.ToLower(text)

	var detected []string
	for i, re := range f.patterns {
		if re.MatchString(lower) {
			detected = append(detected, f.terms[i])
		}
	}

	return detected
}

// Blocked reports whether text contains any blocked term.
func (f *Filter) Blocked(text string) bool { return len(f.Detect(text)) > 0 }
