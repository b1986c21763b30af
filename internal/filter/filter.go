package filter

import (
	"fmt"
	"regexp"
)

// Verdict is the outcome of classifying a clipboard entry against the
// configured pattern sets.
type Verdict int

const (
	// Neutral entries are subject to normal age-based expiry.
	Neutral Verdict = iota
	// Keep entries are exempt from age-based expiry.
	Keep
	// Deny entries are removed immediately, regardless of age.
	Deny
)

func (v Verdict) String() string {
	switch v {
	case Keep:
		return "keep"
	case Deny:
		return "deny"
	default:
		return "neutral"
	}
}

// Set holds the compiled deny/keep pattern lists. Immutable after Compile;
// a config reload would build a new Set and swap it.
type Set struct {
	deny []*regexp.Regexp
	keep []*regexp.Regexp
}

// Compile builds a Set from the raw pattern lists. Any unparsable pattern is
// an error naming the offending pattern text.
func Compile(deny, keep []string) (*Set, error) {
	d, err := compile(deny)
	if err != nil {
		return nil, fmt.Errorf("always_remove_patterns: %w", err)
	}

	k, err := compile(keep)
	if err != nil {
		return nil, fmt.Errorf("never_remove_patterns: %w", err)
	}

	return &Set{deny: d, keep: k}, nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return compiled, nil
}

// Classify matches text against the deny list first: an always-remove match
// wins even when a never-remove pattern also matches. Matching is an
// unanchored search on the raw text, no normalization.
func (s *Set) Classify(text string) Verdict {
	for _, re := range s.deny {
		if re.MatchString(text) {
			return Deny
		}
	}

	for _, re := range s.keep {
		if re.MatchString(text) {
			return Keep
		}
	}

	return Neutral
}
