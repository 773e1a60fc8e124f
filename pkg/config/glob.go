package config

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// RegexPrefix marks an exclude pattern as a regular expression.
const RegexPrefix = "re:"

// MatchGlob matches doublestar patterns, where '**' also crosses '/'.
// A pattern without a slash is matched against the base name as well, so
// "*.css" excludes "static/app.css". Invalid patterns never match.
func MatchGlob(pattern, value string) bool {
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") {
		if ok, _ := doublestar.Match(pattern, path.Base(value)); ok {
			return true
		}
	}
	ok, _ := doublestar.Match(pattern, value)
	return ok
}

// NewMatcher compiles exclude patterns into a single predicate. Patterns
// prefixed with "re:" are regular expressions; everything else is a glob.
// It returns nil when there are no patterns.
func NewMatcher(patterns []string) (func(string) bool, error) {
	var globs []string
	var regexes []*regexp.Regexp
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if expr, ok := strings.CutPrefix(p, RegexPrefix); ok {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
			}
			regexes = append(regexes, re)
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, doublestar.ErrBadPattern)
		}
		globs = append(globs, p)
	}
	if len(globs) == 0 && len(regexes) == 0 {
		return nil, nil
	}
	return func(name string) bool {
		for _, g := range globs {
			if MatchGlob(g, name) {
				return true
			}
		}
		for _, re := range regexes {
			if re.MatchString(name) {
				return true
			}
		}
		return false
	}, nil
}
