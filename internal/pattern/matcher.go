// Package pattern matches identifier names against user-configured
// patterns. One Matcher is compiled per context list (variables, functions,
// classes) and shared read-only across workers.
package pattern

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
)

// Mode selects how the configured patterns are interpreted.
type Mode string

const (
	ModeExact    Mode = "exact"
	ModeContains Mode = "contains"
	ModeGlob     Mode = "glob"
	ModeRegex    Mode = "regex"
)

// ParseMode maps a config string to a Mode, defaulting to glob for
// anything unrecognized.
func ParseMode(s string, log *zap.Logger) Mode {
	switch Mode(strings.ToLower(s)) {
	case ModeExact, ModeContains, ModeGlob, ModeRegex:
		return Mode(strings.ToLower(s))
	}
	log.Warn("unknown match mode, falling back to glob", zap.String("mode", s))
	return ModeGlob
}

// Matcher answers whether a name matches any of its patterns. Matching is
// case-insensitive in every mode. The zero number of patterns matches
// nothing.
type Matcher struct {
	mode     Mode
	exact    map[string]bool
	contains []string
	globs    []glob.Glob
	regexes  []*regexp.Regexp
}

// Compile builds a Matcher. Patterns that fail to compile degrade to exact
// matching for that pattern rather than dropping it silently.
func Compile(patterns []string, mode Mode, log *zap.Logger) *Matcher {
	m := &Matcher{mode: mode}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		lowered = append(lowered, strings.ToLower(p))
	}

	switch mode {
	case ModeExact:
		m.exact = make(map[string]bool, len(lowered))
		for _, p := range lowered {
			m.exact[p] = true
		}
	case ModeContains:
		m.contains = lowered
	case ModeGlob:
		// Compiled one pattern at a time so a bad pattern degrades alone
		// and `,`/`{` in a pattern keep their literal meaning.
		m.exact = make(map[string]bool)
		for _, p := range lowered {
			g, err := glob.Compile(p)
			if err != nil {
				log.Warn("invalid glob pattern, matching it literally",
					zap.String("pattern", p), zap.Error(err))
				m.exact[p] = true
				continue
			}
			m.globs = append(m.globs, g)
		}
	case ModeRegex:
		m.exact = make(map[string]bool)
		for _, p := range lowered {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				log.Warn("invalid regex pattern, matching it literally",
					zap.String("pattern", p), zap.Error(err))
				m.exact[p] = true
				continue
			}
			m.regexes = append(m.regexes, re)
		}
	}
	return m
}

// Match reports whether name matches any configured pattern.
func (m *Matcher) Match(name string) bool {
	if m == nil {
		return false
	}
	name = strings.ToLower(name)
	switch m.mode {
	case ModeExact:
		return m.exact[name]
	case ModeContains:
		for _, p := range m.contains {
			if strings.Contains(name, p) {
				return true
			}
		}
		return false
	case ModeGlob:
		if m.exact[name] {
			return true
		}
		for _, g := range m.globs {
			if g.Match(name) {
				return true
			}
		}
		return false
	case ModeRegex:
		if m.exact[name] {
			return true
		}
		for _, re := range m.regexes {
			if re.MatchString(name) {
				return true
			}
		}
		return false
	}
	return false
}
