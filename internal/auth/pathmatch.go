package auth

import (
	"fmt"
	"path"
	"strings"
)

// PathMatcher decides whether a request path is publicly reachable.
//
// Patterns are slash-separated. A "**" segment matches zero or more whole
// segments, so "/css/**" matches "/css", "/css/a" and "/css/a/b". Any
// other segment is matched with path.Match, so "*" stands for exactly one
// segment. Request paths are cleaned before matching, which folds "." and
// ".." segments and trailing slashes.
type PathMatcher struct {
	patterns [][]string
	raw      []string
}

// NewPathMatcher compiles patterns. Every pattern must be absolute and
// syntactically valid.
func NewPathMatcher(patterns []string) (*PathMatcher, error) {
	m := &PathMatcher{}
	for _, p := range patterns {
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("%w: public path %q must start with /", ErrInvalidInput, p)
		}
		segs := splitPath(p)
		for _, s := range segs {
			if s == "**" {
				continue
			}
			if _, err := path.Match(s, ""); err != nil {
				return nil, fmt.Errorf("%w: public path %q: %w", ErrInvalidInput, p, err)
			}
		}
		m.patterns = append(m.patterns, segs)
		m.raw = append(m.raw, p)
	}
	return m, nil
}

// Patterns returns the source patterns in configuration order.
func (m *PathMatcher) Patterns() []string {
	return append([]string(nil), m.raw...)
}

// Match reports whether p is covered by any pattern.
func (m *PathMatcher) Match(p string) bool {
	if m == nil {
		return false
	}
	if p == "" {
		p = "/"
	}
	segs := splitPath(path.Clean("/" + strings.TrimPrefix(p, "/")))
	for _, pat := range m.patterns {
		if matchSegments(pat, segs) {
			return true
		}
	}
	return false
}

func splitPath(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}

		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok { //nolint:errcheck // patterns validated in NewPathMatcher
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
