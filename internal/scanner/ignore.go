package scanner

import (
	pathpkg "path"
	"strings"
)

// IgnorePattern is one parsed, non-comment line of a .craceignore file. The
// supported syntax is the common gitignore subset: `*` and `?` globs within
// a path segment, `**` spanning segments, a trailing `/` restricting the
// pattern to directories, a leading `/` anchoring it to the ignore file's
// own directory, and a leading `!` negating an earlier match.
type IgnorePattern struct {
	raw      string
	segments []string
	negate   bool
	dirOnly  bool
	anchored bool
}

// ParseIgnorePattern parses one line. ok is false for blank lines and
// comments, which carry no pattern.
func ParseIgnorePattern(line string) (p IgnorePattern, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return IgnorePattern{}, false
	}

	p.raw = line
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return IgnorePattern{}, false
	}

	p.segments = strings.Split(line, "/")
	// A pattern with an interior slash is anchored per gitignore semantics.
	if len(p.segments) > 1 {
		p.anchored = true
	}
	return p, true
}

// IsNegation reports whether a match on this pattern re-includes the path.
func (p IgnorePattern) IsNegation() bool { return p.negate }

// Match reports whether the slash-separated path (relative to the ignore
// file's directory) falls under this pattern. Directory-only patterns match
// a file path when any of its parent segments matches.
func (p IgnorePattern) Match(relPath string) bool {
	segs := strings.Split(relPath, "/")

	if !p.anchored {
		// A bare name pattern matches the basename or, as a directory,
		// any ancestor segment.
		last := len(segs) - 1
		for i, seg := range segs {
			if i == last && p.dirOnly {
				continue
			}
			if globMatch(p.segments[0], seg) {
				return true
			}
		}
		return false
	}

	if p.dirOnly {
		// Anchored directory pattern: some proper prefix of the path must
		// match it.
		for end := 1; end < len(segs); end++ {
			if matchSegments(p.segments, segs[:end]) {
				return true
			}
		}
		return false
	}

	// Anchored file pattern: the whole path matches, or the pattern names
	// a directory the path sits under.
	if matchSegments(p.segments, segs) {
		return true
	}
	for end := 1; end < len(segs); end++ {
		if matchSegments(p.segments, segs[:end]) {
			return true
		}
	}
	return false
}

// matchSegments matches a pattern segment list against a path segment list,
// expanding `**` across zero or more path segments.
func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		if matchSegments(pattern[1:], path) {
			return true
		}
		if len(path) > 0 {
			return matchSegments(pattern, path[1:])
		}
		return false
	}
	if len(path) == 0 {
		return false
	}
	if !globMatch(pattern[0], path[0]) {
		return false
	}
	return matchSegments(pattern[1:], path[1:])
}

func globMatch(pattern, segment string) bool {
	ok, err := pathpkg.Match(pattern, segment)
	return err == nil && ok
}

// ignoreSet accumulates the parsed ignore files discovered during one walk,
// keyed by the slash-relative directory that owns them, and answers whether
// a path is ignored with gitignore's last-match-wins rule.
type ignoreSet struct {
	fileName string
	perDir   map[string][]IgnorePattern
}

func newIgnoreSet(fileName string) *ignoreSet {
	return &ignoreSet{fileName: fileName, perDir: make(map[string][]IgnorePattern)}
}

func (is *ignoreSet) add(relDir string, lines []string) {
	var patterns []IgnorePattern
	for _, line := range lines {
		if p, ok := ParseIgnorePattern(line); ok {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) > 0 {
		is.perDir[relDir] = patterns
	}
}

// Ignored reports whether the slash-relative file path is excluded by any
// ignore file on its directory chain. Deeper files' verdicts override
// shallower ones, and within one file the last matching pattern wins.
func (is *ignoreSet) Ignored(relPath string) bool {
	if len(is.perDir) == 0 {
		return false
	}

	ignored := false
	check := func(relDir string) {
		patterns, ok := is.perDir[relDir]
		if !ok {
			return
		}
		local := relPath
		if relDir != "." {
			local = strings.TrimPrefix(relPath, relDir+"/")
		}
		for _, p := range patterns {
			if p.Match(local) {
				ignored = !p.negate
			}
		}
	}

	check(".")
	segs := strings.Split(relPath, "/")
	for end := 1; end < len(segs); end++ {
		check(strings.Join(segs[:end], "/"))
	}
	return ignored
}
