package repo

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ignorePattern is one parsed line of .biogitignore, or one of the two
// hardcoded dot-directory rules every repository carries.
type ignorePattern struct {
	raw      string
	negated  bool
	dirOnly  bool
	hasSlash bool // pattern contains a slash, so match against the full path
	regex    *regexp.Regexp
}

func (p ignorePattern) isLiteral() bool {
	return p.regex == nil && !strings.ContainsAny(p.raw, "*?[")
}

func (p ignorePattern) matchesTarget(target string) bool {
	if p.regex != nil {
		return p.regex.MatchString(target)
	}
	matched, _ := filepath.Match(p.raw, target)
	return matched
}

// IgnoreChecker decides whether a repository-relative path is excluded
// from status, add, and diff. It implements a reduced .gitignore rule
// set: literal names, glob wildcards, "**" globstars, directory-only
// patterns, and negation, where the last matching rule wins.
//
// Every pattern is filed into the lookup it can be resolved through
// directly (an exact directory name, an exact basename, an exact full
// path, or a wildcard bucket needing a real match call) when it's first
// parsed, so IsIgnored never rescans the whole pattern list per call.
type IgnoreChecker struct {
	patterns []ignorePattern

	dirNames   map[string][]int
	exactBases map[string][]int
	exactPaths map[string][]int
	globBases  []int
	globPaths  []int
}

// NewIgnoreChecker builds a checker for repoRoot: .biogit/ and .git/ are
// always excluded, and .biogitignore (if present) layers on top.
func NewIgnoreChecker(repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{
		dirNames:   make(map[string][]int),
		exactBases: make(map[string][]int),
		exactPaths: make(map[string][]int),
	}

	ic.index(ignorePattern{raw: ".biogit"})
	ic.index(ignorePattern{raw: ".git"})

	if f, err := os.Open(filepath.Join(repoRoot, ".biogitignore")); err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if p, ok := parseLine(scanner.Text()); ok {
				ic.index(p)
			}
		}
	}

	return ic
}

// parseLine parses one line of a .biogitignore file. ok is false for a
// blank line or a comment.
func parseLine(line string) (ignorePattern, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignorePattern{}, false
	}

	var p ignorePattern
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	p.hasSlash = strings.Contains(line, "/")
	p.raw = line

	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			p.regex = re
		}
	}
	return p, true
}

// index files a newly parsed pattern into every lookup it can be found
// through. A directory-only pattern, or either hardcoded dot-directory,
// is reachable by its directory name; a hardcoded dot-directory also
// resolves as a literal basename, matching a nested .biogit/.git as well
// as a top-level one. Everything else resolves as a literal or a
// wildcard depending on whether it carries glob metacharacters and
// whether it names a full path or a bare basename.
func (ic *IgnoreChecker) index(p ignorePattern) {
	idx := len(ic.patterns)
	ic.patterns = append(ic.patterns, p)

	hardcodedDotDir := p.raw == ".biogit" || p.raw == ".git"
	if p.dirOnly || hardcodedDotDir {
		ic.dirNames[p.raw] = append(ic.dirNames[p.raw], idx)
		if p.dirOnly {
			return
		}
	}

	switch {
	case p.regex != nil, !p.isLiteral():
		if p.hasSlash {
			ic.globPaths = append(ic.globPaths, idx)
		} else {
			ic.globBases = append(ic.globBases, idx)
		}
	default:
		if p.hasSlash {
			ic.exactPaths[p.raw] = append(ic.exactPaths[p.raw], idx)
		} else {
			ic.exactBases[p.raw] = append(ic.exactBases[p.raw], idx)
		}
	}
}

// IsIgnored reports whether path (repository-relative, forward-slashed)
// should be excluded. The highest-indexed matching pattern wins, so a
// later negation rule overrides an earlier broad exclusion.
func (ic *IgnoreChecker) IsIgnored(path string) bool {
	path = filepath.ToSlash(path)
	base := filepath.Base(path)

	winner := -1
	ignored := false
	consider := func(idx int) {
		if idx > winner {
			winner = idx
			ignored = !ic.patterns[idx].negated
		}
	}
	considerAll := func(idxs []int) {
		for _, idx := range idxs {
			consider(idx)
		}
	}

	considerAll(ic.dirNames[path])
	for _, dir := range ancestorDirs(path) {
		considerAll(ic.dirNames[dir])
	}

	considerAll(ic.exactPaths[path])
	considerAll(ic.exactBases[base])

	for _, idx := range ic.globPaths {
		if ic.patterns[idx].matchesTarget(path) {
			consider(idx)
		}
	}
	for _, idx := range ic.globBases {
		if ic.patterns[idx].matchesTarget(base) {
			consider(idx)
		}
	}

	return ignored
}

// ancestorDirs returns every proper directory prefix of path, e.g.
// "a/b/c.txt" -> ["a", "a/b"].
func ancestorDirs(path string) []string {
	var dirs []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			dirs = append(dirs, path[:i])
		}
	}
	return dirs
}

// globToRegex translates a .biogitignore pattern containing "**" into an
// anchored regular expression: "**/" consumes zero or more whole path
// segments, a bare "**" consumes anything, "*" stops at a slash, "?"
// matches one non-slash character, and everything else is escaped.
func globToRegex(pattern string) string {
	const regexMeta = `.+()|[]{}^$\`

	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; {
		case ch == '*' && i+2 < len(pattern) && pattern[i+1] == '*' && pattern[i+2] == '/':
			b.WriteString("(?:.*/)?")
			i += 2
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		case strings.IndexByte(regexMeta, ch) >= 0:
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte('$')
	return b.String()
}
