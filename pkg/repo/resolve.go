package repo

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/biogit/biogit/pkg/object"
)

var hexPrefixPattern = regexp.MustCompile(`^[0-9a-f]{6,40}$`)

// Resolve turns a commit-ish string into a 40-hex commit hash, trying in
// order: the literal "HEAD"; a full ref path beginning with "refs/"; a
// "<remote>/<branch>" pair (expands to refs/remotes/<remote>/<branch>); a
// bare branch name; a bare tag name; a 6-40 hex-digit object prefix that
// resolves to a unique commit object.
func (r *Repo) Resolve(ident string) (object.Hash, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return "", fmt.Errorf("resolve: empty identifier")
	}

	if ident == "HEAD" {
		return r.ResolveRef("HEAD")
	}

	if strings.HasPrefix(ident, "refs/") {
		return r.ResolveRef(ident)
	}

	if strings.Contains(ident, "/") {
		remote, branch, _ := strings.Cut(ident, "/")
		if hash, err := r.ResolveRef("refs/remotes/" + remote + "/" + branch); err == nil {
			return hash, nil
		}
	}

	if hash, err := r.ResolveRef("refs/heads/" + ident); err == nil {
		return hash, nil
	}
	if hash, err := r.ResolveRef("refs/tags/" + ident); err == nil {
		return hash, nil
	}

	if hexPrefixPattern.MatchString(ident) {
		hash, err := r.Store.ResolvePrefix(ident)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", ident, err)
		}
		if _, err := r.Store.ReadCommit(hash); err != nil {
			return "", fmt.Errorf("resolve %q: object %s is not a commit", ident, hash)
		}
		return hash, nil
	}

	return "", fmt.Errorf("resolve %q: not a valid HEAD, ref, branch, tag, or object prefix", ident)
}

// repoRelClean is a small helper shared by commands that accept filesystem
// paths to report them relative to the repository root in error messages.
func repoRelClean(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}
