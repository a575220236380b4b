package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/biogit/biogit/pkg/object"
)

// UpdateRefResult classifies the outcome of an UpdateRef call so that both
// the CLI and the server's wire handler can report a precise result without
// parsing an error string.
type UpdateRefResult int

const (
	RefUpdateSuccess UpdateRefResult = iota
	RefUpdateNotFoundForUpdate
	RefUpdateOldHashMismatch
	RefUpdateNewCommitNotFound
	RefUpdateNotFastForward
	RefUpdateIOError
	RefUpdateInvalidRefName
	RefUpdateUnknownError
)

func (r UpdateRefResult) String() string {
	switch r {
	case RefUpdateSuccess:
		return "SUCCESS"
	case RefUpdateNotFoundForUpdate:
		return "REF_NOT_FOUND_FOR_UPDATE"
	case RefUpdateOldHashMismatch:
		return "OLD_HASH_MISMATCH"
	case RefUpdateNewCommitNotFound:
		return "NEW_COMMIT_NOT_FOUND"
	case RefUpdateNotFastForward:
		return "NOT_FAST_FORWARD"
	case RefUpdateIOError:
		return "IO_ERROR"
	case RefUpdateInvalidRefName:
		return "INVALID_REF_NAME"
	default:
		return "UNKNOWN_ERROR"
	}
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	maxFastForwardWalk = 1000
)

// isValidRefName rejects anything that is not a well-formed refs/heads/* or
// refs/tags/* name: no "..", no "//", no leading/trailing slash.
func isValidRefName(name string) bool {
	if !strings.HasPrefix(name, "refs/heads/") && !strings.HasPrefix(name, "refs/tags/") {
		return false
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") {
		return false
	}
	if strings.HasSuffix(name, "/") {
		return false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(name, "refs/heads/"), "refs/tags/")
	return rest != ""
}

// UpdateRef performs a compare-and-swap update of a ref file: newHash must
// name an existing commit object, and when expectedOld is non-empty the
// current value of the ref must match it exactly. When the ref lives under
// refs/heads/ and already has a value, the update is additionally required
// to be a fast-forward (first-parent reachability from newHash back to the
// existing value, within maxFastForwardWalk steps) unless force is true.
func (r *Repo) UpdateRef(name string, newHash object.Hash, expectedOld object.Hash, force bool) (UpdateRefResult, error) {
	if !isValidRefName(name) {
		return RefUpdateInvalidRefName, fmt.Errorf("update ref: invalid ref name %q", name)
	}
	if _, err := r.Store.ReadCommit(newHash); err != nil {
		return RefUpdateNewCommitNotFound, fmt.Errorf("update ref %q: new commit %s not found: %w", name, newHash, err)
	}

	refPath := filepath.Join(r.GotDir, name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return RefUpdateIOError, fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return RefUpdateIOError, fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return RefUpdateIOError, fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}

	if expectedOld != "" {
		if oldHash == "" {
			return RefUpdateNotFoundForUpdate, fmt.Errorf("update ref %q: ref does not exist", name)
		}
		if oldHash != expectedOld {
			return RefUpdateOldHashMismatch, fmt.Errorf("update ref %q: expected %s, found %s", name, expectedOld, oldHash)
		}
	}

	if !force && oldHash != "" && strings.HasPrefix(name, "refs/heads/") {
		ff, err := r.isFastForward(oldHash, newHash)
		if err != nil {
			return RefUpdateIOError, fmt.Errorf("update ref %q: fast-forward check: %w", name, err)
		}
		if !ff {
			return RefUpdateNotFastForward, fmt.Errorf("update ref %q: %s is not a fast-forward of %s", name, newHash, oldHash)
		}
	}

	if _, err := lockFile.WriteString(string(newHash) + "\n"); err != nil {
		return RefUpdateIOError, fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return RefUpdateIOError, fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return RefUpdateIOError, fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return RefUpdateIOError, fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	return RefUpdateSuccess, nil
}

// isFastForward reports whether newHash's first-parent chain passes through
// oldHash within maxFastForwardWalk steps. An empty oldHash is always a
// fast-forward (creating a ref for the first time).
func (r *Repo) isFastForward(oldHash, newHash object.Hash) (bool, error) {
	if oldHash == "" {
		return true, nil
	}
	if oldHash == newHash {
		return true, nil
	}

	visited := make(map[object.Hash]struct{})
	cur := newHash
	for steps := 0; steps < maxFastForwardWalk; steps++ {
		if cur == "" {
			return false, nil
		}
		if cur == oldHash {
			return true, nil
		}
		if _, seen := visited[cur]; seen {
			return false, nil
		}
		visited[cur] = struct{}{}

		commit, err := r.Store.ReadCommit(cur)
		if err != nil {
			return false, nil
		}
		if len(commit.Parents) == 0 {
			return false, nil
		}
		cur = commit.Parents[0]
	}
	return false, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// ListRefs walks .biogit/refs and returns every ref name (relative to
// .biogit/, e.g. "refs/heads/main") mapped to its resolved hash.
func (r *Repo) ListRefs() (map[string]object.Hash, error) {
	refsRoot := filepath.Join(r.GotDir, "refs")
	result := make(map[string]object.Hash)

	err := filepath.WalkDir(refsRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.GotDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		hash, err := readRefHash(path)
		if err != nil {
			return err
		}
		if hash != "" {
			result[rel] = hash
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return result, nil
}

// RefEntry is a single (name, hash) ref pair as advertised to clients.
type RefEntry struct {
	Name string
	Hash object.Hash
}

// GetAllLocalRefs returns every local ref (HEAD, then every ref file under
// refs/, including refs/remotes/*) as an ordered slice of (name, value)
// pairs, HEAD first. HEAD's value is
// "ref: refs/heads/<name>" when HEAD is symbolic, or a bare commit hash
// when detached, matching how a client must tell a branch-pointing HEAD
// from a detached one when advertised over LIST_REFS.
func (r *Repo) GetAllLocalRefs() ([]RefEntry, error) {
	var out []RefEntry

	if head, err := r.Head(); err == nil {
		if strings.HasPrefix(head, "refs/") {
			out = append(out, RefEntry{Name: "HEAD", Hash: object.Hash("ref: " + head)})
		} else if head != "" {
			out = append(out, RefEntry{Name: "HEAD", Hash: object.Hash(head)})
		}
	}

	refs, err := r.ListRefs()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, RefEntry{Name: name, Hash: refs[name]})
	}
	return out, nil
}

// CreateBranch creates a new branch ref pointing at target. Fails if the
// branch already exists or the name is invalid (empty, contains "/", or is
// "HEAD").
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := validateShortRefName(name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	refName := "refs/heads/" + name
	if existing, err := readRefHash(filepath.Join(r.GotDir, refName)); err == nil && existing != "" {
		return fmt.Errorf("create branch: branch %q already exists", name)
	}
	if _, err := r.UpdateRef(refName, target, "", true); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// validateShortRefName rejects branch/tag names that are empty, equal to
// "HEAD", or contain a "/" (full ref paths like "refs/heads/x" go through a
// different validator, isValidRefName).
func validateShortRefName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if name == "HEAD" {
		return fmt.Errorf("name must not be %q", "HEAD")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("name %q must not contain '/'", name)
	}
	return nil
}

// DeleteBranch removes a branch ref file. Fails if it is the current branch
// or does not exist.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}

	refPath := filepath.Join(r.GotDir, "refs", "heads", name)
	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete branch: branch %q does not exist", name)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns branch names sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	return listRefNames(filepath.Join(r.GotDir, "refs", "heads"))
}

// ListTags returns tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	return listRefNames(filepath.Join(r.GotDir, "refs", "tags"))
}

func listRefNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list refs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// CreateTag creates a new tag ref pointing at target. Fails if it exists or
// the name is invalid.
func (r *Repo) CreateTag(name string, target object.Hash) error {
	if err := validateShortRefName(name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	refName := "refs/tags/" + name
	if existing, err := readRefHash(filepath.Join(r.GotDir, refName)); err == nil && existing != "" {
		return fmt.Errorf("create tag: tag %q already exists", name)
	}
	if _, err := r.UpdateRef(refName, target, "", true); err != nil {
		return fmt.Errorf("create tag %q: %w", name, err)
	}
	return nil
}

// DeleteTag removes a tag ref file.
func (r *Repo) DeleteTag(name string) error {
	refPath := filepath.Join(r.GotDir, "refs", "tags", name)
	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete tag: tag %q does not exist", name)
		}
		return fmt.Errorf("delete tag %q: %w", name, err)
	}
	return nil
}

// CurrentBranch reads HEAD and returns the branch name if HEAD is symbolic
// ("ref: refs/heads/main" -> "main"). Detached HEAD returns "".
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	const prefix = "refs/heads/"
	if strings.HasPrefix(head, prefix) {
		return strings.TrimPrefix(head, prefix), nil
	}
	return "", nil
}

// WriteRemoteHead persists a fetched remote's advertised HEAD value (either
// "ref: refs/heads/<name>" or a bare detached hash) to
// refs/remotes/<remote>/HEAD, the remote HEAD cache described by the
// repository layout.
func (r *Repo) WriteRemoteHead(remote, value string) error {
	path := filepath.Join(r.GotDir, "refs", "remotes", remote, "HEAD")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write remote head: %w", err)
	}
	return os.WriteFile(path, []byte(value+"\n"), 0o644)
}

// ReadRemoteHead reads back the value WriteRemoteHead persisted for remote.
func (r *Repo) ReadRemoteHead(remote string) (string, error) {
	path := filepath.Join(r.GotDir, "refs", "remotes", remote, "HEAD")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
