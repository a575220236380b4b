package remote

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogit/biogit/pkg/object"
	"github.com/biogit/biogit/pkg/repo"
)

// PushResult summarizes the outcome of Push.
type PushResult struct {
	UpToDate bool
	Uploaded int
	OldHash  object.Hash
	NewHash  object.Hash
}

// Push uploads localRef's history to remoteRef on ep, creating or
// fast-forwarding it (or overwriting it if force is set), following
// RemoteClient::push's algorithm: resolve local tip, list remote refs,
// compute the object closure missing on the server, upload it, then
// compare-and-swap the ref.
func Push(r *repo.Repo, ep Endpoint, token, localRef, remoteRef string, force bool) (*PushResult, error) {
	localHash, err := r.ResolveRef(localRef)
	if err != nil {
		return nil, fmt.Errorf("push: resolve %s: %w", localRef, err)
	}

	client, err := Dial(ep, token)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	remoteRefs, err := client.ListRefs()
	if err != nil {
		return nil, err
	}
	remoteHash, hasRemote := remoteRefs["refs/"+remoteRef]

	if hasRemote && remoteHash == localHash {
		return &PushResult{UpToDate: true, OldHash: remoteHash, NewHash: localHash}, nil
	}

	if hasRemote && !force {
		base, err := r.FindMergeBase(localHash, remoteHash)
		if err != nil || base != remoteHash {
			return nil, fmt.Errorf("push: rejected: non-fast-forward update to refs/%s (use force)", remoteRef)
		}
	}

	localClosure, err := r.Store.ReachableSet([]object.Hash{localHash})
	if err != nil {
		return nil, fmt.Errorf("push: compute object closure: %w", err)
	}
	candidates := make([]object.Hash, 0, len(localClosure))
	for h := range localClosure {
		candidates = append(candidates, h)
	}

	present, err := client.CheckObjects(candidates)
	if err != nil {
		return nil, fmt.Errorf("push: check objects: %w", err)
	}

	uploaded := 0
	for _, h := range candidates {
		if present[h] {
			continue
		}
		raw, err := r.Store.ReadRaw(h)
		if err != nil {
			return nil, fmt.Errorf("push: read object %s: %w", h, err)
		}
		if err := client.PutObject(h, raw); err != nil {
			return nil, fmt.Errorf("push: upload object %s: %w", h, err)
		}
		uploaded++
	}

	if err := client.UpdateRef("refs/"+remoteRef, localHash, remoteHash, force); err != nil {
		return nil, err
	}

	return &PushResult{Uploaded: uploaded, OldHash: remoteHash, NewHash: localHash}, nil
}

// FetchResult summarizes the outcome of Fetch.
type FetchResult struct {
	Downloaded  int
	UpdatedRefs map[string]object.Hash
}

// Fetch downloads every object reachable from the remote's refs that the
// local store lacks, using a BFS over object references: parse each
// downloaded (or already-present) object to learn further hashes to visit,
// exactly as RemoteClient::fetch describes. remoteRef, if non-empty,
// restricts fetching to that single ref (short name, e.g. "main"); an
// empty remoteRef fetches every refs/heads/* and refs/tags/* ref. On
// success it rewrites refs/remotes/<remoteName>/* tracking refs.
func Fetch(r *repo.Repo, ep Endpoint, token, remoteName, remoteRef string) (*FetchResult, error) {
	client, err := Dial(ep, token)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	remoteRefs, err := client.ListRefs()
	if err != nil {
		return nil, err
	}

	if head, ok := remoteRefs["HEAD"]; ok {
		if err := r.WriteRemoteHead(remoteName, string(head)); err != nil {
			return nil, fmt.Errorf("fetch: persist remote HEAD: %w", err)
		}
	}

	selected := make(map[string]object.Hash)
	for name, h := range remoteRefs {
		if name == "HEAD" {
			continue
		}
		if !strings.HasPrefix(name, "refs/heads/") && !strings.HasPrefix(name, "refs/tags/") {
			continue
		}
		if remoteRef != "" {
			if name != "refs/heads/"+remoteRef && name != "refs/tags/"+remoteRef {
				continue
			}
		}
		selected[name] = h
	}

	wants := make([]object.Hash, 0, len(selected))
	for _, h := range selected {
		wants = append(wants, h)
	}

	downloaded, err := fetchObjectClosure(r, client, wants)
	if err != nil {
		return nil, err
	}

	result := &FetchResult{Downloaded: downloaded, UpdatedRefs: make(map[string]object.Hash)}
	for name, h := range selected {
		trackingName := trackingRefName(remoteName, name)
		trackingPath := filepath.Join(r.GotDir, filepath.FromSlash(trackingName))
		if err := os.MkdirAll(filepath.Dir(trackingPath), 0o755); err != nil {
			return nil, fmt.Errorf("fetch: update tracking ref %s: %w", trackingName, err)
		}
		if err := os.WriteFile(trackingPath, []byte(string(h)+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("fetch: update tracking ref %s: %w", trackingName, err)
		}
		result.UpdatedRefs[name] = h
	}
	return result, nil
}

// fetchObjectClosure runs the BFS object download: skip hashes already
// local, download and verify the rest, and enqueue every hash an object
// (downloaded or preexisting) references.
func fetchObjectClosure(r *repo.Repo, client *Client, roots []object.Hash) (int, error) {
	visited := make(map[object.Hash]struct{})
	queue := append([]object.Hash{}, roots...)
	downloaded := 0

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == "" {
			continue
		}
		if _, ok := visited[h]; ok {
			continue
		}
		visited[h] = struct{}{}

		if !r.Store.Has(h) {
			data, found, err := client.GetObject(h)
			if err != nil {
				return downloaded, fmt.Errorf("fetch: get object %s: %w", h, err)
			}
			if !found {
				return downloaded, fmt.Errorf("fetch: remote reports object %s missing", h)
			}
			if err := r.Store.WriteRaw(h, data); err != nil {
				return downloaded, fmt.Errorf("fetch: write object %s: %w", h, err)
			}
			downloaded++
		}

		objType, data, err := r.Store.Read(h)
		if err != nil {
			return downloaded, fmt.Errorf("fetch: read object %s: %w", h, err)
		}
		refs, err := referencedHashes(h, objType, data)
		if err != nil {
			return downloaded, err
		}
		queue = append(queue, refs...)
	}
	return downloaded, nil
}

func referencedHashes(h object.Hash, objType object.ObjectType, data []byte) ([]object.Hash, error) {
	switch objType {
	case object.TypeBlob:
		return nil, nil
	case object.TypeCommit:
		commit, err := object.UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		out := make([]object.Hash, 0, 1+len(commit.Parents))
		out = append(out, commit.TreeHash)
		out = append(out, commit.Parents...)
		return out, nil
	case object.TypeTree:
		tree, err := object.UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		out := make([]object.Hash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			out = append(out, e.Hash)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("fetch: unsupported object type %q", objType)
	}
}

func trackingRefName(remoteName, refName string) string {
	short := strings.TrimPrefix(strings.TrimPrefix(refName, "refs/heads/"), "refs/tags/")
	return "refs/remotes/" + remoteName + "/" + short
}

// Pull fetches remoteName/branch and merges it into the current branch,
// requiring a clean working tree and a non-detached HEAD, matching
// RemoteClient::pull's preconditions.
func Pull(r *repo.Repo, ep Endpoint, token, remoteName, branch string) (*repo.MergeReport, error) {
	current, err := r.CurrentBranch()
	if err != nil || current == "" {
		return nil, fmt.Errorf("pull: not on a branch")
	}
	entries, err := r.Status()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.WorkStatus == repo.StatusUntracked {
			continue
		}
		if e.IndexStatus != repo.StatusClean || e.WorkStatus != repo.StatusClean {
			return nil, fmt.Errorf("pull: working tree is not clean (%s)", e.Path)
		}
	}

	if _, err := Fetch(r, ep, token, remoteName, branch); err != nil {
		return nil, err
	}

	trackingRef := "refs/remotes/" + remoteName + "/" + branch
	if _, err := r.ResolveRef(trackingRef); err != nil {
		return nil, fmt.Errorf("pull: remote branch %q not found", branch)
	}
	return r.Merge(trackingRef)
}

// Clone creates a new repository at dir populated from ep: it initializes
// the repository, registers ep as "origin", fetches everything, and checks
// out the branch the remote's HEAD points to. Unlike the original reactor
// client's hard-coded "clone user" credential, the caller supplies the
// provisional username/password explicitly; neither is ever written to the
// new repository's configuration.
func Clone(dir string, ep Endpoint, provisionalUser, provisionalPassword string) (*repo.Repo, error) {
	r, err := repo.Init(dir)
	if err != nil {
		return nil, err
	}
	if err := r.SetRemote("origin", ep.Host+":"+ep.Port+"/"+ep.Repo); err != nil {
		return nil, err
	}

	token, err := Login(ep, provisionalUser, provisionalPassword)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}

	fetchResult, err := Fetch(r, ep, token, "origin", "")
	if err != nil {
		return nil, err
	}
	if len(fetchResult.UpdatedRefs) == 0 {
		return r, nil
	}

	branchName, branchHash, ok := defaultBranch(r, fetchResult.UpdatedRefs)
	if !ok {
		return r, nil
	}

	if err := r.Switch(string(branchHash)); err != nil {
		return nil, fmt.Errorf("clone: checkout: %w", err)
	}
	if _, err := r.UpdateRef("refs/heads/"+branchName, branchHash, "", true); err != nil {
		return nil, err
	}
	if err := writeSymbolicHead(r, branchName); err != nil {
		return nil, err
	}
	if err := r.SetRemote("origin", ep.Host+":"+ep.Port+"/"+ep.Repo); err != nil {
		return nil, err
	}
	cfg, err := r.ReadConfig()
	if err == nil {
		cfg.Set("branch."+branchName+".remote", "origin")
		cfg.Set("branch."+branchName+".merge", "refs/heads/"+branchName)
		_ = r.WriteConfig(cfg)
	}
	return r, nil
}

// defaultBranch determines which branch to check out after a clone: the
// branch the remote's persisted HEAD cache points to (refs/remotes/origin/HEAD),
// falling back to "main" or any available branch if the remote's HEAD was
// detached or absent.
func defaultBranch(r *repo.Repo, refs map[string]object.Hash) (string, object.Hash, bool) {
	if raw, err := r.ReadRemoteHead("origin"); err == nil {
		if strings.HasPrefix(raw, "ref: refs/heads/") {
			name := strings.TrimPrefix(raw, "ref: refs/heads/")
			if h, ok := refs["refs/heads/"+name]; ok {
				return name, h, true
			}
		}
	}
	if h, ok := refs["refs/heads/main"]; ok {
		return "main", h, true
	}
	for name, h := range refs {
		if strings.HasPrefix(name, "refs/heads/") {
			return strings.TrimPrefix(name, "refs/heads/"), h, true
		}
	}
	return "", "", false
}

func writeSymbolicHead(r *repo.Repo, branch string) error {
	return r.SetHead("refs/heads/"+branch, false)
}
