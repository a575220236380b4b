package repo

import (
	"fmt"

	"github.com/biogit/biogit/pkg/object"
)

// FindMergeBase computes the lowest common ancestor of two commits: BFS the
// ancestors of a into a visited set, then BFS from b, stopping at the first
// hash already in that set. Returns "" if the two histories share no
// ancestor (e.g. one of them is empty).
func (r *Repo) FindMergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	ancestorsOfA, err := r.ancestorSet(a)
	if err != nil {
		return "", err
	}
	if _, ok := ancestorsOfA[b]; ok {
		return b, nil
	}

	visited := make(map[object.Hash]struct{})
	queue := []object.Hash{b}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}

		if _, isAncestor := ancestorsOfA[cur]; isAncestor {
			return cur, nil
		}

		commit, err := r.Store.ReadCommit(cur)
		if err != nil {
			return "", fmt.Errorf("find merge base: read commit %s: %w", cur, err)
		}
		queue = append(queue, commit.Parents...)
	}

	return "", nil
}

// ancestorSet returns the set of commit hashes reachable from start
// (inclusive), via a full parent-graph BFS.
func (r *Repo) ancestorSet(start object.Hash) (map[object.Hash]struct{}, error) {
	visited := make(map[object.Hash]struct{})
	queue := []object.Hash{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}

		commit, err := r.Store.ReadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("ancestor set: read commit %s: %w", cur, err)
		}
		for _, p := range commit.Parents {
			if _, seen := visited[p]; !seen {
				queue = append(queue, p)
			}
		}
	}
	return visited, nil
}
