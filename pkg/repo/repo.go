// Package repo implements the biogit repository engine: the object store
// glue, the index, references, and the repository operations (add, commit,
// status, log, diff, branch, tag, switch, merge, config, clone, remote,
// fetch, push, pull) described by the repository contract.
package repo

import (
	"github.com/biogit/biogit/pkg/object"
)

// Repo represents an opened biogit repository rooted at RootDir, with its
// metadata directory at GotDir (".biogit").
type Repo struct {
	RootDir string // working tree root
	GotDir  string // .biogit/ directory
	Store   *object.Store
}
