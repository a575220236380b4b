package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogit/biogit/pkg/remote"
	"github.com/biogit/biogit/pkg/repo"
)

// exitError pairs an error with the process exit code it should produce,
// letting command RunE functions return plain errors while still driving
// the spec's exit-code contract (0 success, 1 general failure, 128 "not a
// repository") from one place in main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// openRepo opens the repository rooted at the current directory (or any
// parent), tagging a failure to find one with exit code 128 per spec §6.
func openRepo() (*repo.Repo, error) {
	r, err := repo.Open(".")
	if err != nil {
		return nil, withExitCode(128, err)
	}
	return r, nil
}

func tokenPath(r *repo.Repo) string {
	return filepath.Join(r.GotDir, "biogit_token")
}

// readCachedToken returns the session token cached by a prior login, or ""
// if none is cached.
func readCachedToken(r *repo.Repo) (string, error) {
	data, err := os.ReadFile(tokenPath(r))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read cached token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeCachedToken(r *repo.Repo, token string) error {
	if err := os.WriteFile(tokenPath(r), []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write cached token: %w", err)
	}
	return nil
}

// resolveRemoteEndpoint looks up name's configured URL and parses it into
// an Endpoint.
func resolveRemoteEndpoint(r *repo.Repo, name string) (remote.Endpoint, error) {
	url, err := r.RemoteURL(name)
	if err != nil {
		return remote.Endpoint{}, err
	}
	ep, err := remote.ParseEndpoint(url)
	if err != nil {
		return remote.Endpoint{}, err
	}
	return ep, nil
}

// requireToken returns the cached session token for r, instructing the user
// to log in first when none is cached. The transfer commands (fetch, push,
// pull) have no `login` argument of their own per spec §6's grammar, so
// they always ride on whatever `login` last cached.
func requireToken(r *repo.Repo) (string, error) {
	token, err := readCachedToken(r)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("not logged in: run 'biogit login <user> <pass>' first")
	}
	return token, nil
}

// ensureEmptyDir creates path if needed and fails if it already contains
// anything, the precondition clone's target directory must satisfy.
func ensureEmptyDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("destination path %q is not empty", path)
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
