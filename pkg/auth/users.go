// Package auth implements the server's durable user table and signed
// session tokens, grounded on original_source/include/UserManager.h.
package auth

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const saltLength = 16

const saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// UserRecord is one durable user-table row: "<username>:<salt>:<hash>".
type UserRecord struct {
	Username string
	Salt     string
	Hash     string
}

// UserManager is the durable, file-backed user table. All reads and writes
// to the backing file are serialized by mu, matching the single user-table
// mutex the spec's concurrency model requires.
type UserManager struct {
	mu   sync.Mutex
	path string
}

// NewUserManager opens (creating if absent) the user table at path.
func NewUserManager(path string) (*UserManager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("auth: create user table dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("auth: open user table: %w", err)
	}
	f.Close()
	return &UserManager{path: path}, nil
}

// Register creates a new user record. Usernames containing ':' are refused
// since it is the record field separator. Returns an error if the username
// already exists.
func (m *UserManager) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("auth: username cannot be empty")
	}
	if strings.Contains(username, ":") {
		return fmt.Errorf("auth: username cannot contain ':'")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.readLocked()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.Username == username {
			return fmt.Errorf("auth: user %q already exists", username)
		}
	}

	salt, err := generateSalt(saltLength)
	if err != nil {
		return err
	}
	rec := UserRecord{Username: username, Salt: salt, Hash: hashPassword(password, salt)}
	records = append(records, rec)
	return m.writeLocked(records)
}

// Verify checks username/password against the stored record, returning
// whether it matches.
func (m *UserManager) Verify(username, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.readLocked()
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.Username == username {
			return hashPassword(password, rec.Salt) == rec.Hash, nil
		}
	}
	return false, nil
}

func (m *UserManager) readLocked() ([]UserRecord, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: read user table: %w", err)
	}
	defer f.Close()

	var records []UserRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		records = append(records, UserRecord{Username: parts[0], Salt: parts[1], Hash: parts[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auth: scan user table: %w", err)
	}
	return records, nil
}

func (m *UserManager) writeLocked(records []UserRecord) error {
	tmp := m.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("auth: write user table: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, "%s:%s:%s\n", rec.Username, rec.Salt, rec.Hash); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func hashPassword(password, salt string) string {
	sum := sha1.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func generateSalt(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = saltAlphabet[int(b)%len(saltAlphabet)]
	}
	return string(out), nil
}
