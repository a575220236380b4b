package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Config is a git-style INI configuration file: [section] and
// [section "subsection"] headers flatten to dotted keys such as
// "user.name" or "remote.origin.url".
type Config struct {
	values map[string]string
	order  []string
}

func (r *Repo) configPath() string {
	return filepath.Join(r.GotDir, "config")
}

// ReadConfig reads .biogit/config. A missing file returns an empty Config.
func (r *Repo) ReadConfig() (*Config, error) {
	f, err := os.Open(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return newConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()
	return parseConfig(f)
}

func newConfig() *Config {
	return &Config{values: make(map[string]string)}
}

func parseConfig(f *os.File) (*Config, error) {
	cfg := newConfig()
	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = parseSectionHeader(line[1 : len(line)-1])
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("config: malformed line %q", line)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		val = strings.Trim(val, `"`)
		if section == "" {
			return nil, fmt.Errorf("config: key %q outside any section", key)
		}
		cfg.Set(section+"."+key, val)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	return cfg, nil
}

// parseSectionHeader turns `section` or `section "subsection"` into the
// dotted prefix used for keys under it ("section" or "section.subsection").
func parseSectionHeader(header string) string {
	name, quoted, hasSub := strings.Cut(header, " ")
	if !hasSub {
		return strings.TrimSpace(name)
	}
	sub := strings.TrimSpace(quoted)
	sub = strings.Trim(sub, `"`)
	return strings.TrimSpace(name) + "." + sub
}

// Get returns the value for a dotted key ("user.name", "remote.origin.url").
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Set assigns a dotted key's value, recording insertion order for new keys.
func (c *Config) Set(key, value string) {
	if _, exists := c.values[key]; !exists {
		c.order = append(c.order, key)
	}
	c.values[key] = value
}

// Unset removes a dotted key.
func (c *Config) Unset(key string) {
	if _, exists := c.values[key]; !exists {
		return
	}
	delete(c.values, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Keys returns every configured dotted key, in insertion order.
func (c *Config) Keys() []string {
	return append([]string(nil), c.order...)
}

// KeysWithPrefix returns every dotted key with the given dotted prefix (e.g.
// "remote.origin" returns "remote.origin.url", "remote.origin.fetch"), in
// insertion order.
func (c *Config) KeysWithPrefix(prefix string) []string {
	var out []string
	for _, k := range c.order {
		if strings.HasPrefix(k, prefix+".") {
			out = append(out, k)
		}
	}
	return out
}

// WriteConfig atomically writes .biogit/config, grouping keys back into
// [section] / [section "subsection"] blocks.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = newConfig()
	}

	var buf strings.Builder
	for _, section := range orderedSections(cfg) {
		top, sub := splitSection(section)
		if sub == "" {
			fmt.Fprintf(&buf, "[%s]\n", top)
		} else {
			fmt.Fprintf(&buf, "[%s %q]\n", top, sub)
		}
		for _, key := range cfg.order {
			if sectionOf(key) != section {
				continue
			}
			leaf := key[len(section)+1:]
			fmt.Fprintf(&buf, "\t%s = %s\n", leaf, cfg.values[key])
		}
	}

	tmp, err := os.CreateTemp(r.GotDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(buf.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// sectionOf returns the section a dotted key belongs to: everything up to
// the last dot for a two-part key (section.key), or the first two parts for
// a three-part subsectioned key (section.subsection.key).
func sectionOf(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) <= 2 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ".")
}

func orderedSections(cfg *Config) []string {
	seen := make(map[string]bool)
	var sections []string
	for _, key := range cfg.order {
		s := sectionOf(key)
		if !seen[s] {
			seen[s] = true
			sections = append(sections, s)
		}
	}
	sort.Strings(sections)
	return sections
}

func splitSection(section string) (top, sub string) {
	top, sub, ok := strings.Cut(section, ".")
	if !ok {
		return section, ""
	}
	return top, sub
}

// SetRemote stores/updates a named remote's URL in repository config.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set remote: remote name is required")
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("set remote: remote URL is required")
	}

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Set(fmt.Sprintf("remote.%s.url", name), remoteURL)
	cfg.Set(fmt.Sprintf("remote.%s.fetch", name), fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name))
	return r.WriteConfig(cfg)
}

// RemoveRemote deletes a named remote from repository config.
func (r *Repo) RemoveRemote(name string) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	if _, ok := cfg.Get(fmt.Sprintf("remote.%s.url", name)); !ok {
		return fmt.Errorf("remove remote: remote %q is not configured", name)
	}
	cfg.Unset(fmt.Sprintf("remote.%s.url", name))
	cfg.Unset(fmt.Sprintf("remote.%s.fetch", name))
	return r.WriteConfig(cfg)
}

// RemoteURL returns the configured URL for a named remote.
func (r *Repo) RemoteURL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("remote name is required")
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	url, ok := cfg.Get(fmt.Sprintf("remote.%s.url", name))
	if !ok || strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("remote %q is not configured", name)
	}
	return url, nil
}

// ListRemotes returns a map from each configured remote name to its URL.
func (r *Repo) ListRemotes() (map[string]string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, key := range cfg.KeysWithPrefix("remote") {
		if !strings.HasSuffix(key, ".url") {
			continue
		}
		// remote.<name>.url
		parts := strings.Split(key, ".")
		if len(parts) != 3 {
			continue
		}
		out[parts[1]] = cfg.values[key]
	}
	return out, nil
}

// Identity returns the configured user.name / user.email, falling back to
// "unknown" / "unknown@localhost" when unset.
func (r *Repo) Identity() (name, email string, err error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", "", err
	}
	name, ok := cfg.Get("user.name")
	if !ok || name == "" {
		name = "unknown"
	}
	email, ok = cfg.Get("user.email")
	if !ok || email == "" {
		email = "unknown@localhost"
	}
	return name, email, nil
}
