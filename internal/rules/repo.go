package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the rule file does not exist.
var ErrNotFound = errors.New("rule file not found")

// RecordError is a per-record validation failure. The offending record
// is dropped; the rest of the file still loads.
type RecordError struct {
	Name string
	Err  error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Name, e.Err)
}

// Repo persists the rule set to a YAML file.
type Repo struct {
	path string
}

// NewRepo creates a Repo backed by the given file path.
func NewRepo(path string) *Repo {
	return &Repo{path: path}
}

// Path returns the backing file path.
func (repo *Repo) Path() string { return repo.path }

// Load reads and validates the rule file. Invalid records are rejected
// individually and reported; only a read or parse failure is fatal.
func (repo *Repo) Load() (*Set, []RecordError, error) {
	data, err := os.ReadFile(repo.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, repo.path)
		}
		return nil, nil, fmt.Errorf("read rules: %w", err)
	}

	var raw Set
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse rules: %w", err)
	}

	set := &Set{Version: raw.Version}
	var rejected []RecordError
	seen := make(map[string]bool)
	for _, r := range raw.Rules {
		if err := r.Validate(); err != nil {
			rejected = append(rejected, RecordError{Name: r.Name, Err: err})
			continue
		}
		if seen[r.Name] {
			rejected = append(rejected, RecordError{Name: r.Name, Err: fmt.Errorf("duplicate name")})
			continue
		}
		seen[r.Name] = true
		set.Rules = append(set.Rules, r)
	}

	return set, rejected, nil
}

// Save replaces the rule file wholesale with the given collection,
// bumping the version. The write is atomic (temp file + rename).
func (repo *Repo) Save(set *Set) error {
	out := Set{Version: set.Version + 1, Rules: set.Rules}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	dir := filepath.Dir(repo.path)
	tmp, err := os.CreateTemp(dir, ".crosslink-rules-*")
	if err != nil {
		return fmt.Errorf("temp rules file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write rules: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close rules: %w", err)
	}
	if err := os.Rename(tmpPath, repo.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace rules: %w", err)
	}

	set.Version = out.Version
	return nil
}
