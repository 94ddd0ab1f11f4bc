package vault

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/strandworks/crosslink/internal/config"
)

// Store adapts one or more filesystem vaults to the engine. Reads are
// parallel across documents; reference writes go through AddReference.
type Store struct {
	vaults      []config.VaultConfig
	concurrency int
}

// ReadFailure records one document that could not be loaded.
type ReadFailure struct {
	Path string
	Err  error
}

// New creates a Store over the configured vaults.
func New(vaults []config.VaultConfig, concurrency int) *Store {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Store{vaults: vaults, concurrency: concurrency}
}

// Load reads every markdown document across all vaults into a fresh
// per-cycle snapshot, sorted by identity. Per-document read errors are
// returned as failures, not as a load error.
func (s *Store) Load(ctx context.Context) ([]Document, []ReadFailure, error) {
	type entry struct {
		vault config.VaultConfig
		path  string
		id    string
	}

	prefix := len(s.vaults) > 1
	var entries []entry
	for _, v := range s.vaults {
		root, err := filepath.Abs(v.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve vault %s: %w", v.Name, err)
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".md") {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			id := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
			if prefix {
				id = v.Name + "/" + id
			}
			entries = append(entries, entry{vault: v, path: path, id: id})
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walk vault %s: %w", v.Name, err)
		}
	}

	docs := make([]Document, len(entries))
	var mu sync.Mutex
	var failures []ReadFailure

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := readDocument(e.path, e.id, e.vault.Name)
			if err != nil {
				log.Printf("vault: read %s: %v", e.path, err)
				mu.Lock()
				failures = append(failures, ReadFailure{Path: e.path, Err: err})
				mu.Unlock()
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failures, err
	}

	// Drop slots left empty by failed reads, then fix the order for
	// deterministic downstream output.
	out := docs[:0]
	for _, d := range docs {
		if d.ID != "" {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, failures, nil
}

func readDocument(path, id, vaultName string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("stat: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read: %w", err)
	}

	body := string(data)
	tags, refs := parseDocument(body)

	return Document{
		ID:      id,
		Vault:   vaultName,
		Path:    path,
		Tags:    tags,
		Refs:    refs,
		Body:    body,
		ModTime: info.ModTime(),
	}, nil
}
