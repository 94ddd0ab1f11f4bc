package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/strandworks/crosslink/internal/config"
)

func writeDoc(t *testing.T, dir, rel, body string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

func TestParseDocument(t *testing.T) {
	body := `---
tags:
  - API
  - Backend
---
# Service notes

Deploy steps live in [[ops/deploy#steps|the deploy doc]] and [[runbook]].
Inline topics: #api #deployment and #Infra/cloud.
`
	tags, refs := parseDocument(body)

	wantTags := []string{"api", "backend", "deployment", "infra/cloud"}
	if len(tags) != len(wantTags) {
		t.Fatalf("tags = %v, want %v", tags, wantTags)
	}
	for i, w := range wantTags {
		if tags[i] != w {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], w)
		}
	}

	wantRefs := []string{"ops/deploy", "runbook"}
	if len(refs) != len(wantRefs) {
		t.Fatalf("refs = %v, want %v", refs, wantRefs)
	}
	for i, w := range wantRefs {
		if refs[i] != w {
			t.Errorf("refs[%d] = %q, want %q", i, refs[i], w)
		}
	}
}

func TestParseDocumentNoFrontmatter(t *testing.T) {
	tags, refs := parseDocument("just text with #one tag and no links")
	if len(tags) != 1 || tags[0] != "one" {
		t.Errorf("tags = %v, want [one]", tags)
	}
	if len(refs) != 0 {
		t.Errorf("refs = %v, want none", refs)
	}
}

func TestParseDocumentDedupes(t *testing.T) {
	body := "---\ntags: [api]\n---\n#api again #api\n[[x]] [[x]]"
	tags, refs := parseDocument(body)
	if len(tags) != 1 {
		t.Errorf("tags = %v, want one entry", tags)
	}
	if len(refs) != 1 {
		t.Errorf("refs = %v, want one entry", refs)
	}
}

func TestScanSingleVault(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.md", "#api doc a")
	writeDoc(t, dir, "sub/b.md", "#backend doc b")
	writeDoc(t, dir, "skip.txt", "not markdown")
	writeDoc(t, dir, ".hidden/c.md", "#hidden skipped")

	s := New([]config.VaultConfig{{Name: "main", Path: dir}}, 4)
	docs, failures, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("failures = %v", failures)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	// Sorted by identity, no vault prefix for single-vault runs.
	if docs[0].ID != "a" || docs[1].ID != "sub/b" {
		t.Errorf("ids = %q, %q", docs[0].ID, docs[1].ID)
	}
}

func TestScanMultiVaultPrefixesIDs(t *testing.T) {
	d1, d2 := t.TempDir(), t.TempDir()
	writeDoc(t, d1, "note.md", "#a")
	writeDoc(t, d2, "note.md", "#b")

	s := New([]config.VaultConfig{
		{Name: "work", Path: d1},
		{Name: "home", Path: d2},
	}, 2)
	docs, _, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].ID != "home/note" || docs[1].ID != "work/note" {
		t.Errorf("ids = %q, %q", docs[0].ID, docs[1].ID)
	}
}

func TestAddReference(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.md", "#api notes\n")

	s := New([]config.VaultConfig{{Name: "main", Path: dir}}, 1)
	doc := &Document{ID: "a", Path: path, Body: "#api notes\n"}

	added, err := s.AddReference(doc, "b")
	if err != nil {
		t.Fatalf("AddReference: %v", err)
	}
	if !added {
		t.Fatal("added = false, want true")
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "## Related") {
		t.Errorf("missing Related section:\n%s", data)
	}
	if !strings.Contains(string(data), "- [[b]]") {
		t.Errorf("missing link line:\n%s", data)
	}
}

func TestAddReferenceIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.md", "see [[b]]\n")

	s := New([]config.VaultConfig{{Name: "main", Path: dir}}, 1)
	docs, _, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	before, _ := os.ReadFile(path)
	added, err := s.AddReference(&docs[0], "b")
	if err != nil {
		t.Fatalf("AddReference: %v", err)
	}
	if added {
		t.Error("added = true for existing reference")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("file changed by no-op reference add")
	}
}

func TestAddReferenceSecondCallNoOp(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.md", "#api\n")

	s := New([]config.VaultConfig{{Name: "main", Path: dir}}, 1)
	docs, _, _ := s.Load(context.Background())

	if added, _ := s.AddReference(&docs[0], "b"); !added {
		t.Fatal("first add failed")
	}
	if added, _ := s.AddReference(&docs[0], "b"); added {
		t.Error("second add reported added = true")
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "[[b]]"); n != 1 {
		t.Errorf("link appears %d times, want 1", n)
	}
}

func TestAddReferenceExistingSection(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.md", "#api\n\n## Related\n\n- [[old]]\n")

	s := New([]config.VaultConfig{{Name: "main", Path: dir}}, 1)
	docs, _, _ := s.Load(context.Background())

	if added, err := s.AddReference(&docs[0], "new"); err != nil || !added {
		t.Fatalf("AddReference: added=%t err=%v", added, err)
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "## Related"); n != 1 {
		t.Errorf("Related sections = %d, want 1", n)
	}
	if !strings.Contains(string(data), "- [[new]]") || !strings.Contains(string(data), "- [[old]]") {
		t.Errorf("links missing:\n%s", data)
	}
}

func TestAddReferenceRejectsSelfLink(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.md", "#api\n")

	s := New([]config.VaultConfig{{Name: "main", Path: dir}}, 1)
	doc := &Document{ID: "a", Path: path}

	if _, err := s.AddReference(doc, "a"); err == nil {
		t.Error("self-reference accepted")
	}
}

func TestHasRefShortLink(t *testing.T) {
	d := Document{Refs: []string{"deploy"}}
	if !d.HasRef("ops/deploy") {
		t.Error("basename match failed")
	}
	if d.HasRef("ops/other") {
		t.Error("unrelated target matched")
	}
}
