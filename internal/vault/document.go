// Package vault reads markdown document corpora and writes reference
// updates back. It is the only component that touches document files.
package vault

import (
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a per-cycle snapshot of one markdown file.
type Document struct {
	ID      string    // vault-relative identity, no .md extension
	Vault   string    // owning vault name ("" for single-vault runs)
	Path    string    // absolute file path
	Tags    []string  // case-normalized, first-seen order, deduped
	Refs    []string  // outbound wiki-link targets, normalized
	Body    string    // raw text, read-only for lexical scoring
	ModTime time.Time
}

var (
	wikiLinkRe  = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	inlineTagRe = regexp.MustCompile(`(^|\s)#([a-zA-Z][a-zA-Z0-9_/-]*)`)
)

// frontmatter is the subset of document frontmatter crosslink reads.
type frontmatter struct {
	Tags []string `yaml:"tags"`
}

// HasTag reports whether the document carries the given (normalized) tag.
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasRef reports whether the document already references the target,
// matching either the full identity or its basename (short wiki links).
func (d *Document) HasRef(target string) bool {
	short := baseName(target)
	for _, r := range d.Refs {
		if r == target || r == short {
			return true
		}
	}
	return false
}

// TagSet returns the document's tags as a set.
func (d *Document) TagSet() map[string]bool {
	set := make(map[string]bool, len(d.Tags))
	for _, t := range d.Tags {
		set[t] = true
	}
	return set
}

// parseDocument extracts tags and outbound references from raw markdown.
func parseDocument(body string) (tags, refs []string) {
	rest := body
	seen := make(map[string]bool)

	if fm, after, ok := splitFrontmatter(body); ok {
		var meta frontmatter
		// Malformed frontmatter is not fatal; inline tags still count.
		if err := yaml.Unmarshal([]byte(fm), &meta); err == nil {
			for _, t := range meta.Tags {
				t = NormalizeTag(t)
				if t != "" && !seen[t] {
					seen[t] = true
					tags = append(tags, t)
				}
			}
		}
		rest = after
	}

	for _, m := range inlineTagRe.FindAllStringSubmatch(rest, -1) {
		t := NormalizeTag(m[2])
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	seenRef := make(map[string]bool)
	for _, m := range wikiLinkRe.FindAllStringSubmatch(rest, -1) {
		r := normalizeLink(m[1])
		if r != "" && !seenRef[r] {
			seenRef[r] = true
			refs = append(refs, r)
		}
	}

	return tags, refs
}

// splitFrontmatter separates a leading YAML frontmatter block from the body.
func splitFrontmatter(body string) (fm, rest string, ok bool) {
	if !strings.HasPrefix(body, "---\n") && !strings.HasPrefix(body, "---\r\n") {
		return "", body, false
	}
	inner := body[strings.Index(body, "\n")+1:]
	end := strings.Index(inner, "\n---")
	if end < 0 {
		return "", body, false
	}
	after := inner[end+len("\n---"):]
	if nl := strings.Index(after, "\n"); nl >= 0 {
		after = after[nl+1:]
	} else {
		after = ""
	}
	return inner[:end], after, true
}

// NormalizeTag lowercases and trims a tag, dropping a leading '#'.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	return strings.ToLower(tag)
}

// normalizeLink strips alias and heading parts from a wiki-link target.
// "[[dir/note#section|label]]" resolves to "dir/note".
func normalizeLink(link string) string {
	if i := strings.IndexByte(link, '|'); i >= 0 {
		link = link[:i]
	}
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return strings.TrimSpace(link)
}

func baseName(id string) string {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		return id[i+1:]
	}
	return id
}
