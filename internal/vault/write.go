package vault

import (
	"fmt"
	"os"
	"strings"
)

const relatedHeading = "## Related"

// AddReference appends a wiki link to target under the document's
// "## Related" section, creating the section at EOF when absent.
// Idempotent: if the document already references the target anywhere,
// nothing is written and added is false.
//
// The in-memory document is updated alongside the file so a second call
// within the same cycle is also a no-op.
func (s *Store) AddReference(doc *Document, target string) (added bool, err error) {
	if doc.ID == target {
		return false, fmt.Errorf("self-reference %s", target)
	}
	if doc.HasRef(target) {
		return false, nil
	}

	// Re-read rather than trusting the snapshot: another tool may have
	// added the link since the read phase.
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", doc.Path, err)
	}
	body := string(data)
	if _, refs := parseDocument(body); hasRef(refs, target) {
		doc.Refs = refs
		return false, nil
	}

	line := "- [[" + target + "]]"
	var updated string
	if idx := headingIndex(body, relatedHeading); idx >= 0 {
		updated = insertAfterHeading(body, idx, line)
	} else {
		updated = strings.TrimRight(body, "\n") + "\n\n" + relatedHeading + "\n\n" + line + "\n"
	}

	mode := os.FileMode(0644)
	if info, statErr := os.Stat(doc.Path); statErr == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(doc.Path, []byte(updated), mode); err != nil {
		return false, fmt.Errorf("write %s: %w", doc.Path, err)
	}

	doc.Body = updated
	doc.Refs = append(doc.Refs, target)
	return true, nil
}

func hasRef(refs []string, target string) bool {
	short := baseName(target)
	for _, r := range refs {
		if r == target || r == short {
			return true
		}
	}
	return false
}

// headingIndex returns the byte offset of the heading line, or -1.
func headingIndex(body, heading string) int {
	if strings.HasPrefix(body, heading+"\n") || body == heading {
		return 0
	}
	if i := strings.Index(body, "\n"+heading+"\n"); i >= 0 {
		return i + 1
	}
	if strings.HasSuffix(body, "\n"+heading) {
		return len(body) - len(heading)
	}
	return -1
}

// insertAfterHeading places line after the heading block (heading line
// plus any blank lines immediately following it).
func insertAfterHeading(body string, headingAt int, line string) string {
	rest := body[headingAt:]
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return body + "\n\n" + line + "\n"
	}
	insert := headingAt + nl + 1
	for insert < len(body) {
		lineEnd := strings.IndexByte(body[insert:], '\n')
		if lineEnd != 0 { // non-blank line or EOF
			break
		}
		insert++
	}
	return body[:insert] + line + "\n" + body[insert:]
}
