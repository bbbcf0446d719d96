// Package paths provides the path collaborators the aggregation core
// consumes: the manifest path table, directory translation, and the
// case-insensitive intern cache for resolved path text.
package paths

import (
	"strings"

	"github.com/yairfalse/aita/types"
)

// Table expands opaque manifest path ids to scope paths. The table is
// owned by whoever produced the access-policy manifest; this core only
// reads it.
type Table interface {
	Expand(id types.PathID) (string, bool)
}

// MapTable is a simple in-memory Table, mostly for replay tooling and
// tests. Not safe for concurrent mutation.
type MapTable struct {
	byID   map[types.PathID]string
	byPath map[string]types.PathID
	next   types.PathID
}

// NewMapTable creates an empty table. Id zero stays invalid.
func NewMapTable() *MapTable {
	return &MapTable{
		byID:   make(map[types.PathID]string),
		byPath: make(map[string]types.PathID),
		next:   1,
	}
}

// Add interns path and returns its id, reusing the existing id for a
// path already present (case-insensitive).
func (t *MapTable) Add(path string) types.PathID {
	key := strings.ToLower(path)
	if id, ok := t.byPath[key]; ok {
		return id
	}
	id := t.next
	t.next++
	t.byID[id] = path
	t.byPath[key] = id
	return id
}

// Expand returns the path registered under id.
func (t *MapTable) Expand(id types.PathID) (string, bool) {
	p, ok := t.byID[id]
	return p, ok
}

// Translator rewrites resolved paths before correlation, e.g. to undo
// subst/junction indirection the sandbox set up around the child tree.
type Translator interface {
	Translate(path string) string
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(path string) string

// Translate calls f.
func (f TranslatorFunc) Translate(path string) string { return f(path) }

// Identity is the no-op translator.
var Identity Translator = TranslatorFunc(func(path string) string { return path })

// DirTranslation maps one directory prefix onto another.
type DirTranslation struct {
	From string
	To   string
}

// DirTranslator applies an ordered list of prefix rewrites; the first
// matching rule wins. Matching is case-insensitive to follow the
// platform conventions of the monitoring agent.
type DirTranslator struct {
	rules []DirTranslation
}

// NewDirTranslator builds a translator from rules.
func NewDirTranslator(rules []DirTranslation) *DirTranslator {
	return &DirTranslator{rules: rules}
}

// Translate rewrites path according to the first matching rule.
func (d *DirTranslator) Translate(path string) string {
	lower := strings.ToLower(path)
	for _, r := range d.rules {
		from := strings.ToLower(r.From)
		if strings.HasPrefix(lower, from) {
			return r.To + path[len(from):]
		}
	}
	return path
}

// Interner deduplicates path text case-insensitively: every caller
// asking for the same literal path (in any casing) gets back the one
// stored string, so large report streams do not retain thousands of
// copies of the same path. Not safe for concurrent use; the
// aggregation session that owns it runs single-threaded.
type Interner struct {
	entries map[string]string
}

// NewInterner creates an empty intern cache.
func NewInterner() *Interner {
	return &Interner{entries: make(map[string]string)}
}

// Intern returns the canonical stored instance for path, storing path
// itself on first sight.
func (i *Interner) Intern(path string) string {
	key := strings.ToLower(path)
	if s, ok := i.entries[key]; ok {
		return s
	}
	i.entries[key] = path
	return path
}

// Len returns the number of distinct paths interned.
func (i *Interner) Len() int { return len(i.entries) }
