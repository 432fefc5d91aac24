// Package assets collects the client-side scripts and inline blocks a manager
// page registers while it is being prepared, and renders them into the page
// head in registration order.
package assets

import (
	"html/template"
	"strings"
	"sync"
)

// Kind distinguishes asset entries.
type Kind int

const (
	KindScript Kind = iota
	KindHTMLBlock
)

// Entry is one registered asset.
type Entry struct {
	Kind  Kind
	Value string // URL for scripts, raw markup for blocks
}

// Registry is request-scoped. Duplicate URLs are registered once.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
	seen    map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

func (r *Registry) add(kind Kind, value string, dedupe bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dedupe {
		if _, ok := r.seen[value]; ok {
			return
		}
		r.seen[value] = struct{}{}
	}
	r.entries = append(r.entries, Entry{Kind: kind, Value: value})
}

// AddStartupScript registers a script URL loaded in the page head.
func (r *Registry) AddStartupScript(url string) {
	r.add(KindScript, url, true)
}

// AddStartupHTMLBlock registers raw markup emitted verbatim after any
// previously registered entries.
func (r *Registry) AddStartupHTMLBlock(html string) {
	r.add(KindHTMLBlock, html, false)
}

// Entries returns a copy of the registered entries in order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Head renders every entry as markup for the page head.
func (r *Registry) Head() template.HTML {
	var b strings.Builder
	for _, e := range r.Entries() {
		switch e.Kind {
		case KindScript:
			b.WriteString(`<script type="text/javascript" src="`)
			b.WriteString(template.HTMLEscapeString(e.Value))
			b.WriteString("\"></script>\n")
		case KindHTMLBlock:
			b.WriteString(e.Value)
			b.WriteString("\n")
		}
	}
	return template.HTML(b.String())
}
