package templating

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"sort"
)

// LayoutFile is the base template every page is parsed with. Pages define the
// blocks it renders ("title", "head", "content").
const LayoutFile = "layout.html"

// Engine holds one parsed template set per page, each made of the layout plus
// the page template.
type Engine struct {
	pages map[string]*template.Template
}

// NewEngine parses the layout and every page under fsys. Page names are paths
// relative to fsys, e.g. "element/chunk/update.tpl".
func NewEngine(fsys fs.FS, pages ...string) (*Engine, error) {
	layout, err := fs.ReadFile(fsys, LayoutFile)
	if err != nil {
		return nil, fmt.Errorf("error reading layout template: %w", err)
	}

	e := &Engine{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		ts, err := template.New(LayoutFile).Parse(string(layout))
		if err != nil {
			return nil, fmt.Errorf("error parsing layout template: %w", err)
		}
		body, err := fs.ReadFile(fsys, page)
		if err != nil {
			return nil, fmt.Errorf("error reading page template %s: %w", page, err)
		}
		if _, err := ts.New(path.Base(page)).Parse(string(body)); err != nil {
			return nil, fmt.Errorf("error parsing page template %s: %w", page, err)
		}
		e.pages[page] = ts
	}
	return e, nil
}

// Pages lists the parsed page names in sorted order.
func (e *Engine) Pages() []string {
	out := make([]string, 0, len(e.pages))
	for name := range e.pages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Render executes the layout of page into w. Output is buffered so a failing
// template never leaves a half-written response.
func (e *Engine) Render(w io.Writer, page string, data any) error {
	ts, ok := e.pages[page]
	if !ok {
		return fmt.Errorf("template %s not found in cache", page)
	}
	var buf bytes.Buffer
	if err := ts.ExecuteTemplate(&buf, LayoutFile, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
