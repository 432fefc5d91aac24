package templating

import (
	"bytes"
	"html/template"
	"strings"
	"testing"
	"testing/fstest"
)

var testFS = fstest.MapFS{
	"layout.html": {Data: []byte(`<html><head><title>{{template "title" .}}</title>{{.Head}}</head>` +
		`<body>{{template "content" .}}</body></html>`)},
	"element/chunk/update.tpl": {Data: []byte(`{{define "title"}}{{.Title}}{{end}}` +
		`{{define "content"}}<form>{{.Name}}</form>{{end}}`)},
	"broken.tpl": {Data: []byte(`{{define "content"}}{{.Missing.Field}}{{end}}`)},
}

func TestRender(t *testing.T) {
	e, err := NewEngine(testFS, "element/chunk/update.tpl")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	var buf bytes.Buffer
	data := map[string]any{
		"Title": "Chunk: Footer",
		"Head":  template.HTML(`<script src="/x.js"></script>`),
		"Name":  "<Footer>",
	}
	if err := e.Render(&buf, "element/chunk/update.tpl", data); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	got := buf.String()
	for _, want := range []string{
		"<title>Chunk: Footer</title>",
		`<script src="/x.js"></script>`,
		"<form>&lt;Footer&gt;</form>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRenderUnknownPage(t *testing.T) {
	e, err := NewEngine(testFS)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if err := e.Render(&bytes.Buffer{}, "nope.tpl", nil); err == nil {
		t.Fatal("expected error for unknown page")
	}
}

func TestRenderFailureWritesNothing(t *testing.T) {
	e, err := NewEngine(testFS, "broken.tpl")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	var buf bytes.Buffer
	if err := e.Render(&buf, "broken.tpl", map[string]any{}); err == nil {
		t.Fatal("expected execution error")
	}
	if buf.Len() != 0 {
		t.Errorf("partial output written: %q", buf.String())
	}
}

func TestNewEngineMissingFiles(t *testing.T) {
	if _, err := NewEngine(fstest.MapFS{}); err == nil {
		t.Error("expected error without layout")
	}
	if _, err := NewEngine(testFS, "absent.tpl"); err == nil {
		t.Error("expected error for missing page")
	}
}

func TestPages(t *testing.T) {
	e, err := NewEngine(testFS, "element/chunk/update.tpl", "broken.tpl")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	got := strings.Join(e.Pages(), ",")
	if got != "broken.tpl,element/chunk/update.tpl" {
		t.Errorf("Pages() = %s", got)
	}
}
