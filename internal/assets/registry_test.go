package assets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryKeepsOrderAndDedupes(t *testing.T) {
	r := NewRegistry()
	r.AddStartupScript("/manager/assets/a.js")
	r.AddStartupScript("/manager/assets/b.js")
	r.AddStartupScript("/manager/assets/a.js")
	r.AddStartupHTMLBlock("<script>boot()</script>")
	r.AddStartupHTMLBlock("<script>boot()</script>")

	entries := r.Entries()
	assert.Equal(t, []Entry{
		{Kind: KindScript, Value: "/manager/assets/a.js"},
		{Kind: KindScript, Value: "/manager/assets/b.js"},
		{Kind: KindHTMLBlock, Value: "<script>boot()</script>"},
		{Kind: KindHTMLBlock, Value: "<script>boot()</script>"},
	}, entries)
}

func TestHeadRendersEntries(t *testing.T) {
	r := NewRegistry()
	r.AddStartupScript(`/x.js?a=1&b="2"`)
	r.AddStartupHTMLBlock("<script>boot()</script>")

	head := string(r.Head())
	assert.Contains(t, head, `src="/x.js?a=1&amp;b=&#34;2&#34;"`)
	assert.Contains(t, head, "<script>boot()</script>")
	assert.Less(t, strings.Index(head, "/x.js"), strings.Index(head, "boot()"))
}
