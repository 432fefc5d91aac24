package lexicon

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chunkTopics = []string{"chunk", "category", "propertyset", "element"}

func TestEmbeddedLocales(t *testing.T) {
	lex, err := New(Embedded())
	require.NoError(t, err)
	assert.Equal(t, []string{"en-US", "de-DE"}, lex.Locales())

	for _, locale := range lex.Locales() {
		_, err := lex.Load(locale, chunkTopics...)
		require.NoError(t, err, "locale %s", locale)
	}
}

func TestResolve(t *testing.T) {
	lex, err := New(Embedded())
	require.NoError(t, err)

	tests := []struct {
		in   []string
		want string
	}{
		{nil, BaseLocale},
		{[]string{""}, BaseLocale},
		{[]string{"de"}, "de-DE"},
		{[]string{"de-AT"}, "de-DE"},
		{[]string{"fr-FR"}, BaseLocale},
		{[]string{"fr-FR,de;q=0.7"}, "de-DE"},
		{[]string{"not a tag!", "de-DE"}, "de-DE"},
		{[]string{"en-GB"}, BaseLocale},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lex.Resolve(tt.in...), "Resolve(%q)", tt.in)
	}
}

func TestLoadFallsBackPerKey(t *testing.T) {
	lex, err := New(Embedded())
	require.NoError(t, err)

	topics, err := lex.Load("de-DE", chunkTopics...)
	require.NoError(t, err)
	assert.Equal(t, "de-DE", topics.Locale())
	assert.Equal(t, "Chunk nicht angegeben.", topics.Get("chunk_err_ns", nil))
	// Only defined in the base locale.
	assert.Equal(t, "Default Properties", topics.Get("chunk_properties", nil))
	// The default topic is always included.
	assert.Equal(t, "Zugriff verweigert.", topics.Get("access_denied", nil))
}

func TestGetPlaceholders(t *testing.T) {
	lex, err := New(Embedded())
	require.NoError(t, err)
	topics, err := lex.Load("en-US", "chunk")
	require.NoError(t, err)

	assert.Equal(t, "Chunk not found with id: 42", topics.Get("chunk_err_nfs", map[string]string{"id": "42"}))
	assert.Equal(t, "no_such_key", topics.Get("no_such_key", nil))
	assert.Equal(t, "Chunk", topics.Get("chunk", nil))

	var nilTopics *Topics
	assert.Equal(t, "chunk", nilTopics.Get("chunk", nil))
}

func TestLoadUnknownTopic(t *testing.T) {
	lex, err := New(Embedded())
	require.NoError(t, err)
	_, err = lex.Load("en-US", "snippet")
	assert.Error(t, err)
}

func TestNewRequiresBaseLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/de-DE/default.yaml": {Data: []byte("locale: de-DE\ntopic: default\nentries:\n  a: b\n")},
	}
	_, err := New(fsys)
	assert.ErrorContains(t, err, "base locale")
}

func TestTopicFileMustMatchPath(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en-US/default.yaml": {Data: []byte("locale: en-US\ntopic: chunk\nentries:\n  a: b\n")},
	}
	lex, err := New(fsys)
	require.NoError(t, err)
	_, err = lex.Load("en-US")
	assert.ErrorContains(t, err, "must match file name")
}

func TestLoadIsCached(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en-US/default.yaml": {Data: []byte("locale: en-US\ntopic: default\nentries:\n  greeting: hello\n")},
	}
	lex, err := New(fsys, WithCacheTTL(0))
	require.NoError(t, err)

	first, err := lex.Load("en-US")
	require.NoError(t, err)
	assert.Equal(t, "hello", first.Get("greeting", nil))

	fsys["locales/en-US/default.yaml"] = &fstest.MapFile{Data: []byte("locale: en-US\ntopic: default\nentries:\n  greeting: hi\n")}
	cached, err := lex.Load("en-US")
	require.NoError(t, err)
	assert.Equal(t, "hello", cached.Get("greeting", nil))

	lex.Flush()
	fresh, err := lex.Load("en-US")
	require.NoError(t, err)
	assert.Equal(t, "hi", fresh.Get("greeting", nil))
}
