package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sampleChunk() *Chunk {
	return &Chunk{
		ID:       "5",
		Name:     "Footer",
		Category: "layout",
		Snippet:  "<footer>[[+year]]</footer>",
		Properties: []Property{
			{Name: "color", Desc: "Text color", Type: PropertyColor, Value: "#333", Lexicon: "site:default", DescTrans: "Textfarbe"},
			{Name: "align", Type: PropertyList, Options: PropertyOptions{{Text: "Left", Value: "l"}, {Text: "Right", Value: "r"}}, Value: "l"},
		},
		Extra: map[string]any{"cache_type": 0},
	}
}

func TestChunkValidate(t *testing.T) {
	require.NoError(t, sampleChunk().Validate())

	noName := sampleChunk()
	noName.Name = "  "
	assert.Error(t, noName.Validate())

	dup := sampleChunk()
	dup.Properties = append(dup.Properties, Property{Name: "color"})
	assert.ErrorContains(t, dup.Validate(), "duplicate property")

	badType := sampleChunk()
	badType.Properties[0].Type = "slider"
	assert.ErrorContains(t, badType.Validate(), "unknown type")
}

func TestChunkCloneIsDeep(t *testing.T) {
	orig := sampleChunk()
	cp := orig.Clone()

	cp.Properties[0].Value = "changed"
	cp.Properties[1].Options[0].Text = "changed"
	cp.Extra["cache_type"] = 1
	cp.Name = "Header"

	assert.Equal(t, "#333", orig.Properties[0].Value)
	assert.Equal(t, "Left", orig.Properties[1].Options[0].Text)
	assert.Equal(t, 0, orig.Extra["cache_type"])
	assert.Equal(t, "Footer", orig.Name)

	var nilChunk *Chunk
	assert.Nil(t, nilChunk.Clone())
}

func TestChunkCloneCopiesNestedValues(t *testing.T) {
	orig := sampleChunk()
	orig.Properties[0].Value = []any{"red", map[string]any{"shade": "dark"}}
	orig.Extra["meta"] = map[string]any{"k": "v", "tags": []any{"a"}}

	cp := orig.Clone()
	cp.Properties[0].Value.([]any)[0] = "blue"
	cp.Properties[0].Value.([]any)[1].(map[string]any)["shade"] = "light"
	cp.Extra["meta"].(map[string]any)["k"] = "changed"
	cp.Extra["meta"].(map[string]any)["tags"].([]any)[0] = "b"

	assert.Equal(t, []any{"red", map[string]any{"shade": "dark"}}, orig.Properties[0].Value)
	assert.Equal(t, map[string]any{"k": "v", "tags": []any{"a"}}, orig.Extra["meta"])
}

func TestChunkToMapExtraCannotShadowColumns(t *testing.T) {
	c := sampleChunk()
	c.Extra["name"] = "spoofed"
	m := c.ToMap()
	assert.Equal(t, "Footer", m["name"])
	assert.Equal(t, 0, m["cache_type"])
}

func TestChunkToMapIncludesTimestamps(t *testing.T) {
	c := sampleChunk()
	c.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.UpdatedAt = c.CreatedAt.Add(time.Hour)
	c.Extra["createdAt"] = "spoofed"

	m := c.ToMap()
	assert.Equal(t, c.CreatedAt, m["createdAt"])
	assert.Equal(t, c.UpdatedAt, m["updatedAt"])
}

func TestPropertyOptionsDecoding(t *testing.T) {
	cases := map[string]struct {
		in   string
		want PropertyOptions
	}{
		"null":       {`null`, nil},
		"empty":      {`""`, nil},
		"list":       {`[{"text":"A","value":"a"}]`, PropertyOptions{{Text: "A", Value: "a"}}},
		"serialized": {`"[{\"text\":\"B\",\"value\":\"b\"}]"`, PropertyOptions{{Text: "B", Value: "b"}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var got PropertyOptions
			require.NoError(t, json.Unmarshal([]byte(tc.in), &got))
			assert.Equal(t, tc.want, got)
		})
	}

	var bad PropertyOptions
	assert.Error(t, json.Unmarshal([]byte(`"not json"`), &bad))
}

func TestPropertyRowJSONIsPositional(t *testing.T) {
	row := NewPropertyRow(Property{
		Name: "color", Desc: "Text color", Type: PropertyColor, Value: "#333",
		Lexicon: "site:default", Overridden: true, DescTrans: "Textfarbe",
	})
	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `["color","Text color","color",[],"#333","site:default",false,"Textfarbe"]`, string(data))
}

func TestPropertyRowsNeverOverridden(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		props := make([]Property, n)
		for i := range props {
			props[i] = Property{
				Name:       rapid.String().Draw(t, "name"),
				Desc:       rapid.String().Draw(t, "desc"),
				Type:       rapid.SampledFrom(propertyTypes).Draw(t, "type"),
				Value:      rapid.String().Draw(t, "value"),
				Lexicon:    rapid.String().Draw(t, "lexicon"),
				Overridden: rapid.Bool().Draw(t, "overridden"),
				DescTrans:  rapid.String().Draw(t, "descTrans"),
			}
		}
		rows := PropertyRows(props)
		if len(rows) != n {
			t.Fatalf("got %d rows, want %d", len(rows), n)
		}
		for i, row := range rows {
			tuple := row.Tuple()
			if tuple[0] != props[i].Name || tuple[1] != props[i].Desc || tuple[2] != props[i].Type ||
				tuple[4] != props[i].Value || tuple[5] != props[i].Lexicon || tuple[7] != props[i].DescTrans {
				t.Fatalf("row %d out of order: %v", i, tuple)
			}
			if tuple[6] != false {
				t.Fatalf("row %d overridden = %v", i, tuple[6])
			}
		}
	})
}
