package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Chunk is a named, reusable template fragment with typed input properties.
// It is the record the manager loads into the chunk edit form.
type Chunk struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Category    string     `json:"category" yaml:"category"` // Empty for uncategorized chunks
	Snippet     string     `json:"snippet" yaml:"snippet"`   // Template body
	Locked      bool       `json:"locked" yaml:"locked"`
	Static      bool       `json:"static" yaml:"static"`
	StaticFile  string     `json:"static_file" yaml:"static_file"`
	Properties  []Property `json:"properties" yaml:"properties"`

	// Extra holds additional scalar fields that are carried through untouched.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Validate checks the structural invariants of a chunk: a name is present and
// property names are non-empty and unique.
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("chunk name cannot be empty")
	}
	seen := make(map[string]struct{}, len(c.Properties))
	for i, p := range c.Properties {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("property %d of chunk %q has no name", i, c.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("chunk %q has duplicate property %q", c.Name, name)
		}
		seen[name] = struct{}{}
		if p.Type != "" && !p.Type.Valid() {
			return fmt.Errorf("property %q of chunk %q has unknown type %q", name, c.Name, p.Type)
		}
	}
	return nil
}

// Clone returns a deep copy, so the copy can be handed to code that must not
// mutate the original.
func (c *Chunk) Clone() *Chunk {
	if c == nil {
		return nil
	}
	out := *c
	if c.Properties != nil {
		out.Properties = make([]Property, len(c.Properties))
		for i, p := range c.Properties {
			out.Properties[i] = p.clone()
		}
	}
	if c.Extra != nil {
		out.Extra = cloneMap(c.Extra)
	}
	return &out
}

// cloneValue copies the composite values produced by JSON and YAML decoding.
// Scalars are returned as is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// ToMap flattens the chunk into the field map sent to the client-side editor.
// Extra fields are merged in first so they can never shadow a real column.
func (c *Chunk) ToMap() map[string]any {
	m := make(map[string]any, 14+len(c.Extra))
	for k, v := range c.Extra {
		m[k] = v
	}
	m["id"] = c.ID
	m["name"] = c.Name
	m["description"] = c.Description
	m["category"] = c.Category
	m["snippet"] = c.Snippet
	m["locked"] = c.Locked
	m["static"] = c.Static
	m["static_file"] = c.StaticFile
	m["properties"] = c.Properties
	m["createdAt"] = c.CreatedAt
	m["updatedAt"] = c.UpdatedAt
	return m
}
