package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// PropertyType tags which input widget edits a property.
type PropertyType string

const (
	PropertyTextfield   PropertyType = "textfield"
	PropertyTextarea    PropertyType = "textarea"
	PropertyBoolean     PropertyType = "combo-boolean"
	PropertyList        PropertyType = "list"
	PropertyNumberfield PropertyType = "numberfield"
	PropertyDatefield   PropertyType = "datefield"
	PropertyColor       PropertyType = "color"
)

var propertyTypes = []PropertyType{
	PropertyTextfield,
	PropertyTextarea,
	PropertyBoolean,
	PropertyList,
	PropertyNumberfield,
	PropertyDatefield,
	PropertyColor,
}

// Valid reports whether t is one of the known property types.
func (t PropertyType) Valid() bool {
	return slices.Contains(propertyTypes, t)
}

// PropertyOption is one selectable entry of a list property.
type PropertyOption struct {
	Text  string `json:"text" yaml:"text"`
	Value string `json:"value" yaml:"value"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PropertyOptions is the option list of a property. Older records store it as
// a JSON-serialized string, so decoding accepts a string as well as a list.
type PropertyOptions []PropertyOption

// UnmarshalJSON accepts null, "", a JSON list, or a string holding a JSON list.
func (o *PropertyOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '"' {
		var serialized string
		if err := json.Unmarshal(data, &serialized); err != nil {
			return fmt.Errorf("decode serialized options: %w", err)
		}
		serialized = strings.TrimSpace(serialized)
		if serialized == "" {
			*o = nil
			return nil
		}
		data = []byte(serialized)
	}
	var list []PropertyOption
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	*o = list
	return nil
}

// Property is a named, typed input slot on a chunk.
type Property struct {
	Name    string          `json:"name" yaml:"name"`
	Desc    string          `json:"desc" yaml:"desc"`
	Type    PropertyType    `json:"type" yaml:"type"`
	Options PropertyOptions `json:"options" yaml:"options"`
	Value   any             `json:"value" yaml:"value"`
	// Lexicon names the topic holding the localized description, if any.
	Lexicon    string `json:"lexicon" yaml:"lexicon"`
	Overridden bool   `json:"overridden" yaml:"overridden"`
	DescTrans  string `json:"desc_trans" yaml:"desc_trans"`
}

func (p Property) clone() Property {
	if p.Options != nil {
		p.Options = slices.Clone(p.Options)
	}
	p.Value = cloneValue(p.Value)
	return p
}

// PropertyRow is the positional display tuple the property grid consumes:
// (name, desc, type, options, value, lexicon, overridden, desc_trans).
type PropertyRow struct {
	Name       string
	Desc       string
	Type       PropertyType
	Options    PropertyOptions
	Value      any
	Lexicon    string
	Overridden bool
	DescTrans  string
}

// NewPropertyRow builds the display tuple for p. Overridden is always false:
// a property only becomes overridden when the chunk is used by a page, never
// while its defaults are being edited.
func NewPropertyRow(p Property) PropertyRow {
	return PropertyRow{
		Name:       p.Name,
		Desc:       p.Desc,
		Type:       p.Type,
		Options:    p.Options,
		Value:      p.Value,
		Lexicon:    p.Lexicon,
		Overridden: false,
		DescTrans:  p.DescTrans,
	}
}

// Tuple returns the row as its eight positional values.
func (r PropertyRow) Tuple() []any {
	options := r.Options
	if options == nil {
		options = PropertyOptions{}
	}
	return []any{r.Name, r.Desc, r.Type, options, r.Value, r.Lexicon, r.Overridden, r.DescTrans}
}

// MarshalJSON encodes the row as a fixed-order array.
func (r PropertyRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Tuple())
}

// PropertyRows converts a property list into display tuples, keeping order.
func PropertyRows(props []Property) []PropertyRow {
	rows := make([]PropertyRow, 0, len(props))
	for _, p := range props {
		rows = append(rows, NewPropertyRow(p))
	}
	return rows
}
