// Package events is the plugin extension-point registry. Listeners register
// against a named event and contribute markup when the manager dispatches it.
package events

import (
	"context"

	"go-element-manager/internal/model"
)

// Name identifies an extension point.
type Name string

const (
	// OnChunkFormPrerender output is injected directly into the page HTML.
	OnChunkFormPrerender Name = "OnChunkFormPrerender"
	// OnChunkFormRender output is embedded in a client-side script string.
	OnChunkFormRender Name = "OnChunkFormRender"
	// OnRichTextEditorInit output bootstraps a rich text editor.
	OnRichTextEditorInit Name = "OnRichTextEditorInit"
)

// Mode tells listeners which form is being prepared.
type Mode string

// ModeUpdate marks the edit form of an existing record.
const ModeUpdate Mode = "update"

// Payload is what a listener receives. Chunk is a private copy; changes made
// by a listener never reach the record being edited.
type Payload struct {
	ID       string
	Mode     Mode
	Chunk    *model.Chunk
	Elements []string // Form element IDs a rich text editor should attach to
}

// Listener contributes output to an event.
type Listener interface {
	Handle(ctx context.Context, p Payload) ([]string, error)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, p Payload) ([]string, error)

// Handle calls f.
func (f ListenerFunc) Handle(ctx context.Context, p Payload) ([]string, error) {
	return f(ctx, p)
}

// StringListener adapts a listener that produces a single string. An empty
// string contributes nothing.
func StringListener(f func(ctx context.Context, p Payload) (string, error)) Listener {
	return ListenerFunc(func(ctx context.Context, p Payload) ([]string, error) {
		s, err := f(ctx, p)
		if err != nil || s == "" {
			return nil, err
		}
		return []string{s}, nil
	})
}
