package main

import (
	"context"
	"strings"

	"go-element-manager/internal/config"
	"go-element-manager/internal/events"
)

// registerPlugins turns the markup plugins of the configuration into
// listeners. [[+id]] and [[+name]] expand to the chunk being edited.
func registerPlugins(d *events.Dispatcher, plugins []config.Plugin) {
	for _, p := range plugins {
		markup := p.Markup
		d.RegisterPriority(events.Name(p.Event), p.Name, p.Priority, events.StringListener(
			func(_ context.Context, payload events.Payload) (string, error) {
				name := ""
				if payload.Chunk != nil {
					name = payload.Chunk.Name
				}
				return strings.NewReplacer("[[+id]]", payload.ID, "[[+name]]", name).Replace(markup), nil
			}))
	}
}
