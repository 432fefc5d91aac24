// Package admin embeds the manager view templates and client assets.
package admin

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var files embed.FS

// Templates returns the view templates rooted at the templates directory.
func Templates() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static returns the client assets rooted so that "assets/..." resolves.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
