// Package web embeds the browser chat widget served by the relay.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var static embed.FS

// Static returns the widget files rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Handler serves the widget. Mount it under a prefix with http.StripPrefix.
func Handler() http.Handler {
	return http.FileServerFS(Static())
}
