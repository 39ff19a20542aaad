// Package static embeds the stylesheets and scripts served under /static.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var StaticFS embed.FS

// FileSystem returns the assets rooted at the static directory.
func FileSystem() http.FileSystem {
	sub, err := fs.Sub(StaticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
