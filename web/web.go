// Package web holds the server-rendered pages of the dashboard.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin/render"
	"github.com/jon4hz/appmonitor/web/templates/components"
)

//go:embed templates/layouts/*.html templates/partials/*.html templates/pages/*/*.html
var templatesFS embed.FS

const layoutName = "base"

// Renderer is a gin HTMLRender that pairs every page with the base layout.
// Pages are addressed by their path below templates/pages without extension, e.g. "main/dashboard".
type Renderer struct {
	pages map[string]*template.Template
}

var _ render.HTMLRender = (*Renderer)(nil)

// NewRenderer parses all embedded pages.
func NewRenderer() (*Renderer, error) {
	shared, err := template.New(layoutName).Funcs(components.FuncMap()).
		ParseFS(templatesFS, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layouts: %w", err)
	}

	files, err := fs.Glob(templatesFS, "templates/pages/*/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		name := strings.TrimSuffix(strings.TrimPrefix(file, "templates/pages/"), path.Ext(file))
		t, err := shared.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templatesFS, file); err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	log.Debug("Parsed page templates", "count", len(r.pages))
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *Renderer) Instance(name string, data any) render.Render {
	t, ok := r.pages[name]
	if !ok {
		log.Error("Unknown page template", "name", name)
		t = r.pages["errors/error"]
		data = Page{Title: "Error", Data: ErrorData{Status: 500, Message: "Unknown page " + name}}
	}
	return render.HTML{
		Template: t,
		Name:     layoutName,
		Data:     data,
	}
}

// ErrorData is the data of the error page.
type ErrorData struct {
	Status  int
	Message string
}

// Has reports whether a page exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}
