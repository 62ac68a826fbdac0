package server

import (
	"embed"
	"html/template"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	webRepository  = "https://github.com/slarse/pdfebc-web"
	coreRepository = "https://github.com/slarse/pdfebc-core"
)

// page is the data of every rendered template.
type page struct {
	Title string
	Flash string
	Error string

	Files      []string
	Processing bool
	CanDeliver bool
	HasArchive bool

	Count int

	WebRepository  string
	CoreRepository string
}

func newRenderer() (*echo.TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &echo.TemplateRenderer{Template: tmpl}, nil
}
