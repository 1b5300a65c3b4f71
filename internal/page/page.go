// Package page wraps rendered markdown in the site's HTML layout.
package page

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
)

//go:embed layout.gohtml
var defaultLayout string

// View is the title and body of a single page. Title is escaped, Body is
// trusted HTML and inserted as-is.
type View struct {
	Title string
	Body  template.HTML
}

// RenderError is returned when the layout fails to execute
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return e.Err.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Default renderer using the embedded layout
func Default() *Renderer {
	return &Renderer{template.Must(template.New("layout").Parse(defaultLayout))}
}

// Parse a layout from source
func Parse(name, source string) (*Renderer, error) {
	tpl, err := template.New(name).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("page: unable to parse layout %q: %w", name, err)
	}
	return &Renderer{tpl}, nil
}

// Load a layout from disk. An empty path loads the default layout.
func Load(path string) (*Renderer, error) {
	if path == "" {
		return Default(), nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("page: unable to read layout: %w", err)
	}
	return Parse(path, string(source))
}

type Renderer struct {
	tpl *template.Template
}

// Render the view into a full HTML document
func (r *Renderer) Render(view *View) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, view); err != nil {
		return nil, &RenderError{err}
	}
	return buf.Bytes(), nil
}
