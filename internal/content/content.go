// Package content resolves page names into rendered markdown.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/matthewmueller/markserve/internal/markdown"
)

// ErrNotFound is returned for every page that can't be served, whether it's
// missing, unreadable or outside of the content root.
var ErrNotFound = errors.New("content: page not found")

// Page is a resolved markdown page
type Page struct {
	// Title from the page's frontmatter, if any
	Title string
	HTML  []byte
}

// New resolver that reads "<name><ext>" files out of fsys
func New(fsys fs.FS, ext string, md *markdown.Markdown) *Resolver {
	return &Resolver{fsys, ext, md}
}

type Resolver struct {
	fsys fs.FS
	ext  string
	md   *markdown.Markdown
}

// Resolve the page name into HTML
func (r *Resolver) Resolve(name string) (*Page, error) {
	rel, ok := r.locate(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	source, err := fs.ReadFile(r.fsys, rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %s", ErrNotFound, name, err)
	}
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("%w: %q is not valid utf-8", ErrNotFound, name)
	}
	// A leading thematic break can look like frontmatter, so pages whose
	// frontmatter doesn't parse are rendered whole
	doc, err := markdown.Parse(source)
	if err != nil {
		doc = &markdown.Document{Body: source}
	}
	html, err := r.md.Render(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %s", ErrNotFound, name, err)
	}
	return &Page{doc.Title, html}, nil
}

// locate maps the page name onto a path within the content root. Names that
// aren't already clean or would leave the root are rejected.
func (r *Resolver) locate(name string) (string, bool) {
	if name == "" || strings.ContainsAny(name, "\\\x00") {
		return "", false
	}
	if path.Clean(name) != name {
		return "", false
	}
	rel := name + r.ext
	if !fs.ValidPath(rel) {
		return "", false
	}
	return rel, true
}
