// Package markdown turns markdown source into HTML fragments.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// New markdown renderer. Raw HTML inside the markdown is escaped unless
// unsafe is true.
func New(unsafe bool) *Markdown {
	options := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	if unsafe {
		options = append(options, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	return &Markdown{goldmark.New(options...)}
}

// Markdown is safe for concurrent use.
type Markdown struct {
	engine goldmark.Markdown
}

// Render markdown source into an HTML fragment
func (m *Markdown) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.engine.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("markdown: unable to render: %w", err)
	}
	return buf.Bytes(), nil
}

// Document is a markdown file split into its frontmatter and body
type Document struct {
	Title string
	Body  []byte
}

type matter struct {
	Title string `yaml:"title"`
}

// Parse splits an optional frontmatter block off the top of the source.
// Sources without frontmatter come back unchanged as the body.
func Parse(source []byte) (*Document, error) {
	var meta matter
	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return nil, fmt.Errorf("markdown: unable to parse frontmatter: %w", err)
	}
	return &Document{meta.Title, body}, nil
}
