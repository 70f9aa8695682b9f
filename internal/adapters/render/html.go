// Package render projects quote lists into output formats.
package render

import (
	"fmt"
	"html"
	"io"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// HTML renders each quote as <p>{text} - <em>{category}</em></p>, escaped, with no separator.
type HTML struct{}

// ContentType implements ports.Renderer.
func (HTML) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render implements ports.Renderer.
func (HTML) Render(w io.Writer, quotes []domain.Quote) error {
	for _, q := range quotes {
		if _, err := fmt.Fprintf(w, "<p>%s - <em>%s</em></p>",
			html.EscapeString(q.Text), html.EscapeString(q.Category)); err != nil {
			return fmt.Errorf("rendering quote: %w", err)
		}
	}

	return nil
}
