package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

var (
	quoteColor    = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#F2F2F2"}
	categoryColor = lipgloss.Color("#8BC34A")
	mutedColor    = lipgloss.Color("#6C7A89")
)

// Terminal renders one quote per line for a terminal, styled with lipgloss.
// Colors degrade to plain text when w is not a color-capable terminal.
type Terminal struct {
	// EmptyMessage is printed when there is nothing to render. Empty prints nothing.
	EmptyMessage string
}

// ContentType implements ports.Renderer.
func (Terminal) ContentType() string {
	return "text/plain; charset=utf-8"
}

// Render implements ports.Renderer.
func (t Terminal) Render(w io.Writer, quotes []domain.Quote) error {
	r := lipgloss.NewRenderer(w)

	text := r.NewStyle().Foreground(quoteColor)
	category := r.NewStyle().Foreground(categoryColor).Italic(true)
	muted := r.NewStyle().Foreground(mutedColor)

	if len(quotes) == 0 && t.EmptyMessage != "" {
		if _, err := fmt.Fprintln(w, muted.Render(t.EmptyMessage)); err != nil {
			return fmt.Errorf("rendering: %w", err)
		}

		return nil
	}

	sep := muted.Render(" - ")

	for _, q := range quotes {
		if _, err := fmt.Fprintln(w, text.Render(q.Text)+sep+category.Render(q.Category)); err != nil {
			return fmt.Errorf("rendering quote: %w", err)
		}
	}

	return nil
}
