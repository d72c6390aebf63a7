package render

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

type Format int

const (
	FormatHTML Format = iota
	FormatText
	FormatJSON
)

func ParseFormat(s string) Format {
	switch s {
	case "text":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatHTML
	}
}

// Renderer writes components to a writer.
type Renderer struct {
	format Format
}

func NewRenderer(format Format) *Renderer {
	return &Renderer{format: format}
}

func (r *Renderer) Format() Format {
	return r.format
}

// Rows writes rows in the renderer's format.
func (r *Renderer) Rows(ctx context.Context, w io.Writer, rows []Row) error {
	switch r.format {
	case FormatText:
		return TextComponent(rows).Render(ctx, w)
	case FormatJSON:
		return JSONComponent(rows).Render(ctx, w)
	default:
		for _, row := range rows {
			if err := RowComponent(row).Render(ctx, w); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	}
}

// String renders c into a string.
func String(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render component: %w", err)
	}
	return buf.String(), nil
}
