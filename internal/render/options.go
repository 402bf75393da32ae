// Package render converts assistant markdown into styled terminal output.
package render

import "github.com/lmarques/tutorchat/internal/config"

// Options controls how markdown is rendered.
type Options struct {
	Style            string // glamour style name or path to a JSON theme
	Width            int
	EnableEmoji      bool
	PreserveNewLines bool
	RenderMath       bool // rewrite LaTeX delimiters before rendering
}

// DefaultOptions returns the default render options.
func DefaultOptions() Options {
	return Options{
		Style:            "dark",
		Width:            80,
		EnableEmoji:      true,
		PreserveNewLines: true,
		RenderMath:       true,
	}
}

// WithWidth returns a copy of the options with the given word-wrap width.
func (o Options) WithWidth(width int) Options {
	if width > 0 {
		o.Width = width
	}
	return o
}

// FromConfig maps the persisted markdown configuration onto render options.
func FromConfig(cfg config.MarkdownConfig, width int) Options {
	opts := DefaultOptions().WithWidth(width)
	if cfg.Style != "" {
		opts.Style = cfg.Style
	}
	opts.EnableEmoji = cfg.EnableEmoji
	opts.PreserveNewLines = cfg.PreserveNewLines
	opts.RenderMath = cfg.RenderMath
	return opts
}
