package report

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"deal_proforma/pkg/core/cashflow"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the grid's Markdown table to an HTML fragment.
func HTML(g *cashflow.Grid, opts Options) (string, error) {
	return ToHTML(Markdown(g, opts))
}

// ToHTML converts Markdown to HTML.
func ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
