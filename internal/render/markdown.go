package render

import (
	"fmt"
	"strings"

	"gogrid/domain/grid"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Line breaks would end the table row, so they render as spaces
var markdownEscaper = strings.NewReplacer(
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	`\`, `\\`,
	"|", `\|`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
)

// Markdown renders a computed grid as a pipe table with one-based row numbers
func Markdown(g grid.ComputedGrid) string {
	var b strings.Builder

	b.WriteString("| # |")
	for _, col := range grid.Columns {
		fmt.Fprintf(&b, " %s |", col)
	}
	b.WriteString("\n|---|")
	for range grid.Columns {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for row := range g {
		fmt.Fprintf(&b, "| %d |", row+1)
		for _, col := range grid.Columns {
			fmt.Fprintf(&b, " %s |", markdownEscaper.Replace(g.Cell(row, col)))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders a computed grid as an HTML table fragment
func HTML(g grid.ComputedGrid) []byte {
	return MarkdownToHTML([]byte(Markdown(g)))
}

// MarkdownToHTML converts markdown with table support. Raw HTML in the
// input is dropped and typographic replacements are off, so "1/2" and "--"
// stay as typed.
func MarkdownToHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.SkipHTML})
	return markdown.ToHTML(md, p, renderer)
}
