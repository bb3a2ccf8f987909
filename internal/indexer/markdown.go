package indexer

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
)

// MarkdownFlattener renders markdown to plain text that keeps the structure
// boundary detection understands: heading lines, paragraph breaks, list
// items, fenced code blocks, and pipe-separated table rows.
type MarkdownFlattener struct {
	parser goldmark.Markdown
}

// NewMarkdownFlattener creates a flattener with table support.
func NewMarkdownFlattener() *MarkdownFlattener {
	return &MarkdownFlattener{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Flatten parses the markdown and emits plain text blocks separated by
// blank lines.
func (f *MarkdownFlattener) Flatten(content []byte) string {
	if len(content) == 0 {
		return ""
	}

	reader := gmtext.NewReader(content)
	doc := f.parser.Parser().Parse(reader)

	var b strings.Builder

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if _, ok := n.(*ast.List); ok {
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			b.WriteString(strings.Repeat("#", node.Level))
			b.WriteString(" ")
			b.WriteString(extractPlainText(node, content))
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph:
			// Paragraphs directly under list items are written by the
			// ListItem case.
			if _, inItem := node.Parent().(*ast.ListItem); inItem {
				return ast.WalkSkipChildren, nil
			}
			b.WriteString(extractPlainText(node, content))
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			b.WriteString("- ")
			b.WriteString(extractPlainText(node, content))
			b.WriteString("\n")
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			writeCodeBlock(&b, node.Lines(), content)
			return ast.WalkSkipChildren, nil

		case *ast.CodeBlock:
			writeCodeBlock(&b, node.Lines(), content)
			return ast.WalkSkipChildren, nil

		case *ast.Blockquote:
			b.WriteString(extractPlainText(node, content))
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil

		default:
			// Table extension nodes are matched by kind name; the extension
			// package does not export concrete types through ast.
			kindName := n.Kind().String()
			if strings.Contains(kindName, "TableRow") || strings.Contains(kindName, "TableHeader") {
				b.WriteString(extractTableRowText(n, content))
				b.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
			if kindName == "Table" {
				return ast.WalkContinue, nil
			}
			return ast.WalkContinue, nil
		}
	})

	out := b.String()
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}

func writeCodeBlock(b *strings.Builder, lines *gmtext.Segments, content []byte) {
	b.WriteString("```\n")
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(content))
	}
	b.WriteString("```\n\n")
}

// extractPlainText collects the text content of a node and its children,
// joining soft line breaks with spaces.
func extractPlainText(n ast.Node, content []byte) string {
	var textBuilder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				textBuilder.WriteString(" ")
			}
		case *ast.String:
			textBuilder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(textBuilder.String())
}

// extractTableRowText joins a table row's cells with pipe separators.
func extractTableRowText(row ast.Node, content []byte) string {
	var rowBuilder strings.Builder
	cellCount := 0

	_ = ast.Walk(row, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if strings.Contains(node.Kind().String(), "TableCell") {
			cellText := extractPlainText(node, content)
			if cellCount > 0 {
				rowBuilder.WriteString(" | ")
			}
			rowBuilder.WriteString(cellText)
			cellCount++
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return rowBuilder.String()
}
