package backup

import (
	"fmt"
	"html"
	"strings"

	"inkwell/internal/block"
)

// renderMarkdown flattens each note's block forest into an indented
// markdown document, one section per note.
func renderMarkdown(notes []NoteExport) string {
	var b strings.Builder
	b.WriteString("# Notes backup\n")

	for _, n := range notes {
		title := n.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "\n## %s\n", title)
		if len(n.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(n.Tags, ", "))
		}
		b.WriteString("\n")
		for _, root := range block.BuildTree(n.Blocks) {
			writeNode(&b, root, 0)
		}
	}
	return b.String()
}

func writeNode(b *strings.Builder, n *block.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Type {
	case block.TypeHeading:
		fmt.Fprintf(b, "%s### %s\n", indent, n.Text)
	case block.TypeTodo:
		mark := " "
		if n.Done != nil && *n.Done {
			mark = "x"
		}
		fmt.Fprintf(b, "%s- [%s] %s\n", indent, mark, n.Text)
	case block.TypeList:
		fmt.Fprintf(b, "%s- %s\n", indent, n.Text)
	case block.TypeQuote:
		fmt.Fprintf(b, "%s> %s\n", indent, n.Text)
	case block.TypeCode:
		fmt.Fprintf(b, "%s```\n%s%s\n%s```\n", indent, indent, n.Text, indent)
	default:
		fmt.Fprintf(b, "%s%s\n", indent, n.Text)
	}
	for _, c := range n.Children {
		writeNode(b, c, depth+1)
	}
}

func renderHTML(notes []NoteExport) string {
	var b strings.Builder
	b.WriteString("<h1>Notes backup</h1>")
	fmt.Fprintf(&b, "<p>Your backup of %d notes is attached as JSON.</p><ul>", len(notes))
	for _, n := range notes {
		title := n.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "<li>%s (%d blocks)</li>", html.EscapeString(title), len(n.Blocks))
	}
	b.WriteString("</ul>")
	return b.String()
}
