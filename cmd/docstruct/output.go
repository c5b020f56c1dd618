package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docstruct/internal/extract"
	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/stream"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	// boxStyle frames end-of-run summaries.
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// renderUpdate formats one structuring update as a progress line.
func renderUpdate(u stream.Update) string {
	switch u.Kind {
	case stream.KindProgress:
		return fmt.Sprintf("%s %s", dimStyle.Render(fmt.Sprintf("[%3d%%]", u.Percent)), u.Message)
	case stream.KindMetadata:
		if u.Metadata == nil {
			return ""
		}
		return fmt.Sprintf("%s %s", titleStyle.Render("metadata"), u.Metadata.Title)
	case stream.KindNode:
		if u.Node == nil {
			return ""
		}
		indent := strings.Repeat("  ", max(u.Node.Level-1, 0))
		return fmt.Sprintf("%s%s %s", indent, successStyle.Render("+"), nodeLabel(*u.Node))
	case stream.KindComplete:
		return successStyle.Render("complete")
	case stream.KindError:
		return errorStyle.Render("error: ") + u.Message
	}
	return ""
}

func nodeLabel(n hierarchy.Node) string {
	label := strings.TrimSpace(n.Type + " " + n.Number)
	if n.Title != "" {
		label += " " + dimStyle.Render(n.Title)
	}
	if label == "" {
		label = n.ID
	}
	return label
}

// documentSummary renders the boxed end-of-run summary.
func documentSummary(doc hierarchy.Document) string {
	md := doc.Metadata
	status := successStyle.Render("ok")
	if md.IsFailed() {
		status = errorStyle.Render("failed")
	}
	content := fmt.Sprintf("%s %s\n%s %s  %s %s\n%s %d  %s %s",
		dimStyle.Render("Title:"), titleStyle.Render(md.Title),
		dimStyle.Render("Type:"), md.DocumentType,
		dimStyle.Render("Jurisdiction:"), md.Jurisdiction,
		dimStyle.Render("Nodes:"), hierarchy.Count(doc.Hierarchy),
		dimStyle.Render("Status:"), status,
	)
	return boxStyle.Render(content)
}

func recoverySummary(rec extract.Recovery) string {
	state := successStyle.Render("complete")
	switch {
	case rec.Failed:
		state = errorStyle.Render("failed")
	case rec.Partial:
		state = warnStyle.Render("partial")
	}
	content := fmt.Sprintf("%s %s  %s %s\n%s %d  %s %d  %s %d",
		dimStyle.Render("Strategy:"), titleStyle.Render(string(rec.Strategy)),
		dimStyle.Render("Result:"), state,
		dimStyle.Render("Nodes:"), hierarchy.Count(rec.Document.Hierarchy),
		dimStyle.Render("Dropped:"), rec.Dropped,
		dimStyle.Render("Input:"), rec.InputLength,
	)
	return boxStyle.Render(content)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
