// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/campaign-studio/internal/examples"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to a terminal; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to width runes, marking the cut with "...".
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// GenerationOutcome is what the CLI knows about one submitted prompt.
type GenerationOutcome struct {
	Prompt    string
	RequestID string
	Status    string
	ResultURL string
	Err       error
}

// PrintGeneration outputs one prompt's request ID, final status and result.
func (p *Printer) PrintGeneration(o GenerationOutcome) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Prompt:   %s\n", o.Prompt))
	if o.RequestID != "" {
		sb.WriteString(fmt.Sprintf("Request:  %s\n", o.RequestID))
	}
	switch {
	case o.Err != nil:
		sb.WriteString(fmt.Sprintf("Error:    %v\n", o.Err))
	case o.Status != "":
		sb.WriteString(fmt.Sprintf("Status:   %s\n", o.Status))
	default:
		sb.WriteString("Status:   submitted\n")
	}
	if o.ResultURL != "" {
		sb.WriteString(fmt.Sprintf("Result:   %s\n", o.ResultURL))
	}

	title := "IMAGE GENERATION"
	if o.Err != nil {
		title += " (FAILED)"
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintExamples outputs the catalog grouped by category, showing at most
// maxItemsToShow titles per category.
func (p *Printer) PrintExamples(list []examples.Example) {
	if len(list) == 0 {
		p.printBox("EXAMPLES", "No examples")
		return
	}

	var order []string
	byCategory := make(map[string][]examples.Example)
	for _, ex := range list {
		if _, ok := byCategory[ex.Category]; !ok {
			order = append(order, ex.Category)
		}
		byCategory[ex.Category] = append(byCategory[ex.Category], ex)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total examples: %d\n", len(list)))
	for _, category := range order {
		items := byCategory[category]
		sb.WriteString(fmt.Sprintf("\n%s (%d):\n", category, len(items)))
		count := min(len(items), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s  [%s]\n", items[i].Title, items[i].ID))
		}
		if len(items) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
		}
	}

	p.printBox("EXAMPLES", strings.TrimSuffix(sb.String(), "\n"))
}
