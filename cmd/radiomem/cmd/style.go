package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/clone"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// styled renders s with style only when stdout is a terminal.
func styled(style lipgloss.Style, s string) string {
	if !isTerminal(os.Stdout) {
		return s
	}
	return style.Render(s)
}

func heading(s string) string { return styled(headingStyle, s) }
func label(s string) string   { return styled(labelStyle, s) }
func success(s string) string { return styled(okStyle, s) }

// progressPrinter draws a single status line on stderr, or returns nil when
// stderr is not a terminal.
func progressPrinter() clone.Progress {
	if !isTerminal(os.Stderr) {
		return nil
	}
	return func(s clone.Status) {
		fmt.Fprintf(os.Stderr, "\r%s: %3.0f%% (%d/%d bytes)", s.Msg, s.Percent(), s.Cur, s.Max)
		if s.Cur >= s.Max {
			fmt.Fprintln(os.Stderr)
		}
	}
}
