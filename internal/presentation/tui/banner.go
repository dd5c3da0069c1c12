package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the escrow ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Greens from deposit to keys.
	lines := []termenv.Style{
		termenv.String("   ___  ___  ___ _ __ _____      __").Foreground(p.Color("#34d399")),
		termenv.String("  / _ \\/ __|/ __| '__/ _ \\ \\ /\\ / /").Foreground(p.Color("#10b981")),
		termenv.String(" |  __/\\__ \\ (__| | | (_) \\ V  V / ").Foreground(p.Color("#059669")),
		termenv.String("  \\___||___/\\___|_|  \\___/ \\_/\\_/  ").Foreground(p.Color("#047857")),
	}

	fmt.Fprintln(w)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}
