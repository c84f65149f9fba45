package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the Dialogic banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"  ____  _       _             _      ", "#818cf8"},
		{" |  _ \\(_) __ _| | ___   __ _(_) ___ ", "#a78bfa"},
		{" | | | | |/ _` | |/ _ \\ / _` | |/ __|", "#c084fc"},
		{" | |_| | | (_| | | (_) | (_| | | (__ ", "#e879f9"},
		{" |____/|_|\\__,_|_|\\___/ \\__, |_|\\___|", "#f472b6"},
		{"                        |___/        ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
