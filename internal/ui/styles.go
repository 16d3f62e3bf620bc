package ui

import (
	"fmt"
	"strings"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOpen   = 114 // green
	colorEnd    = 173 // orange
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderMarker colors a CON or END reply marker. Other strings are
// returned unchanged.
func RenderMarker(s string) string {
	switch s {
	case "CON":
		return render(colorOpen, s)
	case "END":
		return render(colorEnd, s)
	}
	return s
}

// RenderReply formats a raw CON/END reply as a handset screen: a colored
// status tag on the first line, then the body indented by two spaces.
// Replies without a marker are shown as-is under a muted "???" tag.
func RenderReply(reply string) string {
	tag, body := RenderMuted("???"), reply
	switch {
	case strings.HasPrefix(reply, "CON "):
		tag, body = RenderMarker("CON"), reply[len("CON "):]
	case strings.HasPrefix(reply, "END "):
		tag, body = RenderMarker("END"), reply[len("END "):]
	}

	var b strings.Builder
	b.WriteString(tag)
	b.WriteByte('\n')
	for _, line := range strings.Split(body, "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
