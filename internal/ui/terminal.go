package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether replies printed to stdout get ANSI colour.
func ShouldUseColor() bool {
	return colorDecision(os.Getenv, term.IsTerminal(int(os.Stdout.Fd())))
}

// StdinIsTerminal reports whether stdin is attached to a terminal, which
// decides if dial prompts for keystrokes or reads a script.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// colorDecision applies NO_COLOR (any value), then CLICOLOR_FORCE=1, then
// CLICOLOR=0, and otherwise follows tty.
func colorDecision(getenv func(string) string, tty bool) bool {
	switch {
	case getenv("NO_COLOR") != "":
		return false
	case strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(getenv("CLICOLOR")) == "0":
		return false
	}
	return tty
}
