package main

import (
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/ui"
)

var (
	// "  dial        Simulate a handset..." inside a command section.
	reCommandLine = regexp.MustCompile(`^(  )(\S+)(\s{2,}.*)$`)
	// "  -p, --phone string   ..." or "      --local   ..." inside Flags.
	reFlagLine = regexp.MustCompile(`^(\s+)((?:-\w, )?--[\w-]+)((?: \w+)?)(\s{2,}.*)$`)
	reDefault  = regexp.MustCompile(`\(default [^)]*\)`)
	// Reply markers quoted in Long text, e.g. "ends on an END reply".
	reMarker = regexp.MustCompile(`\b(CON|END)\b`)
)

// helpStyle holds the renderers used for help text. Tests swap in plain
// bracketing renderers so the output can be asserted without ANSI codes.
type helpStyle struct {
	section func(string) string
	group   func(string) string
	command func(string) string
	flag    func(string) string
	muted   func(string) string
	marker  func(string) string
}

var ansiHelpStyle = helpStyle{
	section: ui.RenderAccent,
	group:   ui.RenderAccent,
	command: ui.RenderCommand,
	flag:    ui.RenderCommand,
	muted:   ui.RenderMuted,
	marker:  ui.RenderMarker,
}

// colorizedHelpFunc prints the command's description and usage the way
// cobra's default help does, restyled line by line when colour is on.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		text := helpText(cmd)
		if ui.ShouldUseColor() {
			text = styleHelp(text, groupTitles(cmd.Root()), ansiHelpStyle)
		}
		_, _ = io.WriteString(cmd.OutOrStdout(), text)
	}
}

func helpText(cmd *cobra.Command) string {
	var b strings.Builder
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	if desc = strings.TrimRightFunc(desc, unicode.IsSpace); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}
	if cmd.Runnable() || cmd.HasSubCommands() {
		b.WriteString(cmd.UsageString())
	}
	return b.String()
}

// groupTitles returns the section headers cobra prints for command groups.
func groupTitles(root *cobra.Command) map[string]bool {
	titles := make(map[string]bool)
	for _, g := range root.Groups() {
		titles[g.Title] = true
	}
	return titles
}

// styleHelp restyles cobra usage text. Command rows are only recognised
// under a command section, flag rows only under a flags section, so
// indented Long text is left alone apart from its reply markers.
func styleHelp(text string, groups map[string]bool, st helpStyle) string {
	const (
		inProse = iota
		inCommands
		inFlags
	)
	section := inProse

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case groups[trimmed]:
			section = inCommands
			lines[i] = st.group(trimmed)
			continue
		case line == trimmed && strings.HasSuffix(trimmed, ":"):
			switch trimmed {
			case "Available Commands:", "Additional Commands:":
				section = inCommands
			case "Flags:", "Global Flags:":
				section = inFlags
			default:
				section = inProse
			}
			if trimmed != "Usage:" {
				lines[i] = st.section(trimmed)
			}
			continue
		}

		switch section {
		case inCommands:
			if m := reCommandLine.FindStringSubmatch(line); m != nil {
				lines[i] = m[1] + st.command(m[2]) + m[3]
			}
		case inFlags:
			if m := reFlagLine.FindStringSubmatch(line); m != nil {
				desc := reDefault.ReplaceAllStringFunc(m[4], st.muted)
				typ := m[3]
				if typ != "" {
					typ = " " + st.muted(strings.TrimPrefix(typ, " "))
				}
				lines[i] = m[1] + st.flag(m[2]) + typ + desc
			}
		default:
			lines[i] = reMarker.ReplaceAllStringFunc(line, st.marker)
		}
	}
	return strings.Join(lines, "\n")
}
