package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/alfredjeanlab/schoolline/internal/client"
	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printTurnsTable(w io.Writer, turns []*model.TurnRecord) error {
	if len(turns) == 0 {
		_, err := fmt.Fprintln(w, "no turns recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSESSION\tPHONE\tINPUT\tLEVEL\tOUTCOME\tMS")
	for _, t := range turns {
		input := t.Input
		if input == "" {
			input = ui.RenderMuted("(dial)")
		}
		outcome := string(t.Outcome)
		if t.Terminal {
			outcome += " (end)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			t.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			t.SessionID,
			t.PhoneNumber,
			input,
			levelChange(t.LevelBefore, t.LevelAfter),
			outcome,
			t.DurationMS,
		)
	}
	return tw.Flush()
}

func levelChange(before, after model.Level) string {
	if before == after {
		return before.String()
	}
	return before.String() + " -> " + after.String()
}

func printHealth(w io.Writer, h *client.HealthResponse) {
	status := h.Status
	if h.OK() {
		status = ui.RenderAccent(status)
	}
	fmt.Fprintf(w, "Health: %s\n", status)

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name+":", h.Checks[name])
	}

	if len(h.Workers) == 0 {
		return
	}
	workers := make([]string, 0, len(h.Workers))
	for name := range h.Workers {
		workers = append(workers, name)
	}
	sort.Strings(workers)
	fmt.Fprintln(w, "Workers:")
	for _, name := range workers {
		fmt.Fprintf(w, "  %-10s %s\n", name+":", ui.RenderMuted(string(h.Workers[name])))
	}
}
