package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/store"
)

// header is the first JSONL record written by ExportTurnsJSONL.
type header struct {
	Version   string                `json:"version"`
	Type      string                `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Since     time.Time             `json:"since,omitzero"`
	TurnCount int                   `json:"turn_count"`
	Outcomes  map[model.Outcome]int `json:"outcomes,omitempty"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportTurnsJSONL writes every turn created at or after since as JSONL to w,
// oldest first. A zero since exports the whole log.
func ExportTurnsJSONL(ctx context.Context, log store.TurnLog, since time.Time, w io.Writer) error {
	turns, err := log.ListTurns(ctx, since, 0)
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}

	// ListTurns is newest first; exports read chronologically.
	slices.SortStableFunc(turns, func(a, b *model.TurnRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	outcomes := make(map[model.Outcome]int)
	for _, t := range turns {
		outcomes[t.Outcome]++
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: time.Now().UTC(),
		Since:     since,
		TurnCount: len(turns),
		Outcomes:  outcomes,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, t := range turns {
		if err := enc.Encode(record{Type: "turn", Data: t}); err != nil {
			return fmt.Errorf("encode turn %s: %w", t.ID, err)
		}
	}
	return nil
}
