package ussd

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// Separator joins keystrokes in the gateway's cumulative text field.
const Separator = "*"

// Input is the normalized form of one turn's cumulative text.
type Input struct {
	Raw string
	// Latest is the last non-empty keystroke, trimmed.
	Latest string
	// Initial is true for the first call of a dial sequence.
	Initial bool
}

// ParseInput splits cumulative text into its latest keystroke.
func ParseInput(text string) Input {
	in := Input{Raw: text, Initial: text == ""}
	parts := strings.Split(text, Separator)
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			in.Latest = s
			break
		}
	}
	return in
}

// ValidateTurn rejects a turn that cannot be tied to a session and caller.
func ValidateTurn(t *model.InboundTurn) error {
	var missing []string
	if strings.TrimSpace(t.SessionID) == "" {
		missing = append(missing, "sessionId")
	}
	if strings.TrimSpace(t.PhoneNumber) == "" {
		missing = append(missing, "phoneNumber")
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{Kind: KindMalformed, Cause: fmt.Errorf("missing %s", strings.Join(missing, ", "))}
}
