// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// TurnPrefix marks turn-log records.
	TurnPrefix = "turn-"
	// SimSessionPrefix marks dial sessions started by the simulator, shaped
	// like the gateway's own ATUid_ session identifiers.
	SimSessionPrefix = "ATUid_sim"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// TurnID returns a new turn-log ID.
func TurnID() (string, error) {
	return GenerateWithPrefix(TurnPrefix)
}

// SimSessionID returns a session ID for a simulated dial.
func SimSessionID() (string, error) {
	return GenerateWithPrefix(SimSessionPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
