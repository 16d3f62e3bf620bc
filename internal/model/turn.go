package model

import "time"

// InboundTurn is one webhook call from the USSD gateway.
type InboundTurn struct {
	SessionID   string `json:"sessionId"`
	ServiceCode string `json:"serviceCode"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`

	// Gateway metadata, carried for logging only.
	NetworkCode string `json:"networkCode,omitempty"`
	Cost        string `json:"cost,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeMenu         Outcome = "menu"
	OutcomeDetail       Outcome = "detail"
	OutcomeSelection    Outcome = "selection"
	OutcomeNotAvailable Outcome = "not_available"
	OutcomeUnregistered Outcome = "unregistered"
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeMalformed    Outcome = "malformed"
)

// TurnRecord is an audit row for one handled turn.
type TurnRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	PhoneNumber string    `json:"phone_number"`
	ServiceCode string    `json:"service_code,omitempty"`
	Input       string    `json:"input"`
	LevelBefore Level     `json:"level_before"`
	LevelAfter  Level     `json:"level_after"`
	Outcome     Outcome   `json:"outcome"`
	Terminal    bool      `json:"terminal"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
