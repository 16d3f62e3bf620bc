package model

import "time"

// DialSession is the persisted state of one gateway-assigned dial sequence.
type DialSession struct {
	SessionID    string    `json:"session_id"`
	PhoneNumber  string    `json:"phone_number"`
	Level        Level     `json:"level"`
	Organization string    `json:"organization,omitempty"` // captured at the identity gate
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewDialSession returns a session at LevelInitial.
func NewDialSession(sessionID, phoneNumber string, now time.Time) *DialSession {
	return &DialSession{
		SessionID:   sessionID,
		PhoneNumber: phoneNumber,
		Level:       LevelInitial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
