package ussd

import (
	"errors"
	"testing"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		text        string
		wantLatest  string
		wantInitial bool
	}{
		{"", "", true},
		{"1", "1", false},
		{"1*2", "2", false},
		{"4*2*0", "0", false},
		{"1* 3 ", "3", false},
		{"1*", "1", false},
		{"1**", "1", false},
		{"*", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in := ParseInput(tt.text)
			if in.Latest != tt.wantLatest {
				t.Errorf("Latest = %q, want %q", in.Latest, tt.wantLatest)
			}
			if in.Initial != tt.wantInitial {
				t.Errorf("Initial = %v, want %v", in.Initial, tt.wantInitial)
			}
			if in.Raw != tt.text {
				t.Errorf("Raw = %q", in.Raw)
			}
		})
	}
}

func TestValidateTurn(t *testing.T) {
	tests := []struct {
		name    string
		turn    model.InboundTurn
		wantErr bool
	}{
		{"complete", model.InboundTurn{SessionID: "s", PhoneNumber: "+254700000000"}, false},
		{"no session", model.InboundTurn{PhoneNumber: "+254700000000"}, true},
		{"blank session", model.InboundTurn{SessionID: "  ", PhoneNumber: "+254700000000"}, true},
		{"no phone", model.InboundTurn{SessionID: "s"}, true},
		{"text optional", model.InboundTurn{SessionID: "s", PhoneNumber: "1", Text: ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(&tt.turn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTurn() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformed) {
				t.Errorf("expected a malformed error, got %v", err)
			}
		})
	}
}

func TestScreenRender(t *testing.T) {
	if got := Continue("Hi").Render(); got != "CON Hi" {
		t.Errorf("Continue = %q", got)
	}
	if got := End("Bye").Render(); got != "END Bye" {
		t.Errorf("End = %q", got)
	}
	if mainMenuScreen("X").OverBudget() {
		t.Error("main menu should fit the soft limit")
	}
	long := make([]byte, SoftLimit)
	for i := range long {
		long[i] = 'a'
	}
	if !Continue(string(long)).OverBudget() {
		t.Error("expected screen over the soft limit")
	}
}
