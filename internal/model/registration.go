package model

import (
	"strings"
	"time"
)

// DefaultRegistrationDescription is used when a registration omits one.
const DefaultRegistrationDescription = "School Management System USSD Service"

// GatewayProvider names the USSD aggregator the service is registered with.
const GatewayProvider = "Africa's Talking"

// Registration is a request to bind a short code to a callback URL.
type Registration struct {
	ShortCode   string `json:"shortCode"`
	CallbackURL string `json:"callbackUrl"`
	Description string `json:"description,omitempty"`
}

// RegistrationResult is returned for an accepted registration.
type RegistrationResult struct {
	ShortCode       string    `json:"shortCode"`
	CallbackURL     string    `json:"callbackUrl"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	RegisteredAt    time.Time `json:"registeredAt"`
	Provider        string    `json:"provider"`
	WebhookEndpoint string    `json:"webhookEndpoint"`
}

// Accept builds the result for a registration that passed validation.
func (r *Registration) Accept(now time.Time) *RegistrationResult {
	desc := r.Description
	if strings.TrimSpace(desc) == "" {
		desc = DefaultRegistrationDescription
	}
	cb := strings.TrimRight(strings.TrimSpace(r.CallbackURL), "/")
	return &RegistrationResult{
		ShortCode:       strings.TrimSpace(r.ShortCode),
		CallbackURL:     cb,
		Description:     desc,
		Status:          "registered",
		RegisteredAt:    now.UTC(),
		Provider:        GatewayProvider,
		WebhookEndpoint: cb + "/webhook",
	}
}
