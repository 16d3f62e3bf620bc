package model

// Account is a caller resolved from a phone number.
type Account struct {
	PhoneNumber     string `json:"phone_number"`
	Name            string `json:"name"`
	Category        string `json:"category"` // Parent, Principal, Admin, or a student stream
	OrganizationID  int64  `json:"organization_id"`
	Organization    string `json:"organization"`
	AdmissionNumber string `json:"admission_number,omitempty"`
}
