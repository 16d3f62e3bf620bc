package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// registerResponse is the envelope returned by POST /ussd.
type registerResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message"`
	Data    *model.RegistrationResult `json:"data,omitempty"`
	Errors  []fieldError              `json:"errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// handleRegister handles POST /ussd. Registration only validates and echoes
// the binding; the gateway side is configured out of band.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, registerResponse{Message: "invalid JSON body"})
		return
	}

	if err := model.ValidateRegistration(&req); err != nil {
		resp := registerResponse{Message: err.Error()}
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			resp.Message = ve.Errors[0].Field + " " + ve.Errors[0].Message
			for _, fe := range ve.Errors {
				resp.Errors = append(resp.Errors, fieldError{Field: fe.Field, Message: fe.Message})
			}
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	result := req.Accept(s.now())
	s.logger.Info("ussd code registered",
		"short_code", result.ShortCode,
		"callback_url", result.CallbackURL,
	)
	writeJSON(w, http.StatusOK, registerResponse{
		Success: true,
		Message: "USSD service registered successfully",
		Data:    result,
	})
}
