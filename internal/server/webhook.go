package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime/debug"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

const (
	maxWebhookBody = 64 << 10

	invalidRequestReply = "END Invalid request format"
	unavailableReply    = "END Service temporarily unavailable. Please try again later."
)

var errUnsupportedMedia = errors.New("unsupported content type")

// handleWebhook handles POST /ussd/webhook. The gateway only understands a
// 200 text/plain body, so every path, including panics, writes one.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic recovered in webhook",
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
			writeReply(w, unavailableReply)
		}
	}()

	turn, err := decodeTurn(w, r)
	if err != nil {
		s.logger.Warn("rejected webhook body",
			"content_type", r.Header.Get("Content-Type"),
			"err", err,
		)
		writeReply(w, invalidRequestReply)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.turnDeadline)
	defer cancel()
	writeReply(w, s.engine.Handle(ctx, turn))
}

// decodeTurn reads a form-encoded or JSON webhook body.
func decodeTurn(w http.ResponseWriter, r *http.Request) (model.InboundTurn, error) {
	var turn model.InboundTurn
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return turn, errUnsupportedMedia
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return turn, fmt.Errorf("parse form: %w", err)
		}
		f := r.PostForm
		turn = model.InboundTurn{
			SessionID:   f.Get("sessionId"),
			ServiceCode: f.Get("serviceCode"),
			PhoneNumber: f.Get("phoneNumber"),
			Text:        f.Get("text"),
			NetworkCode: f.Get("networkCode"),
			Cost:        f.Get("cost"),
			Date:        f.Get("date"),
		}
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&turn); err != nil && !errors.Is(err, io.EOF) {
			return turn, fmt.Errorf("decode json: %w", err)
		}
	default:
		return turn, errUnsupportedMedia
	}
	return turn, nil
}

func writeReply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}
