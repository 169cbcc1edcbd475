package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"walletd/internal/domain/wallet"
)

// errorBody is the wire shape for every failure: a stable kind, a machine
// code, a human message and optional field-level detail. Never a stack trace.
type errorBody struct {
	Error struct {
		Kind    string              `json:"kind"`
		Code    string              `json:"code,omitempty"`
		Message string              `json:"message"`
		Fields  []wallet.FieldError `json:"fields,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

// writeDomainError maps the domain error taxonomy onto transport status
// codes. Unknown errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	var derr *wallet.Error
	if !errors.As(err, &derr) {
		log.Printf("unclassified error: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "INTERNAL", "", "Internal server error", nil)
		return
	}

	status := http.StatusInternalServerError
	message := derr.Message
	switch derr.Kind {
	case wallet.KindValidation, wallet.KindInsufficientBalance:
		status = http.StatusBadRequest
	case wallet.KindNotFound:
		status = http.StatusNotFound
	case wallet.KindConflict:
		status = http.StatusConflict
	case wallet.KindInfrastructure:
		log.Printf("infrastructure error: %v", derr)
		message = "Service temporarily unavailable"
	}

	writeErrorMessage(w, status, string(derr.Kind), derr.Code, message, derr.Fields)
}

func writeErrorMessage(w http.ResponseWriter, status int, kind, code, message string, fields []wallet.FieldError) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Code = code
	body.Error.Message = message
	body.Error.Fields = fields
	writeJSON(w, status, body)
}
