package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/service"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: "error", Message: message})
}

func writeErrorData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Status: "error", Message: message, Data: data})
}

// decodeJSON reads a JSON body into dst. Numbers stay json.Number so amounts
// can be validated as integers.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// parseAmount accepts a positive integer amount.
func parseAmount(raw json.Number) (int64, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(raw.String()), 10, 64)
	if err != nil || amount <= 0 {
		return 0, service.ErrInvalidAmount
	}
	return amount, nil
}

// parseOptionalAmount accepts an empty value (zero) or a non-negative integer.
func parseOptionalAmount(raw json.Number) (int64, error) {
	if strings.TrimSpace(raw.String()) == "" {
		return 0, nil
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(raw.String()), 10, 64)
	if err != nil || amount < 0 {
		return 0, service.ErrInvalidAmount
	}
	return amount, nil
}

func errorMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "parking: ")
}

// respondError maps service errors onto HTTP statuses. Unexpected failures are
// logged and reported without detail.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		insufficient *service.InsufficientBalanceError
		active       *service.SessionActiveError
		mismatch     *service.PlateMismatchError
	)

	switch {
	case errors.As(err, &insufficient):
		writeErrorData(w, http.StatusPaymentRequired, "insufficient balance", map[string]int64{
			"required":  insufficient.Required,
			"current":   insufficient.Current,
			"shortfall": insufficient.Shortfall,
		})
	case errors.As(err, &active):
		data := map[string]interface{}{"card_id": active.CardID}
		if active.Location != "" {
			data["location"] = active.Location
			data["timestamp_in"] = active.TimestampIn
		}
		writeErrorData(w, http.StatusConflict, "card already has an active session", data)
	case errors.As(err, &mismatch):
		writeErrorData(w, http.StatusBadRequest, "license plate does not match", map[string]string{
			"registered_plate": mismatch.Registered,
		})
	case errors.Is(err, service.ErrSystemFailure):
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, errorMessage(err))
	case errors.Is(err, service.ErrDuplicateIdentifier):
		writeError(w, http.StatusConflict, errorMessage(service.ErrDuplicateIdentifier))
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, errorMessage(err))
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "admin access required")
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrCardInactive),
		errors.Is(err, service.ErrNoActiveSession):
		writeError(w, http.StatusBadRequest, errorMessage(err))
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
