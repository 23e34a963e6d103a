package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/service"
)

// ParkingHandlers serves check-in, check-out and status.
type ParkingHandlers struct {
	parking *service.ParkingService
	logger  *zap.Logger
}

// NewParkingHandlers returns handler struct.
func NewParkingHandlers(parking *service.ParkingService, logger *zap.Logger) *ParkingHandlers {
	return &ParkingHandlers{parking: parking, logger: logger}
}

type checkInRequest struct {
	Location string `json:"location"`
}

type checkOutRequest struct {
	LicensePlate string `json:"license_plate"`
}

// CheckIn handles POST /admin/cards/{card_id}/parking/checkin.
func (h *ParkingHandlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := h.parking.CheckIn(r.Context(), cardID(r), req.Location)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, result)
}

// CheckOut handles POST /admin/cards/{card_id}/parking/checkout. The body is optional.
func (h *ParkingHandlers) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req checkOutRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	result, err := h.parking.CheckOut(r.Context(), cardID(r), req.LicensePlate)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// Status handles GET /admin/cards/{card_id}/parking/status.
func (h *ParkingHandlers) Status(w http.ResponseWriter, r *http.Request) {
	result, err := h.parking.Status(r.Context(), cardID(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}
