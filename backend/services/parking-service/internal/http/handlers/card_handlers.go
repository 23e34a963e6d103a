package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"parkcard/backend/services/parking-service/internal/auth"
	"parkcard/backend/services/parking-service/internal/models"
	"parkcard/backend/services/parking-service/internal/service"
)

// CardHandlers serves card lookup, registration, lifecycle and recharge.
type CardHandlers struct {
	cards   *service.CardService
	parking *service.ParkingService
	logger  *zap.Logger
}

// NewCardHandlers returns handler struct.
func NewCardHandlers(cards *service.CardService, parking *service.ParkingService, logger *zap.Logger) *CardHandlers {
	return &CardHandlers{cards: cards, parking: parking, logger: logger}
}

type registerCardRequest struct {
	CardID         string      `json:"card_id"`
	OwnerName      string      `json:"owner_name"`
	Email          string      `json:"email"`
	LicensePlate   string      `json:"license_plate"`
	VehicleType    string      `json:"vehicle_type"`
	InitialBalance json.Number `json:"initial_balance"`
}

type rechargeRequest struct {
	Amount        json.Number `json:"amount"`
	PaymentMethod string      `json:"payment_method"`
}

type historyResponse struct {
	CardID       string               `json:"card_id"`
	Count        int                  `json:"count"`
	Transactions []models.Transaction `json:"transactions"`
}

func cardID(r *http.Request) string {
	return chi.URLParam(r, "card_id")
}

// Info handles GET /cards/{card_id}.
func (h *CardHandlers) Info(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.CardInfo(r.Context(), cardID(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, card)
}

// PublicHistory handles GET /cards/{card_id}/history.
func (h *CardHandlers) PublicHistory(w http.ResponseWriter, r *http.Request) {
	id := cardID(r)
	txs, err := h.cards.PublicHistory(r.Context(), id, r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, historyResponse{CardID: id, Count: len(txs), Transactions: txs})
}

// Recharge handles POST /cards/{card_id}/recharge and its admin twin.
func (h *CardHandlers) Recharge(w http.ResponseWriter, r *http.Request) {
	var req rechargeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	result, err := h.parking.Recharge(r.Context(), cardID(r), amount, req.PaymentMethod)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// Register handles POST /admin/cards.
func (h *CardHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	initial, err := parseOptionalAmount(req.InitialBalance)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	result, err := h.cards.RegisterCard(r.Context(), service.RegisterCardInput{
		CardID:         req.CardID,
		OwnerName:      req.OwnerName,
		Email:          req.Email,
		LicensePlate:   req.LicensePlate,
		VehicleType:    req.VehicleType,
		InitialBalance: initial,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, result)
}

// Details handles GET /admin/cards/{card_id}.
func (h *CardHandlers) Details(w http.ResponseWriter, r *http.Request) {
	details, err := h.cards.CardDetails(r.Context(), cardID(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, details)
}

// Deactivate handles DELETE /admin/cards/{card_id}.
func (h *CardHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.DeactivateCard(r.Context(), cardID(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, card)
}

// Reactivate handles POST /admin/cards/{card_id}/reactivate.
func (h *CardHandlers) Reactivate(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.ReactivateCard(r.Context(), cardID(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, card)
}

// History handles GET /admin/cards/{card_id}/history.
func (h *CardHandlers) History(w http.ResponseWriter, r *http.Request) {
	id := cardID(r)
	txs, err := h.parking.History(r.Context(), id, r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, historyResponse{CardID: id, Count: len(txs), Transactions: txs})
}

// Reconcile handles GET /admin/cards/{card_id}/reconcile.
func (h *CardHandlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.cards.Reconcile(r.Context(), cardID(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// MyCard handles GET /me/card.
func (h *CardHandlers) MyCard(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	card, err := h.cards.MyCard(r.Context(), identity)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, card)
}

// MyHistory handles GET /me/history.
func (h *CardHandlers) MyHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	card, err := h.cards.MyCard(r.Context(), identity)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	txs, err := h.cards.MyHistory(r.Context(), identity, r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, historyResponse{CardID: card.CardID, Count: len(txs), Transactions: txs})
}
