package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/utils"
)

type TradeHandler struct {
	tradeService *services.TradeService
}

func NewTradeHandler(service *services.TradeService) *TradeHandler {
	return &TradeHandler{
		tradeService: service,
	}
}

// HandleListTrades returns the caller's trades, optionally restricted to
// a trade-date range via ?from=2006-01-02&to=2006-01-02.
func (h *TradeHandler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	var (
		trades []models.Trade
		err    error
	)
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" || to != "" {
		trades, err = h.tradeService.ListDateRange(r.Context(), userID, from, to)
	} else {
		trades, err = h.tradeService.List(r.Context(), userID)
	}
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying trades for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trades); err != nil {
		logger.L.Error("Error generating JSON response for trades", "userID", userID, "error", err)
	}
}

func (h *TradeHandler) HandleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	tradeID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid trade id", http.StatusBadRequest)
		return
	}

	var patch models.TradePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	trade, err := h.tradeService.Update(r.Context(), userID, tradeID, patch)
	if err != nil {
		h.writeMutationError(w, userID, tradeID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trade); err != nil {
		logger.L.Error("Error generating JSON response for updated trade", "userID", userID, "error", err)
	}
}

// HandleDeleteTrade deletes an owned trade. The analytics recompute runs
// before the response, so a follow-up analytics read is already current.
func (h *TradeHandler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	tradeID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid trade id", http.StatusBadRequest)
		return
	}

	if err := h.tradeService.Delete(r.Context(), userID, tradeID); err != nil {
		h.writeMutationError(w, userID, tradeID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"deleted": true})
}

func (h *TradeHandler) writeMutationError(w http.ResponseWriter, userID, tradeID int64, err error) {
	switch {
	case errors.Is(err, services.ErrTradeNotFound):
		utils.SendJSONError(w, "trade not found", http.StatusNotFound)
	case errors.Is(err, services.ErrNotOwner):
		logger.L.Warn("Rejected mutation of foreign trade", "userID", userID, "tradeID", tradeID)
		utils.SendJSONError(w, "trade not found", http.StatusNotFound) // don't leak existence
	default:
		logger.L.Error("Error mutating trade", "userID", userID, "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
