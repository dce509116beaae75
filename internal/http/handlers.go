package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"budgetanalyzer/internal/core"
)

type createTransactionRequest struct {
	Merchant         string `json:"merchant"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	RemainingBalance string `json:"remaining_balance"`
}

type limitView struct {
	Timespan    string `json:"timespan,omitempty"`
	PeriodStart string `json:"period_start,omitempty"`
	Date        string `json:"date,omitempty"`
	Spent       string `json:"spent"`
	Limit       string `json:"limit"`
	Remaining   string `json:"remaining"`
}

type transactionResponse struct {
	TransactionID string    `json:"transaction_id"`
	Merchant      string    `json:"merchant"`
	Amount        string    `json:"amount"`
	OccurredAt    time.Time `json:"occurred_at"`
	Today         limitView `json:"today"`
	Month         limitView `json:"month"`
	NextDay       limitView `json:"next_day"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount, req.Currency)
	if err != nil || !amount.WithinScale() {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	balance := core.ZeroAmount(req.Currency)
	if req.RemainingBalance != "" {
		balance, err = core.ParseAmount(req.RemainingBalance, req.Currency)
		if err != nil || !balance.WithinScale() {
			writeError(w, http.StatusUnprocessableEntity, "invalid remaining balance")
			return
		}
	}

	tx := core.NewTransaction(req.Merchant, amount, balance)
	if err := tx.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	limits, err := s.transactions.RecordSpend(r.Context(), tx)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, core.ErrEmptyMerchant),
			errors.Is(err, core.ErrInvalidAmount),
			errors.Is(err, core.ErrCurrencyMismatch):
			status = http.StatusUnprocessableEntity
		}
		if status == http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "Failed recording spend", "error", err, "merchant", req.Merchant)
			writeError(w, status, "failed to record transaction")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, transactionResponse{
		TransactionID: tx.ID.String(),
		Merchant:      tx.Merchant,
		Amount:        tx.Amount.String(),
		OccurredAt:    tx.OccurredAt,
		Today:         entityView(limits.TodayLimit),
		Month:         entityView(limits.MonthLimit),
		NextDay:       previewView(limits.NextDayCalculatedLimit),
	})
}

func (s *Server) handleListLimits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	found, err := s.limits.ActiveLimits(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed listing limits", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list limits")
		return
	}

	views := make([]limitView, 0, len(found))
	for _, limit := range found {
		views = append(views, entityView(limit))
	}
	writeJSON(w, http.StatusOK, map[string][]limitView{"limits": views})
}

func entityView(limit core.LimitEntity) limitView {
	return limitView{
		Timespan:    string(limit.Timespan),
		PeriodStart: limit.PeriodStart.Format("2006-01-02"),
		Spent:       limit.SpentAmount.String(),
		Limit:       limit.LimitAmount.String(),
		Remaining:   limit.RemainingAmount().String(),
	}
}

func previewView(limit core.CalculatedDayLimit) limitView {
	return limitView{
		Date:      limit.Date.Format("2006-01-02"),
		Spent:     limit.SpentAmount.String(),
		Limit:     limit.LimitAmount.String(),
		Remaining: limit.RemainingAmount().String(),
	}
}
