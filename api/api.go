// Package api exposes the ledger over HTTP as JSON. Amounts cross this
// boundary as canonical micro-unit integers paired with a currency code;
// formatting for display is the client's concern.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nsplit-app/nsplit/currency"
	"github.com/nsplit-app/nsplit/ledger"
	"github.com/nsplit-app/nsplit/middleware"
)

type Handler struct {
	ledger *ledger.Service
}

func NewHandler(ledgerService *ledger.Service) *Handler {
	return &Handler{ledger: ledgerService}
}

// Routes mounts the event endpoints. Callers wrap them with RequireAuth.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/events", h.createEvent)
	r.Get("/events/{eventID}", h.getEvent)
	r.Post("/events/{eventID}/participants", h.addParticipant)
	r.Post("/events/{eventID}/expenses", h.addExpense)
	r.Get("/events/{eventID}/expenses", h.listExpenses)
	r.Get("/events/{eventID}/balances", h.getBalances)
	r.Get("/events/{eventID}/settlement", h.getSettlementPlan)
}

type createEventRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	event, err := h.ledger.CreateEvent(r.Context(), req.Name, userID, req.Participants)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	event, err := h.ledger.Event(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

type addParticipantRequest struct {
	Name string `json:"name"`
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	var req addParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	participant, err := h.ledger.AddParticipant(r.Context(), eventID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, participant)
}

type addExpenseRequest struct {
	Description string `json:"description"`
	// Amount is a decimal string in the original currency, e.g. "120.50".
	Amount   string    `json:"amount"`
	Currency string    `json:"currency"`
	PaidBy   uuid.UUID `json:"paid_by"`
	Split    splitSpec `json:"split"`
}

type splitSpec struct {
	Mode string `json:"mode"` // "equal" or "custom"
	// Participants lists who shares an equal split, in order.
	Participants []uuid.UUID `json:"participants,omitempty"`
	// Shares carries per-participant amounts in canonical micro-units for a
	// custom split.
	Shares []ledger.Share `json:"shares,omitempty"`
}

func (h *Handler) addExpense(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	var req addExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	var mode ledger.SplitMode
	switch req.Split.Mode {
	case string(ledger.SplitKindEqual):
		mode = ledger.SplitEqually(req.Split.Participants)
	case string(ledger.SplitKindCustom):
		mode = ledger.SplitExactly(req.Split.Shares)
	default:
		http.Error(w, "split mode must be 'equal' or 'custom'", http.StatusBadRequest)
		return
	}

	expense, err := h.ledger.AddExpense(r.Context(), eventID, req.PaidBy, req.Description, amount, req.Currency, mode)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, expense)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	expenses, err := h.ledger.Expenses(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

type balanceEntry struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Amount        int64     `json:"amount"`
}

func (h *Handler) getBalances(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	balances, err := h.ledger.Balances(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := make([]balanceEntry, 0, len(balances))
	for id, amount := range balances {
		entries = append(entries, balanceEntry{ParticipantID: id, Amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ParticipantID.String() < entries[j].ParticipantID.String()
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"balances": entries,
		"scale":    currency.CanonicalScale,
	})
}

func (h *Handler) getSettlementPlan(w http.ResponseWriter, r *http.Request) {
	eventID, ok := parseEventID(w, r)
	if !ok {
		return
	}

	transfers, err := h.ledger.SettlementPlan(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transfers": transfers,
		"scale":     currency.CanonicalScale,
	})
}

func parseEventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return eventID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses. Validation failures are
// the caller's to fix (400); an unbalanced ledger is internal corruption and
// stays a 500.
func writeError(w http.ResponseWriter, err error) {
	var mismatch *ledger.SplitSumMismatchError

	switch {
	case errors.Is(err, ledger.ErrEventNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &mismatch),
		errors.Is(err, ledger.ErrEmptyName),
		errors.Is(err, ledger.ErrEmptyDescription),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrNoSplitParticipants),
		errors.Is(err, ledger.ErrUnknownParticipant),
		errors.Is(err, ledger.ErrDuplicateSplitParticipant),
		errors.Is(err, ledger.ErrNegativeSplitAmount),
		errors.Is(err, currency.ErrUnknownCurrency),
		errors.Is(err, currency.ErrNonPositiveAmount),
		errors.Is(err, currency.ErrNonPositiveRate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
