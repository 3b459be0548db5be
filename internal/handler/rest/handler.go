package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/ledger"
)

// Handler exposes the ledger service over HTTP. Routing and status-code
// mapping live here; the service stays transport-agnostic.
type Handler struct {
	svc *ledger.Service
	log *zap.Logger
}

func NewHandler(svc *ledger.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.createAccount)
		r.Post("/transfer", h.transfer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/balance", h.balance)
			r.Get("/transactions", h.transactions)
			r.Get("/history", h.history)
			r.Post("/deposit", h.deposit)
			r.Post("/withdrawal", h.withdrawal)
			r.Post("/recalculation", h.recalculate)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createAccountRequest struct {
	NumberAccount int64  `json:"number_account"`
	OwnerAccount  string `json:"owner_account"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, ledger.ErrInvalidRequest)
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), req.NumberAccount, req.OwnerAccount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	account, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"balance":    account.Balance,
	})
}

type amountRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	TransactionRef string          `json:"transaction_ref"`
}

// transactionRef prefers the Idempotency-Key header and falls back to the
// body field.
func transactionRef(r *http.Request, body string) string {
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		return key
	}
	return body
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, ledger.ErrInvalidRequest)
		return
	}

	entry, err := h.svc.Deposit(r.Context(), id, transactionRef(r, req.TransactionRef), req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) withdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, ledger.ErrInvalidRequest)
		return
	}

	entry, err := h.svc.Withdrawal(r.Context(), id, transactionRef(r, req.TransactionRef), req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type transferRequest struct {
	FromID         uuid.UUID       `json:"from_id"`
	ToID           uuid.UUID       `json:"to_id"`
	Amount         decimal.Decimal `json:"amount"`
	TransactionRef string          `json:"transaction_ref"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, ledger.ErrInvalidRequest)
		return
	}

	entries, err := h.svc.Transfer(r.Context(), req.FromID, req.ToID, transactionRef(r, req.TransactionRef), req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.ListTransactions(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("startDate"))
	if err != nil {
		writeError(w, h.log, ledger.ErrInvalidRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("finishDate"))
	if err != nil {
		writeError(w, h.log, ledger.ErrInvalidRequest)
		return
	}

	entries, err := h.svc.ListTransactionsByDate(r.Context(), id, from, to)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Recalculate(r.Context(), id); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid account id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps ledger error kinds to HTTP statuses. Retry exhaustion maps
// to 409 so callers can distinguish contention from a rejected request.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrLimitExceeded),
		errors.Is(err, ledger.ErrDuplicateReference),
		errors.Is(err, ledger.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrTransferFailed):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
