package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/skillswap/backend/internal/ledger"
	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/repository"
)

// AccountReader loads the caller's account.
type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Handler serves the caller's own account views. None of these reads run
// reconciliation; that is an explicit POST on the bookings API.
type Handler struct {
	accounts AccountReader
	auditor  *ledger.Auditor
	log      *slog.Logger
}

func NewHandler(accounts AccountReader, auditor *ledger.Auditor, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accounts: accounts, auditor: auditor, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	acc, err := h.accounts.GetByID(r.Context(), accountID)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get account failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// GET /api/v1/credit-ledger
func (h *Handler) ListCreditLedger(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.auditor.Transactions(r.Context(), accountID)
	if err != nil {
		h.log.Error("list credit ledger failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.CreditLedger{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

// GET /api/v1/credit-ledger/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	rep, err := h.auditor.Audit(r.Context(), accountID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("audit failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !rep.Consistent {
		h.log.Warn("ledger inconsistent", "account_id", accountID, "balance", rep.Balance, "ledger_sum", rep.LedgerSum)
	}
	writeJSON(w, http.StatusOK, rep)
}
