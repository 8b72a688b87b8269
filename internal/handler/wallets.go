package handler

import (
	"errors"
	"net/http"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

type AmountRequest struct {
	Amount money.Money `json:"amount"`
}

type DepositRequest struct {
	Amount money.Money `json:"amount"`
	Note   string      `json:"note" validate:"required"`
}

type RejectWithdrawRequest struct {
	Note string `json:"note" validate:"required"`
}

// WithdrawErrorResponse carries the stored request alongside a rejection.
type WithdrawErrorResponse struct {
	Error   string                  `json:"error"`
	Request *wallet.WithdrawRequest `json:"request,omitempty"`
}

type BalanceResponse struct {
	Balance money.Money `json:"balance"`
}

func (h *Handler) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := uuidParam(w, r, "sellerID")
	if !ok {
		return
	}
	wl, err := h.svc.GetWallet(r.Context(), sellerID, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get wallet")
		return
	}
	respondWithJSON(w, http.StatusOK, wl)
}

func (h *Handler) handleWalletStatement(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := uuidParam(w, r, "sellerID")
	if !ok {
		return
	}
	by := actorFrom(r)
	if !by.IsAdmin() && by.ID != sellerID {
		respondWithError(w, http.StatusForbidden, apperr.Permission("statement of seller %s", sellerID).Error())
		return
	}
	st, err := h.reports.WalletStatement(r.Context(), sellerID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to build wallet statement")
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

func (h *Handler) handleRequestWithdraw(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := uuidParam(w, r, "sellerID")
	if !ok {
		return
	}
	var req AmountRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	wr, err := h.svc.RequestWithdraw(r.Context(), sellerID, req.Amount, actorFrom(r))
	if err != nil {
		respondWithWithdrawError(w, wr, err, "Failed to request withdrawal")
		return
	}
	respondWithJSON(w, http.StatusCreated, wr)
}

func (h *Handler) handleGetWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	wr, err := h.svc.GetWithdrawRequest(r.Context(), id, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get withdraw request")
		return
	}
	respondWithJSON(w, http.StatusOK, wr)
}

func (h *Handler) handleApproveWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	wr, err := h.svc.ApproveWithdraw(r.Context(), id, actorFrom(r))
	if err != nil {
		respondWithWithdrawError(w, wr, err, "Failed to approve withdrawal")
		return
	}
	respondWithJSON(w, http.StatusOK, wr)
}

func (h *Handler) handleRejectWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req RejectWithdrawRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	wr, err := h.svc.RejectWithdraw(r.Context(), id, actorFrom(r), req.Note)
	if err != nil {
		respondWithServiceError(w, err, "Failed to reject withdrawal")
		return
	}
	respondWithJSON(w, http.StatusOK, wr)
}

func (h *Handler) handleReleasePending(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := uuidParam(w, r, "sellerID")
	if !ok {
		return
	}
	var req AmountRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	wl, err := h.svc.ReleasePending(r.Context(), sellerID, req.Amount, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to release pending balance")
		return
	}
	respondWithJSON(w, http.StatusOK, wl)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := uuidParam(w, r, "sellerID")
	if !ok {
		return
	}
	var req DepositRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	wl, err := h.svc.Deposit(r.Context(), sellerID, req.Amount, actorFrom(r), req.Note)
	if err != nil {
		respondWithServiceError(w, err, "Failed to deposit")
		return
	}
	respondWithJSON(w, http.StatusOK, wl)
}

func (h *Handler) handleBuyerBalance(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	by := actorFrom(r)
	if !by.IsAdmin() && by.ID != buyerID {
		respondWithError(w, http.StatusForbidden, apperr.Permission("balance of buyer %s", buyerID).Error())
		return
	}
	balance, err := h.svc.BuyerBalance(r.Context(), buyerID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get buyer balance")
		return
	}
	respondWithJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

func (h *Handler) handleWalletAudit(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsAdmin() {
		respondWithError(w, http.StatusForbidden, apperr.Permission("wallet audit is admin only").Error())
		return
	}
	discrepancies, err := h.reports.AuditWallets(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to audit wallets")
		return
	}
	respondWithJSON(w, http.StatusOK, discrepancies)
}

func respondWithWithdrawError(w http.ResponseWriter, wr *wallet.WithdrawRequest, err error, fallback string) {
	if wr != nil && errors.Is(err, apperr.ErrInsufficientWalletBalance) {
		respondWithJSON(w, mapErrorToStatusCode(err), WithdrawErrorResponse{Error: err.Error(), Request: wr})
		return
	}
	respondWithServiceError(w, err, fallback)
}
