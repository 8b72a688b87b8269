package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/report"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
)

type Handler struct {
	svc      settlement.Service
	reports  report.Reader
	validate *validator.Validate
}

func NewHandler(svc settlement.Service, reports report.Reader) *Handler {
	return &Handler{
		svc:      svc,
		reports:  reports,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(identify)

		r.Post("/orders", h.handleCreateOrder)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Post("/orders/{id}/approve", h.handleApproveOrder)
		r.Post("/orders/{id}/deliver", h.handleMarkDelivered)
		r.Post("/orders/{id}/confirm", h.handleConfirmReceived)
		r.Post("/orders/{id}/complete", h.handleCompleteOrder)
		r.Post("/orders/{id}/cancel", h.handleCancelOrder)
		r.Get("/orders/{id}/complaints", h.handleListComplaints)

		r.Post("/order-items/{id}/complaints", h.handleFileComplaint)
		r.Get("/complaints/{id}", h.handleGetComplaint)
		r.Post("/complaints/{id}/respond", h.handleRespondComplaint)
		r.Post("/complaints/{id}/return-shipment", h.handleSubmitReturn)
		r.Post("/complaints/{id}/confirm-return", h.handleConfirmReturn)
		r.Post("/complaints/{id}/escalate", h.handleEscalateComplaint)
		r.Post("/complaints/{id}/cancel", h.handleCancelComplaint)
		r.Post("/complaints/{id}/resolve", h.handleResolveComplaint)

		r.Get("/wallets/{sellerID}", h.handleGetWallet)
		r.Get("/wallets/{sellerID}/statement", h.handleWalletStatement)
		r.Post("/wallets/{sellerID}/withdrawals", h.handleRequestWithdraw)
		r.Post("/wallets/{sellerID}/release", h.handleReleasePending)
		r.Post("/wallets/{sellerID}/deposits", h.handleDeposit)
		r.Get("/withdrawals/{id}", h.handleGetWithdraw)
		r.Post("/withdrawals/{id}/approve", h.handleApproveWithdraw)
		r.Post("/withdrawals/{id}/reject", h.handleRejectWithdraw)
		r.Get("/buyers/{id}/balance", h.handleBuyerBalance)

		r.Get("/admin/wallet-audit", h.handleWalletAudit)
	})
}
