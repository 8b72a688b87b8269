package handler

import (
	"context"
	"net/http"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
)

type OrderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type CreateOrderRequest struct {
	Items         []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=cod wallet card"`
	RecipientName string             `json:"recipient_name" validate:"required"`
	Phone         string             `json:"phone" validate:"required"`
	Address       string             `json:"address" validate:"required"`
	ShippingFee   money.Money        `json:"shipping_fee"`
	PointsUsed    int64              `json:"points_used" validate:"gte=0"`
	VoucherCode   string             `json:"voucher_code"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	by := actorFrom(r)
	if by.Role != actor.RoleBuyer {
		respondWithError(w, http.StatusForbidden, apperr.Permission("only buyers can place orders").Error())
		return
	}

	var req CreateOrderRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := settlement.CreateOrderInput{
		BuyerID:       by.ID,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Shipping: order.ShippingInfo{
			RecipientName: req.RecipientName,
			Phone:         req.Phone,
			Address:       req.Address,
		},
		ShippingFee: req.ShippingFee,
		PointsUsed:  req.PointsUsed,
		VoucherCode: req.VoucherCode,
	}
	for _, line := range req.Items {
		in.Items = append(in.Items, settlement.LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	created, err := h.svc.CreateOrder(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create order")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	o, err := h.svc.GetOrder(r.Context(), id, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

type orderCommand func(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error)

func (h *Handler) runOrderCommand(w http.ResponseWriter, r *http.Request, cmd orderCommand, failure string) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	o, err := cmd(r.Context(), id, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, failure)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *Handler) handleApproveOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderCommand(w, r, h.svc.ApproveOrder, "Failed to approve order")
}

func (h *Handler) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.runOrderCommand(w, r, h.svc.MarkDelivered, "Failed to mark order delivered")
}

func (h *Handler) handleConfirmReceived(w http.ResponseWriter, r *http.Request) {
	h.runOrderCommand(w, r, h.svc.ConfirmReceived, "Failed to confirm order")
}

func (h *Handler) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderCommand(w, r, h.svc.CompleteOrder, "Failed to complete order")
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.runOrderCommand(w, r, h.svc.CancelOrder, "Failed to cancel order")
}
