package handler

import (
	"context"
	"net/http"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
)

type FileComplaintRequest struct {
	Reason string   `json:"reason" validate:"required"`
	Media  []string `json:"media" validate:"omitempty,dive,url"`
}

type RespondComplaintRequest struct {
	Decision       string `json:"decision" validate:"required,oneof=accept reject"`
	ReturnRequired bool   `json:"return_required"`
	Response       string `json:"response"`
}

type ReturnShipmentRequest struct {
	Carrier       string `json:"carrier" validate:"required"`
	TrackingCode  string `json:"tracking_code" validate:"required"`
	ProofImageURL string `json:"proof_image_url" validate:"omitempty,url"`
}

type ResolveComplaintRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=refund_buyer reject"`
	Notes      string `json:"notes"`
}

func (h *Handler) handleFileComplaint(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req FileComplaintRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := h.svc.FileComplaint(r.Context(), settlement.FileComplaintInput{
		OrderItemID: itemID,
		Buyer:       actorFrom(r),
		Reason:      req.Reason,
		Media:       req.Media,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to file complaint")
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGetComplaint(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.GetComplaint(r.Context(), id, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get complaint")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleListComplaints(w http.ResponseWriter, r *http.Request) {
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListComplaints(r.Context(), orderID, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list complaints")
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) handleRespondComplaint(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req RespondComplaintRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := h.svc.RespondComplaint(r.Context(), settlement.RespondComplaintInput{
		ComplaintID:    id,
		Seller:         actorFrom(r),
		Decision:       complaint.Decision(req.Decision),
		ReturnRequired: req.ReturnRequired,
		Response:       req.Response,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to respond to complaint")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleSubmitReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req ReturnShipmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := h.svc.SubmitReturnShipment(r.Context(), id, actorFrom(r), complaint.ReturnShipment{
		Carrier:       req.Carrier,
		TrackingCode:  req.TrackingCode,
		ProofImageURL: req.ProofImageURL,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to submit return shipment")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

type complaintCommand func(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error)

func (h *Handler) runComplaintCommand(w http.ResponseWriter, r *http.Request, cmd complaintCommand, failure string) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := cmd(r.Context(), id, actorFrom(r))
	if err != nil {
		respondWithServiceError(w, err, failure)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleConfirmReturn(w http.ResponseWriter, r *http.Request) {
	h.runComplaintCommand(w, r, h.svc.ConfirmReturnReceived, "Failed to confirm returned goods")
}

func (h *Handler) handleEscalateComplaint(w http.ResponseWriter, r *http.Request) {
	h.runComplaintCommand(w, r, h.svc.EscalateComplaint, "Failed to escalate complaint")
}

func (h *Handler) handleCancelComplaint(w http.ResponseWriter, r *http.Request) {
	h.runComplaintCommand(w, r, h.svc.CancelComplaint, "Failed to cancel complaint")
}

func (h *Handler) handleResolveComplaint(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req ResolveComplaintRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	c, err := h.svc.ResolveComplaint(r.Context(), id, actorFrom(r), complaint.Resolution(req.Resolution), req.Notes)
	if err != nil {
		respondWithServiceError(w, err, "Failed to resolve complaint")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}
