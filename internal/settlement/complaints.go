package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

type FileComplaintInput struct {
	OrderItemID uuid.UUID
	Buyer       actor.Actor
	Reason      string
	Media       []string
}

type RespondComplaintInput struct {
	ComplaintID    uuid.UUID
	Seller         actor.Actor
	Decision       complaint.Decision
	ReturnRequired bool
	Response       string
}

// FileComplaint opens a dispute on one item and marks its order disputed.
func (s *service) FileComplaint(ctx context.Context, in FileComplaintInput) (*complaint.Complaint, error) {
	if in.Reason == "" {
		return nil, apperr.Validation("complaint reason is required")
	}
	item, err := s.runner.Read().Orders.GetItem(ctx, in.OrderItemID)
	if err != nil {
		return nil, err
	}

	var filed *complaint.Complaint
	err = s.inTx(ctx, func(ctx context.Context, t *txn) error {
		o, err := t.Orders.GetForUpdate(ctx, item.OrderID)
		if err != nil {
			return err
		}
		if in.Buyer.Role != actor.RoleBuyer || in.Buyer.ID != o.BuyerID {
			return apperr.Permission("only the buyer of order %s may file a complaint", o.ID)
		}
		if o.Status != order.StatusDelivered && o.Status != order.StatusCompleted {
			return &apperr.TransitionError{
				Entity: "order", From: o.Status.String(), To: "disputed",
				Reason: "complaints require a delivered or completed order",
			}
		}
		it, ok := o.Item(in.OrderItemID)
		if !ok {
			return order.ErrItemNotFound
		}
		if it.Status == order.ItemStatusRefunded {
			return &apperr.TransitionError{
				Entity: "order item", From: it.Status.String(), To: order.ItemStatusRefundRequested.String(),
				Reason: "item already refunded",
			}
		}
		active, err := t.Complaints.HasActiveForItem(ctx, it.ID)
		if err != nil {
			return err
		}
		if active {
			return complaint.ErrActiveComplaintExists
		}

		c := &complaint.Complaint{
			OrderItemID: it.ID,
			OrderID:     o.ID,
			BuyerID:     o.BuyerID,
			SellerID:    it.SellerID,
			Reason:      in.Reason,
			Media:       append([]string(nil), in.Media...),
			Status:      complaint.StatusPending,
		}
		if err := t.Complaints.Create(ctx, c); err != nil {
			return err
		}
		if err := t.Orders.UpdateItemStatus(ctx, it.ID, order.ItemStatusRefundRequested); err != nil {
			return err
		}
		it.Status = order.ItemStatusRefundRequested
		if !o.IsDisputed {
			o.IsDisputed = true
			if err := t.Orders.Update(ctx, o); err != nil {
				return err
			}
		}

		event := notify.Event{Type: notify.EventComplaintFiled, OrderID: o.ID, ComplaintID: c.ID, To: c.Status.String()}
		t.notify(c.SellerID, event)
		t.notify(c.BuyerID, event)
		filed = c
		return nil
	})
	if err != nil {
		logCommandError(err, "order_item", in.OrderItemID, string(complaint.StatusPending))
		return nil, err
	}
	log.Info().Stringer("complaint_id", filed.ID).Stringer("order_id", filed.OrderID).Msg("settlement: complaint filed")
	return filed, nil
}

// RespondComplaint records the seller's answer to a pending complaint.
func (s *service) RespondComplaint(ctx context.Context, in RespondComplaintInput) (*complaint.Complaint, error) {
	var to complaint.Status
	switch {
	case in.Decision == complaint.DecisionReject:
		to = complaint.StatusNegotiating
	case in.Decision == complaint.DecisionAccept && in.ReturnRequired:
		to = complaint.StatusWaitingReturn
	case in.Decision == complaint.DecisionAccept:
		if !s.cfg.AllowRefundWithoutReturn {
			return nil, apperr.Validation("refunds without a return are disabled; accept with return instead")
		}
		to = complaint.StatusResolvedRefund
	default:
		return nil, apperr.Validation("unknown decision %q", in.Decision)
	}

	return s.moveComplaint(ctx, in.ComplaintID, to, func(c *complaint.Complaint) error {
		if err := requireComplaintSeller(in.Seller, c); err != nil {
			return err
		}
		if c.Status != complaint.StatusPending && c.Status != to {
			return &apperr.TransitionError{Entity: "complaint", From: c.Status.String(), To: to.String(), Reason: "seller already responded"}
		}
		if c.Status == complaint.StatusPending {
			c.SellerResponse = in.Response
			c.ReturnRequired = to == complaint.StatusWaitingReturn
		}
		return nil
	})
}

// SubmitReturnShipment is the buyer's waiting_return -> returning.
func (s *service) SubmitReturnShipment(ctx context.Context, complaintID uuid.UUID, by actor.Actor, shipment complaint.ReturnShipment) (*complaint.Complaint, error) {
	if shipment.Carrier == "" || shipment.TrackingCode == "" {
		return nil, apperr.Validation("return carrier and tracking code are required")
	}
	return s.moveComplaint(ctx, complaintID, complaint.StatusReturning, func(c *complaint.Complaint) error {
		if err := requireComplaintBuyer(by, c); err != nil {
			return err
		}
		if c.Status == complaint.StatusWaitingReturn {
			c.Return = shipment
		}
		return nil
	})
}

// ConfirmReturnReceived is the seller's acknowledgement of returned goods.
// It refunds immediately unless returns are routed through admin review.
func (s *service) ConfirmReturnReceived(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error) {
	to := complaint.StatusResolvedRefund
	if s.cfg.ReturnReviewByAdmin {
		to = complaint.StatusAdminReview
	}
	return s.moveComplaint(ctx, complaintID, to, func(c *complaint.Complaint) error {
		if err := requireComplaintSeller(by, c); err != nil {
			return err
		}
		if c.Status != complaint.StatusReturning && c.Status != to {
			return &apperr.TransitionError{Entity: "complaint", From: c.Status.String(), To: to.String(), Reason: "no return in transit"}
		}
		return nil
	})
}

// EscalateComplaint hands a rejected complaint to an admin.
func (s *service) EscalateComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error) {
	return s.moveComplaint(ctx, complaintID, complaint.StatusAdminReview, func(c *complaint.Complaint) error {
		if err := requireComplaintBuyer(by, c); err != nil {
			return err
		}
		if c.Status != complaint.StatusNegotiating && c.Status != complaint.StatusAdminReview {
			return &apperr.TransitionError{
				Entity: "complaint", From: c.Status.String(), To: complaint.StatusAdminReview.String(),
				Reason: "only a rejected complaint can be escalated",
			}
		}
		return nil
	})
}

// CancelComplaint withdraws the complaint. Accepting a seller's rejection is
// the same command.
func (s *service) CancelComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error) {
	return s.moveComplaint(ctx, complaintID, complaint.StatusCancelled, func(c *complaint.Complaint) error {
		return requireComplaintBuyer(by, c)
	})
}

// ResolveComplaint is the admin's final ruling on a complaint under review.
func (s *service) ResolveComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor, resolution complaint.Resolution, notes string) (*complaint.Complaint, error) {
	var to complaint.Status
	switch resolution {
	case complaint.ResolutionRefundBuyer:
		to = complaint.StatusResolvedRefund
	case complaint.ResolutionReject:
		to = complaint.StatusResolvedReject
	default:
		return nil, apperr.Validation("unknown resolution %q", resolution)
	}
	return s.moveComplaint(ctx, complaintID, to, func(c *complaint.Complaint) error {
		if err := requireAdmin(by); err != nil {
			return err
		}
		if c.Status != complaint.StatusAdminReview && c.Status != to {
			return &apperr.TransitionError{
				Entity: "complaint", From: c.Status.String(), To: to.String(),
				Reason: "only complaints under admin review can be resolved",
			}
		}
		if c.Status == complaint.StatusAdminReview {
			c.AdminNotes = notes
		}
		return nil
	})
}

func (s *service) GetComplaint(ctx context.Context, complaintID uuid.UUID, by actor.Actor) (*complaint.Complaint, error) {
	c, err := s.runner.Read().Complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if err := requireComplaintParty(by, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListComplaints returns the complaints of an order. A seller sees only the
// complaints against their own items.
func (s *service) ListComplaints(ctx context.Context, orderID uuid.UUID, by actor.Actor) ([]complaint.Complaint, error) {
	reads := s.runner.Read()
	o, err := reads.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireOrderParty(by, o); err != nil {
		return nil, err
	}
	list, err := reads.Complaints.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if by.Role != actor.RoleSeller {
		return list, nil
	}
	own := make([]complaint.Complaint, 0, len(list))
	for _, c := range list {
		if c.SellerID == by.ID {
			own = append(own, c)
		}
	}
	return own, nil
}

// moveComplaint locks the parent order then the complaint, lets prepare
// authorize and annotate, applies the transition, and runs the refund and
// dispute-unlock effects of terminal states. Re-applying the current status
// returns the complaint unchanged.
func (s *service) moveComplaint(ctx context.Context, complaintID uuid.UUID, to complaint.Status, prepare func(c *complaint.Complaint) error) (*complaint.Complaint, error) {
	head, err := s.runner.Read().Complaints.GetByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}

	var result *complaint.Complaint
	err = s.inTx(ctx, func(ctx context.Context, t *txn) error {
		o, err := t.Orders.GetForUpdate(ctx, head.OrderID)
		if err != nil {
			return err
		}
		c, err := t.Complaints.GetForUpdate(ctx, complaintID)
		if err != nil {
			return err
		}
		if err := prepare(c); err != nil {
			return err
		}

		from := c.Status
		if err := c.TransitionTo(to, s.now()); err != nil {
			if errors.Is(err, apperr.ErrAlreadyProcessed) {
				log.Info().Stringer("complaint_id", c.ID).Stringer("status", to).Msg("settlement: complaint already in requested status")
				result = c
				return nil
			}
			return err
		}

		if to == complaint.StatusResolvedRefund {
			if err := s.refund(ctx, t, o, c); err != nil {
				return err
			}
		}
		if err := t.Complaints.Update(ctx, c); err != nil {
			return err
		}
		if to.IsTerminal() {
			if err := s.settleDispute(ctx, t, o, c); err != nil {
				return err
			}
		}

		event := notify.Event{
			Type: notify.EventComplaintStatusChanged, OrderID: c.OrderID, ComplaintID: c.ID,
			From: from.String(), To: c.Status.String(),
		}
		t.notify(c.BuyerID, event)
		t.notify(c.SellerID, event)
		result = c
		return nil
	})
	if err != nil {
		logCommandError(err, "complaint", complaintID, string(to))
		return nil, err
	}
	log.Info().Stringer("complaint_id", result.ID).Stringer("status", result.Status).Msg("settlement: complaint updated")
	return result, nil
}

// refund debits the seller for the disputed line and credits the buyer.
// When the complaint involved a physical return and every line is now
// refunded, the order itself becomes returned.
func (s *service) refund(ctx context.Context, t *txn, o *order.Order, c *complaint.Complaint) error {
	it, ok := o.Item(c.OrderItemID)
	if !ok {
		return fmt.Errorf("settlement: complaint %s references item %s outside order %s: %w",
			c.ID, c.OrderItemID, o.ID, order.ErrItemNotFound)
	}
	amount := it.LineTotal()
	_, err := t.ledger().RefundDebit(ctx, wallet.Refund{
		SellerID:    c.SellerID,
		BuyerID:     c.BuyerID,
		OrderID:     o.ID,
		ComplaintID: c.ID,
		Amount:      amount,
	})
	if err != nil {
		return err
	}
	if err := t.Orders.UpdateItemStatus(ctx, it.ID, order.ItemStatusRefunded); err != nil {
		return err
	}
	it.Status = order.ItemStatusRefunded

	refunded := notify.Event{Type: notify.EventRefundIssued, OrderID: o.ID, ComplaintID: c.ID, Amount: amount.String()}
	t.notify(c.BuyerID, refunded)
	t.notify(c.SellerID, refunded)

	if c.ReturnRequired && o.AllItemsRefunded() && order.CanTransition(o.Status, order.StatusReturned) {
		from := o.Status
		if err := o.TransitionTo(order.StatusReturned); err != nil {
			return err
		}
		if err := t.Orders.Update(ctx, o); err != nil {
			return err
		}
		notifyOrderParties(t, o, from)
	}
	return nil
}

// settleDispute runs after every terminal complaint transition: it records
// the item outcome and clears the order's dispute flag once no active
// complaint remains on the order.
func (s *service) settleDispute(ctx context.Context, t *txn, o *order.Order, c *complaint.Complaint) error {
	var itemStatus order.ItemStatus
	switch c.Status {
	case complaint.StatusResolvedReject:
		itemStatus = order.ItemStatusRefundRejected
	case complaint.StatusCancelled:
		itemStatus = order.ItemStatusNormal
	}
	if itemStatus != "" {
		if err := t.Orders.UpdateItemStatus(ctx, c.OrderItemID, itemStatus); err != nil {
			return err
		}
		if it, ok := o.Item(c.OrderItemID); ok {
			it.Status = itemStatus
		}
	}

	remaining, err := t.Complaints.CountActiveForOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	if remaining == 0 && o.IsDisputed {
		o.IsDisputed = false
		if err := t.Orders.Update(ctx, o); err != nil {
			return err
		}
		log.Info().Stringer("order_id", o.ID).Msg("settlement: dispute lock released")
	}
	return nil
}
