package settlement

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/inventory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
)

type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type CreateOrderInput struct {
	BuyerID       uuid.UUID
	Items         []LineInput
	PaymentMethod order.PaymentMethod
	Shipping      order.ShippingInfo
	ShippingFee   money.Money
	PointsUsed    int64
	VoucherCode   string
}

func (in CreateOrderInput) validate() error {
	if in.BuyerID == uuid.Nil {
		return apperr.Validation("buyer id is required")
	}
	if len(in.Items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	for _, line := range in.Items {
		if line.ProductID == uuid.Nil {
			return apperr.Validation("product id in order item cannot be nil")
		}
		if line.Quantity <= 0 {
			return apperr.Validation("quantity for product %s must be greater than zero", line.ProductID)
		}
	}
	switch in.PaymentMethod {
	case order.PaymentCOD, order.PaymentWallet, order.PaymentCard:
	default:
		return apperr.Validation("unknown payment method %q", in.PaymentMethod)
	}
	if in.ShippingFee.IsNegative() {
		return apperr.Validation("shipping fee cannot be negative")
	}
	return nil
}

// CreateOrder snapshots catalog prices into a pending order. Stock is not
// touched until the order is approved.
func (s *service) CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error) {
	if err := in.validate(); err != nil {
		log.Warn().Err(err).Stringer("buyer_id", in.BuyerID).Msg("settlement: rejected order input")
		return nil, err
	}

	var created *order.Order
	err := s.inTx(ctx, func(ctx context.Context, t *txn) error {
		o := &order.Order{
			BuyerID:       in.BuyerID,
			Shipping:      in.Shipping,
			PaymentMethod: in.PaymentMethod,
			ShippingFee:   in.ShippingFee,
			PointsUsed:    in.PointsUsed,
			VoucherCode:   in.VoucherCode,
			Status:        order.StatusPending,
		}
		for _, line := range in.Items {
			p, err := t.Products.GetProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if p.IsDeleted {
				return fmt.Errorf("product %s: %w", p.ID, inventory.ErrProductNotFound)
			}
			qty, err := money.NewQuantity(line.Quantity)
			if err != nil {
				return apperr.Validation("%v", err)
			}
			o.Items = append(o.Items, order.Item{
				ProductID:   uuid.NullUUID{UUID: p.ID, Valid: true},
				SellerID:    p.SellerID,
				ProductName: p.Name,
				Price:       p.Price,
				Quantity:    qty,
				Status:      order.ItemStatusNormal,
			})
		}
		o.TotalPrice = o.Subtotal().Add(o.ShippingFee)

		if err := t.Orders.Create(ctx, o); err != nil {
			return err
		}
		if err := t.rewards().Spend(ctx, o.BuyerID, o.ID, o.PointsUsed, o.VoucherCode); err != nil {
			return err
		}

		event := notify.Event{Type: notify.EventOrderCreated, OrderID: o.ID, To: o.Status.String(), Amount: o.TotalPrice.String()}
		t.notify(o.BuyerID, event)
		for _, sellerID := range o.SellerIDs() {
			t.notify(sellerID, event)
		}
		created = o
		return nil
	})
	if err != nil {
		log.Error().Err(err).Stringer("buyer_id", in.BuyerID).Msg("settlement: failed to create order")
		return nil, err
	}

	log.Info().Stringer("order_id", created.ID).Stringer("buyer_id", created.BuyerID).
		Stringer("total_price", created.TotalPrice).Msg("settlement: order created")
	return created, nil
}

// ApproveOrder moves pending -> shipping and reserves stock in the same
// transaction. An order that is already shipping is returned unchanged.
func (s *service) ApproveOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error) {
	return s.moveOrder(ctx, orderID, by, order.StatusShipping, nil, requireOrderSeller,
		func(ctx context.Context, t *txn, o *order.Order) error {
			_, err := t.stock().ReserveStock(ctx, o)
			return err
		})
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error) {
	return s.moveOrder(ctx, orderID, by, order.StatusDelivered, nil, requireOrderSeller, nil)
}

// ConfirmReceived is the buyer's delivered -> completed.
func (s *service) ConfirmReceived(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error) {
	return s.moveOrder(ctx, orderID, by, order.StatusCompleted, []order.Status{order.StatusDelivered},
		requireOrderBuyer, completeEffects)
}

// CompleteOrder is the seller's shipping/delivered -> completed.
func (s *service) CompleteOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error) {
	return s.moveOrder(ctx, orderID, by, order.StatusCompleted, nil, requireOrderSeller, completeEffects)
}

// CancelOrder gives back points and vouchers. Stock already reserved by an
// approval stays deducted.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error) {
	return s.moveOrder(ctx, orderID, by, order.StatusCancelled, nil, requireOrderParty,
		func(ctx context.Context, t *txn, o *order.Order) error {
			_, err := t.rewards().Restore(ctx, o.ID)
			return err
		})
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, by actor.Actor) (*order.Order, error) {
	o, err := s.runner.Read().Orders.GetByID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			log.Error().Err(err).Stringer("order_id", orderID).Msg("settlement: failed to fetch order")
		}
		return nil, err
	}
	if err := requireOrderParty(by, o); err != nil {
		return nil, err
	}
	return o, nil
}

// completeEffects reserves stock if an approval never did, bumps sold
// counters and accrues seller income, all in the completing transaction.
func completeEffects(ctx context.Context, t *txn, o *order.Order) error {
	if _, err := t.stock().ReserveStock(ctx, o); err != nil {
		return err
	}
	if err := t.stock().CountSold(ctx, o); err != nil {
		return err
	}
	accruals, err := t.ledger().AccruePendingIncome(ctx, o)
	if err != nil {
		return err
	}
	for _, a := range accruals {
		t.notify(a.SellerID, notify.Event{Type: notify.EventIncomeAccrued, OrderID: o.ID, Amount: a.Net.String()})
	}
	return nil
}

type orderEffects func(ctx context.Context, t *txn, o *order.Order) error

// moveOrder locks the order, authorizes the actor, applies the transition
// and runs effects before persisting. allowedFrom narrows the state machine
// for commands that only accept some source states.
func (s *service) moveOrder(
	ctx context.Context,
	orderID uuid.UUID,
	by actor.Actor,
	to order.Status,
	allowedFrom []order.Status,
	authorize func(actor.Actor, *order.Order) error,
	effects orderEffects,
) (*order.Order, error) {
	var result *order.Order
	err := s.inTx(ctx, func(ctx context.Context, t *txn) error {
		o, err := t.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(by, o); err != nil {
			return err
		}
		from := o.Status
		if from != to && allowedFrom != nil && !slices.Contains(allowedFrom, from) {
			return &apperr.TransitionError{Entity: "order", From: from.String(), To: to.String()}
		}
		if err := o.TransitionTo(to); err != nil {
			if errors.Is(err, apperr.ErrAlreadyProcessed) {
				log.Info().Stringer("order_id", o.ID).Stringer("status", to).Msg("settlement: order already in requested status")
				result = o
				return nil
			}
			return err
		}
		if effects != nil {
			if err := effects(ctx, t, o); err != nil {
				return err
			}
		}
		if err := t.Orders.Update(ctx, o); err != nil {
			return err
		}
		notifyOrderParties(t, o, from)
		result = o
		return nil
	})
	if err != nil {
		logCommandError(err, "order", orderID, string(to))
		return nil, err
	}
	return result, nil
}

func notifyOrderParties(t *txn, o *order.Order, from order.Status) {
	event := notify.Event{Type: notify.EventOrderStatusChanged, OrderID: o.ID, From: from.String(), To: o.Status.String()}
	t.notify(o.BuyerID, event)
	for _, sellerID := range o.SellerIDs() {
		t.notify(sellerID, event)
	}
}

// logCommandError logs expected business rejections at Warn and everything
// else at Error.
func logCommandError(err error, entity string, id uuid.UUID, target string) {
	ev := log.Error()
	for _, expected := range []error{
		apperr.ErrInvalidTransition,
		apperr.ErrInsufficientStock,
		apperr.ErrInsufficientWalletBalance,
		apperr.ErrPermissionDenied,
		apperr.ErrNotFound,
		apperr.ErrValidation,
		apperr.ErrConflict,
	} {
		if errors.Is(err, expected) {
			ev = log.Warn()
			break
		}
	}
	ev.Err(err).Str("entity", entity).Stringer("id", id).Str("target", target).Msg("settlement: command rejected")
}
