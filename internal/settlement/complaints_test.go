package settlement_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

func (f *fixture) file(t *testing.T, o *order.Order, productID uuid.UUID) *complaint.Complaint {
	t.Helper()
	it := itemOf(t, o, productID)
	c, err := f.svc.FileComplaint(context.Background(), settlement.FileComplaintInput{
		OrderItemID: it.ID,
		Buyer:       f.buyer,
		Reason:      "arrived broken",
		Media:       []string{"https://cdn.example.com/broken.jpg"},
	})
	require.NoError(t, err)
	return c
}

func TestComplaint_EscalatedAndRefundedByAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.completed(t, f.placeMixed(t))
	f.deposit(t, f.sellerA, "10.00")
	_, err := f.svc.ReleasePending(ctx, f.sellerA.ID, money.Zero, f.admin)
	require.NoError(t, err)
	before := f.wallet(t, f.sellerA)
	require.Equal(t, money.MustParse("28.00"), before.Balance)

	c := f.file(t, o, f.mug)
	assert.Equal(t, complaint.StatusPending, c.Status)
	assert.Equal(t, f.sellerA.ID, c.SellerID)

	disputed := f.order(t, o.ID)
	assert.True(t, disputed.IsDisputed)
	assert.Equal(t, order.ItemStatusRefundRequested, itemOf(t, disputed, f.mug).Status)
	assert.Equal(t, order.ItemStatusNormal, itemOf(t, disputed, f.lamp).Status)

	c, err = f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
		ComplaintID: c.ID,
		Seller:      f.sellerA,
		Decision:    complaint.DecisionReject,
		Response:    "it was fine when shipped",
	})
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusNegotiating, c.Status)
	assert.Equal(t, "it was fine when shipped", c.SellerResponse)
	assert.True(t, f.order(t, o.ID).IsDisputed)

	c, err = f.svc.EscalateComplaint(ctx, c.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusAdminReview, c.Status)

	_, err = f.svc.ResolveComplaint(ctx, c.ID, f.sellerA, complaint.ResolutionRefundBuyer, "")
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	c, err = f.svc.ResolveComplaint(ctx, c.ID, f.admin, complaint.ResolutionRefundBuyer, "photos show damage")
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolvedRefund, c.Status)
	assert.Equal(t, "photos show damage", c.AdminNotes)
	require.NotNil(t, c.ResolvedAt)

	lineTotal := money.MustParse("20.00")
	after := f.wallet(t, f.sellerA)
	assert.Equal(t, before.Balance.Sub(lineTotal), after.Balance)
	assert.Equal(t, before.PendingBalance, after.PendingBalance)

	credited, err := f.svc.BuyerBalance(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, lineTotal, credited)

	settled := f.order(t, o.ID)
	assert.False(t, settled.IsDisputed)
	assert.Equal(t, order.StatusCompleted, settled.Status, "a refund without return leaves the order completed")
	assert.Equal(t, order.ItemStatusRefunded, itemOf(t, settled, f.mug).Status)
	assert.Equal(t, order.ItemStatusNormal, itemOf(t, settled, f.lamp).Status)
	assert.Equal(t, money.MustParse("13.50"), f.wallet(t, f.sellerB).PendingBalance, "the other seller is untouched")

	assert.Equal(t, 1, f.events.count(f.buyer.ID, notify.EventRefundIssued))
	f.requireLedgerIdentity(t)
}

func TestComplaint_NoDoubleRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.completed(t, f.placeMixed(t))
	f.deposit(t, f.sellerB, "50.00")

	c := f.file(t, o, f.lamp)
	c, err := f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
		ComplaintID: c.ID, Seller: f.sellerB, Decision: complaint.DecisionAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolvedRefund, c.Status)

	again, err := f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
		ComplaintID: c.ID, Seller: f.sellerB, Decision: complaint.DecisionAccept,
	})
	require.NoError(t, err, "repeating the resolution is a no-op")
	assert.Equal(t, complaint.StatusResolvedRefund, again.Status)

	statement, err := f.store.Reports().WalletStatement(ctx, f.sellerB.ID)
	require.NoError(t, err)
	refunds := 0
	for _, e := range statement.Entries {
		if e.Type == wallet.TypeRefundDeduct {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
	assert.Equal(t, money.MustParse("-15.00"), statement.Totals[wallet.TypeRefundDeduct])
	assert.Equal(t, money.MustParse("35.00"), f.wallet(t, f.sellerB).Balance)

	credited, err := f.svc.BuyerBalance(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("15.00"), credited)

	_, err = f.svc.FileComplaint(ctx, settlement.FileComplaintInput{
		OrderItemID: itemOf(t, o, f.lamp).ID, Buyer: f.buyer, Reason: "again",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "a refunded item cannot be disputed again")
	f.requireLedgerIdentity(t)
}

func TestComplaint_ReturnFlowMarksOrderReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.delivered(t, f.place(t, settlement.LineInput{ProductID: f.mug, Quantity: 1}))
	f.deposit(t, f.sellerA, "10.00")

	c := f.file(t, o, f.mug)
	c, err := f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
		ComplaintID: c.ID, Seller: f.sellerA, Decision: complaint.DecisionAccept, ReturnRequired: true,
	})
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusWaitingReturn, c.Status)
	assert.True(t, c.ReturnRequired)

	_, err = f.svc.SubmitReturnShipment(ctx, c.ID, f.buyer, complaint.ReturnShipment{Carrier: "DHL"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.ConfirmReturnReceived(ctx, c.ID, f.sellerA)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "nothing has been shipped back yet")

	shipment := complaint.ReturnShipment{Carrier: "DHL", TrackingCode: "JD0001", ProofImageURL: "https://cdn.example.com/label.jpg"}
	c, err = f.svc.SubmitReturnShipment(ctx, c.ID, f.buyer, shipment)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusReturning, c.Status)
	assert.Equal(t, shipment, c.Return)

	c, err = f.svc.ConfirmReturnReceived(ctx, c.ID, f.sellerA)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolvedRefund, c.Status)

	returned := f.order(t, o.ID)
	assert.Equal(t, order.StatusReturned, returned.Status)
	assert.False(t, returned.IsDisputed)
	assert.True(t, f.wallet(t, f.sellerA).Balance.IsZero())
	f.requireLedgerIdentity(t)
}

func TestComplaint_ReturnReviewedByAdmin(t *testing.T) {
	f := newFixture(t, func(c *settlement.Config) { c.ReturnReviewByAdmin = true })
	ctx := context.Background()
	o := f.delivered(t, f.place(t, settlement.LineInput{ProductID: f.mug, Quantity: 1}))

	c := f.file(t, o, f.mug)
	c, err := f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
		ComplaintID: c.ID, Seller: f.sellerA, Decision: complaint.DecisionAccept, ReturnRequired: true,
	})
	require.NoError(t, err)
	_, err = f.svc.SubmitReturnShipment(ctx, c.ID, f.buyer, complaint.ReturnShipment{Carrier: "UPS", TrackingCode: "1Z"})
	require.NoError(t, err)

	c, err = f.svc.ConfirmReturnReceived(ctx, c.ID, f.sellerA)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusAdminReview, c.Status)
	assert.True(t, f.order(t, o.ID).IsDisputed)

	c, err = f.svc.ResolveComplaint(ctx, c.ID, f.admin, complaint.ResolutionReject, "return was empty")
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusResolvedReject, c.Status)

	settled := f.order(t, o.ID)
	assert.False(t, settled.IsDisputed)
	assert.Equal(t, order.StatusDelivered, settled.Status)
	assert.Equal(t, order.ItemStatusRefundRejected, itemOf(t, settled, f.mug).Status)
}

func TestComplaint_DisputeBlocksCompletionUntilCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.delivered(t, f.placeMixed(t))

	first := f.file(t, o, f.mug)
	second := f.file(t, o, f.lamp)

	_, err := f.svc.ConfirmReceived(ctx, o.ID, f.buyer)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = f.svc.CompleteOrder(ctx, o.ID, f.sellerA)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.svc.CancelComplaint(ctx, first.ID, f.sellerA)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.svc.CancelComplaint(ctx, first.ID, f.buyer)
	require.NoError(t, err)
	assert.True(t, f.order(t, o.ID).IsDisputed, "the lamp complaint is still open")

	c, err := f.svc.CancelComplaint(ctx, second.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, complaint.StatusCancelled, c.Status)

	settled := f.order(t, o.ID)
	assert.False(t, settled.IsDisputed)
	assert.Equal(t, order.ItemStatusNormal, itemOf(t, settled, f.mug).Status)

	done, err := f.svc.ConfirmReceived(ctx, o.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, done.Status)

	listed, err := f.svc.ListComplaints(ctx, o.ID, f.buyer)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestFileComplaint_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	shipping := f.placeMixed(t)
	_, err := f.svc.ApproveOrder(ctx, shipping.ID, f.sellerA)
	require.NoError(t, err)
	_, err = f.svc.FileComplaint(ctx, settlement.FileComplaintInput{
		OrderItemID: itemOf(t, shipping, f.mug).ID, Buyer: f.buyer, Reason: "late",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "complaints need a delivered order")

	o := f.delivered(t, f.placeMixed(t))
	mugItem := itemOf(t, o, f.mug).ID

	_, err = f.svc.FileComplaint(ctx, settlement.FileComplaintInput{OrderItemID: mugItem, Buyer: f.buyer})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.FileComplaint(ctx, settlement.FileComplaintInput{OrderItemID: mugItem, Buyer: f.sellerA, Reason: "x"})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	f.file(t, o, f.mug)
	_, err = f.svc.FileComplaint(ctx, settlement.FileComplaintInput{OrderItemID: mugItem, Buyer: f.buyer, Reason: "twice"})
	assert.ErrorIs(t, err, apperr.ErrConflict, "one active complaint per item")
}

func TestRespondComplaint_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("refund_without_return_disabled", func(t *testing.T) {
		f := newFixture(t, func(c *settlement.Config) { c.AllowRefundWithoutReturn = false })
		o := f.delivered(t, f.placeMixed(t))
		c := f.file(t, o, f.mug)

		_, err := f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
			ComplaintID: c.ID, Seller: f.sellerA, Decision: complaint.DecisionAccept,
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("wrong_seller", func(t *testing.T) {
		f := newFixture(t)
		o := f.delivered(t, f.placeMixed(t))
		c := f.file(t, o, f.mug)

		_, err := f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
			ComplaintID: c.ID, Seller: f.sellerB, Decision: complaint.DecisionReject,
		})
		assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	})

	t.Run("refund_exceeds_balance", func(t *testing.T) {
		f := newFixture(t)
		o := f.delivered(t, f.placeMixed(t))
		c := f.file(t, o, f.mug)

		_, err := f.svc.RespondComplaint(ctx, settlement.RespondComplaintInput{
			ComplaintID: c.ID, Seller: f.sellerA, Decision: complaint.DecisionAccept,
		})
		assert.ErrorIs(t, err, apperr.ErrInsufficientWalletBalance)

		stored, err := f.svc.GetComplaint(ctx, c.ID, f.buyer)
		require.NoError(t, err)
		assert.Equal(t, complaint.StatusPending, stored.Status, "a failed refund rolls the transition back")
		assert.True(t, f.order(t, o.ID).IsDisputed)
	})

	t.Run("escalate_requires_rejection", func(t *testing.T) {
		f := newFixture(t)
		o := f.delivered(t, f.placeMixed(t))
		c := f.file(t, o, f.mug)

		_, err := f.svc.EscalateComplaint(ctx, c.ID, f.buyer)
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})
}
