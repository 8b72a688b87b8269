package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/handler"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/inventory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/storage/memory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

func TestHandler_ReadsRequireOwnership(t *testing.T) {
	store := memory.New()
	svc := settlement.NewService(store, nil, settlement.DefaultConfig())
	router := chi.NewRouter()
	handler.NewHandler(svc, store.Reports()).RegisterRoutes(router)
	ctx := context.Background()

	buyer := actor.Buyer(newID())
	seller := actor.Seller(newID())
	admin := actor.Admin(newID())
	mug := store.AddProduct(inventory.Product{SellerID: seller.ID, Name: "mug", Price: money.MustParse("10.00"), Stock: 5})

	o, err := svc.CreateOrder(ctx, settlement.CreateOrderInput{
		BuyerID:       buyer.ID,
		Items:         []settlement.LineInput{{ProductID: mug, Quantity: 1}},
		PaymentMethod: order.PaymentCOD,
		Shipping:      order.ShippingInfo{RecipientName: "Test Buyer", Phone: "+100000000", Address: "1 Main St"},
	})
	require.NoError(t, err)
	_, err = svc.ApproveOrder(ctx, o.ID, seller)
	require.NoError(t, err)
	_, err = svc.MarkDelivered(ctx, o.ID, seller)
	require.NoError(t, err)
	c, err := svc.FileComplaint(ctx, settlement.FileComplaintInput{
		OrderItemID: o.Items[0].ID, Buyer: buyer, Reason: "arrived broken",
	})
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, seller.ID, money.MustParse("20.00"), admin, "test funding")
	require.NoError(t, err)
	wr, err := svc.RequestWithdraw(ctx, seller.ID, money.MustParse("12.00"), seller)
	require.NoError(t, err)

	paths := map[string]struct {
		path    string
		parties []actor.Actor
	}{
		"order":      {path: "/orders/" + o.ID.String(), parties: []actor.Actor{buyer, seller, admin}},
		"complaints": {path: "/orders/" + o.ID.String() + "/complaints", parties: []actor.Actor{buyer, seller, admin}},
		"complaint":  {path: "/complaints/" + c.ID.String(), parties: []actor.Actor{buyer, seller, admin}},
		"wallet":     {path: "/wallets/" + seller.ID.String(), parties: []actor.Actor{seller, admin}},
		"withdrawal": {path: "/withdrawals/" + wr.ID.String(), parties: []actor.Actor{seller, admin}},
	}
	outsiders := []actor.Actor{actor.Buyer(newID()), actor.Seller(newID())}

	for name, tc := range paths {
		t.Run(name, func(t *testing.T) {
			for _, by := range tc.parties {
				rr := serve(router, http.MethodGet, tc.path, by, "")
				assert.Equal(t, http.StatusOK, rr.Code, "%s: %s", by.Role, rr.Body.String())
			}
			for _, by := range outsiders {
				rr := serve(router, http.MethodGet, tc.path, by, "")
				assert.Equal(t, http.StatusForbidden, rr.Code, "%s: %s", by.Role, rr.Body.String())
			}
		})
	}

	t.Run("buyer cannot read a wallet", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/wallets/"+seller.ID.String(), buyer, "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestHandler_handleGetWallet_PassesActor(t *testing.T) {
	mockService := new(MockService)
	router := newRouter(mockService, new(MockReader))
	seller := actor.Seller(newID())

	mockService.On("GetWallet", mock.Anything, seller.ID, seller).
		Return(&wallet.Wallet{ID: newID(), SellerID: seller.ID, Balance: money.MustParse("8.00")}, nil).Once()

	rr := serve(router, http.MethodGet, "/wallets/"+seller.ID.String(), seller, "")

	assert.Equal(t, http.StatusOK, rr.Code)
	mockService.AssertExpectations(t)
}
