package settlement_test

import (
	"context"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/inventory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/notify"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/storage/memory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

type delivery struct {
	userID uuid.UUID
	event  notify.Event
}

type recorder struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (r *recorder) Notify(_ context.Context, userID uuid.UUID, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, delivery{userID: userID, event: e})
	return nil
}

func (r *recorder) count(userID uuid.UUID, typ notify.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.deliveries {
		if d.userID == userID && d.event.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	store  *memory.Store
	svc    settlement.Service
	events *recorder

	buyer   actor.Actor
	sellerA actor.Actor
	sellerB actor.Actor
	admin   actor.Actor

	// mug is sold by sellerA at 10.00, lamp by sellerB at 15.00.
	mug  uuid.UUID
	lamp uuid.UUID
}

func newFixture(t *testing.T, configure ...func(*settlement.Config)) *fixture {
	t.Helper()
	cfg := settlement.DefaultConfig()
	for _, c := range configure {
		c(&cfg)
	}

	f := &fixture{
		store:   memory.New(),
		events:  &recorder{},
		buyer:   actor.Buyer(uuid.Must(uuid.NewV4())),
		sellerA: actor.Seller(uuid.Must(uuid.NewV4())),
		sellerB: actor.Seller(uuid.Must(uuid.NewV4())),
		admin:   actor.Admin(uuid.Must(uuid.NewV4())),
	}
	f.svc = settlement.NewService(f.store, f.events, cfg)
	f.mug = f.addProduct(f.sellerA, "10.00", 10)
	f.lamp = f.addProduct(f.sellerB, "15.00", 10)
	return f
}

func (f *fixture) addProduct(seller actor.Actor, price string, stock int) uuid.UUID {
	return f.store.AddProduct(inventoryProduct(seller, price, stock))
}

func inventoryProduct(seller actor.Actor, price string, stock int) inventory.Product {
	return inventory.Product{
		SellerID: seller.ID,
		Name:     "product " + price,
		Price:    money.MustParse(price),
		Stock:    stock,
	}
}

func (f *fixture) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	p, err := f.store.Read().Products.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) order(t *testing.T, id uuid.UUID) *order.Order {
	t.Helper()
	o, err := f.svc.GetOrder(context.Background(), id, f.admin)
	require.NoError(t, err)
	return o
}

func (f *fixture) wallet(t *testing.T, seller actor.Actor) *wallet.Wallet {
	t.Helper()
	w, err := f.svc.GetWallet(context.Background(), seller.ID, seller)
	require.NoError(t, err)
	return w
}

func (f *fixture) place(t *testing.T, lines ...settlement.LineInput) *order.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), settlement.CreateOrderInput{
		BuyerID:       f.buyer.ID,
		Items:         lines,
		PaymentMethod: order.PaymentCOD,
		Shipping:      order.ShippingInfo{RecipientName: "Test Buyer", Phone: "+100000000", Address: "1 Main St"},
		ShippingFee:   money.MustParse("5.00"),
	})
	require.NoError(t, err)
	return o
}

// placeMixed is the two-seller order: 2 mugs and 1 lamp.
func (f *fixture) placeMixed(t *testing.T) *order.Order {
	t.Helper()
	return f.place(t,
		settlement.LineInput{ProductID: f.mug, Quantity: 2},
		settlement.LineInput{ProductID: f.lamp, Quantity: 1},
	)
}

func (f *fixture) delivered(t *testing.T, o *order.Order) *order.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.ApproveOrder(ctx, o.ID, f.sellerA)
	require.NoError(t, err)
	o, err = f.svc.MarkDelivered(ctx, o.ID, f.sellerA)
	require.NoError(t, err)
	return o
}

func (f *fixture) completed(t *testing.T, o *order.Order) *order.Order {
	t.Helper()
	f.delivered(t, o)
	o, err := f.svc.ConfirmReceived(context.Background(), o.ID, f.buyer)
	require.NoError(t, err)
	return o
}

func (f *fixture) deposit(t *testing.T, seller actor.Actor, amount string) {
	t.Helper()
	_, err := f.svc.Deposit(context.Background(), seller.ID, money.MustParse(amount), f.admin, "test funding")
	require.NoError(t, err)
}

// requireLedgerIdentity fails when any wallet disagrees with its transactions.
func (f *fixture) requireLedgerIdentity(t *testing.T) {
	t.Helper()
	drift, err := f.store.Reports().AuditWallets(context.Background())
	require.NoError(t, err)
	require.Empty(t, drift)
}

func itemOf(t *testing.T, o *order.Order, productID uuid.UUID) order.Item {
	t.Helper()
	for _, it := range o.Items {
		if it.ProductID.Valid && it.ProductID.UUID == productID {
			return it
		}
	}
	t.Fatalf("order %s has no item for product %s", o.ID, productID)
	return order.Item{}
}
