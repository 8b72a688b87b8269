// Package memory is an in-process implementation of every settlement
// repository. Transactions are serialised by one mutex and run against a
// copy of the state that is swapped in only when the transaction succeeds.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/inventory"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/money"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/rewards"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/settlement"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/wallet"
)

type state struct {
	orders     map[uuid.UUID]order.Order
	orderItems map[uuid.UUID][]uuid.UUID
	items      map[uuid.UUID]order.Item
	products   map[uuid.UUID]inventory.Product
	complaints map[uuid.UUID]complaint.Complaint
	wallets    map[uuid.UUID]wallet.Wallet // keyed by seller
	txns       []wallet.Transaction
	withdraws  map[uuid.UUID]wallet.WithdrawRequest
	buyers     map[uuid.UUID]money.Money
	points     map[uuid.UUID]int64
	usages     map[uuid.UUID]rewards.Usage
	vouchers   map[string]int64
}

func newState() *state {
	return &state{
		orders:     make(map[uuid.UUID]order.Order),
		orderItems: make(map[uuid.UUID][]uuid.UUID),
		items:      make(map[uuid.UUID]order.Item),
		products:   make(map[uuid.UUID]inventory.Product),
		complaints: make(map[uuid.UUID]complaint.Complaint),
		wallets:    make(map[uuid.UUID]wallet.Wallet),
		withdraws:  make(map[uuid.UUID]wallet.WithdrawRequest),
		buyers:     make(map[uuid.UUID]money.Money),
		points:     make(map[uuid.UUID]int64),
		usages:     make(map[uuid.UUID]rewards.Usage),
		vouchers:   make(map[string]int64),
	}
}

// clone copies every map. Stored values never share mutable memory with
// callers, so a shallow copy per map is enough; slices are replaced, never
// appended to in place.
func (s *state) clone() *state {
	return &state{
		orders:     maps.Clone(s.orders),
		orderItems: maps.Clone(s.orderItems),
		items:      maps.Clone(s.items),
		products:   maps.Clone(s.products),
		complaints: maps.Clone(s.complaints),
		wallets:    maps.Clone(s.wallets),
		txns:       s.txns[:len(s.txns):len(s.txns)],
		withdraws:  maps.Clone(s.withdraws),
		buyers:     maps.Clone(s.buyers),
		points:     maps.Clone(s.points),
		usages:     maps.Clone(s.usages),
		vouchers:   maps.Clone(s.vouchers),
	}
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

var _ settlement.TxRunner = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, r settlement.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, reposFor(view{st: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Read() settlement.Repos {
	return reposFor(view{store: s})
}

func reposFor(v view) settlement.Repos {
	return settlement.Repos{
		Orders:     orderRepo{v},
		Products:   productRepo{v},
		Complaints: complaintRepo{v},
		Wallets:    walletRepo{v},
		Rewards:    rewardsRepo{v},
	}
}

// view resolves the state a repository call operates on: the working copy of
// an open transaction, or the committed state under the store mutex.
type view struct {
	store *Store
	st    *state
}

func (v view) with(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

// AddProduct seeds the catalog and returns the product id.
func (s *Store) AddProduct(p inventory.Product) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = newID()
	}
	s.st.products[p.ID] = p
	return p.ID
}

// DeleteProduct soft-deletes a catalog product.
func (s *Store) DeleteProduct(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.st.products[id]; ok {
		p.IsDeleted = true
		s.st.products[id] = p
	}
}

// GrantPoints seeds a user's loyalty points.
func (s *Store) GrantPoints(userID uuid.UUID, points int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.points[userID] += points
}

func (s *Store) Points(userID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.points[userID]
}

// VoucherRedemptions reports how many live orders used the voucher code.
func (s *Store) VoucherRedemptions(code string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.vouchers[code]
}

func newID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}
