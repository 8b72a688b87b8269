package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
)

type orderRepo struct{ v view }

func (r orderRepo) Create(_ context.Context, o *order.Order) error {
	return r.v.with(func(st *state) error {
		if o.ID == uuid.Nil {
			o.ID = newID()
		}
		now := time.Now().UTC()
		o.CreatedAt = now
		o.UpdatedAt = now

		ids := make([]uuid.UUID, 0, len(o.Items))
		for i := range o.Items {
			it := &o.Items[i]
			if it.ID == uuid.Nil {
				it.ID = newID()
			}
			it.OrderID = o.ID
			it.CreatedAt = now
			st.items[it.ID] = *it
			ids = append(ids, it.ID)
		}
		st.orderItems[o.ID] = ids

		stored := *o
		stored.Items = nil
		st.orders[o.ID] = stored
		return nil
	})
}

func (r orderRepo) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	var out *order.Order
	err := r.v.with(func(st *state) error {
		o, ok := st.load(id)
		if !ok {
			return order.ErrOrderNotFound
		}
		out = o
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: the store mutex already serialises
// transactions.
func (r orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r orderRepo) GetItem(_ context.Context, itemID uuid.UUID) (*order.Item, error) {
	var out *order.Item
	err := r.v.with(func(st *state) error {
		it, ok := st.items[itemID]
		if !ok {
			return order.ErrItemNotFound
		}
		out = &it
		return nil
	})
	return out, err
}

func (r orderRepo) Update(_ context.Context, o *order.Order) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.orders[o.ID]
		if !ok {
			return order.ErrOrderNotFound
		}
		o.UpdatedAt = time.Now().UTC()
		stored.Status = o.Status
		stored.IsDisputed = o.IsDisputed
		stored.StockDeducted = o.StockDeducted
		stored.SoldCounted = o.SoldCounted
		stored.IsDeleted = o.IsDeleted
		stored.UpdatedAt = o.UpdatedAt
		st.orders[o.ID] = stored
		return nil
	})
}

func (r orderRepo) UpdateItemStatus(_ context.Context, itemID uuid.UUID, status order.ItemStatus) error {
	return r.v.with(func(st *state) error {
		it, ok := st.items[itemID]
		if !ok {
			return order.ErrItemNotFound
		}
		it.Status = status
		st.items[itemID] = it
		return nil
	})
}

func (r orderRepo) ListPendingCreatedBefore(_ context.Context, cutoff time.Time, after order.PendingCursor, limit int) ([]order.PendingCursor, error) {
	var out []order.PendingCursor
	err := r.v.with(func(st *state) error {
		var pending []order.PendingCursor
		for _, o := range st.orders {
			if o.Status != order.StatusPending || o.IsDeleted || !o.CreatedAt.Before(cutoff) {
				continue
			}
			c := order.PendingCursor{CreatedAt: o.CreatedAt, ID: o.ID}
			if cursorLess(after, c) {
				pending = append(pending, c)
			}
		}
		sort.Slice(pending, func(i, j int) bool { return cursorLess(pending[i], pending[j]) })
		for i, c := range pending {
			if limit > 0 && i >= limit {
				break
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

func cursorLess(a, b order.PendingCursor) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID.Bytes(), b.ID.Bytes()) < 0
}

func (r orderRepo) ListByBuyer(_ context.Context, buyerID uuid.UUID) ([]order.Order, error) {
	out := []order.Order{}
	err := r.v.with(func(st *state) error {
		for id, o := range st.orders {
			if o.BuyerID == buyerID && !o.IsDeleted {
				full, _ := st.load(id)
				out = append(out, *full)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func (st *state) load(id uuid.UUID) (*order.Order, bool) {
	o, ok := st.orders[id]
	if !ok {
		return nil, false
	}
	ids := st.orderItems[id]
	o.Items = make([]order.Item, 0, len(ids))
	for _, itemID := range ids {
		o.Items = append(o.Items, st.items[itemID])
	}
	return &o, true
}

// SetCreatedAt backdates an order, for exercising timer-driven sweeps.
func (s *Store) SetCreatedAt(orderID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.st.orders[orderID]; ok {
		o.CreatedAt = at
		s.st.orders[orderID] = o
	}
}
