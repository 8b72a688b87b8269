package memory

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/inventory"
)

type productRepo struct{ v view }

func (r productRepo) Create(_ context.Context, p *inventory.Product) error {
	return r.v.with(func(st *state) error {
		if p.ID == uuid.Nil {
			p.ID = newID()
		}
		p.CreatedAt = time.Now().UTC()
		st.products[p.ID] = *p
		return nil
	})
}

func (r productRepo) GetProduct(_ context.Context, id uuid.UUID) (*inventory.Product, error) {
	var out *inventory.Product
	err := r.v.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return inventory.ErrProductNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r productRepo) LockProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*inventory.Product, error) {
	locked := make(map[uuid.UUID]*inventory.Product, len(ids))
	err := r.v.with(func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				locked[id] = &p
			}
		}
		return nil
	})
	return locked, err
}

func (r productRepo) DecrementStock(_ context.Context, id uuid.UUID, qty int) error {
	return r.v.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return inventory.ErrProductNotFound
		}
		if p.Stock < qty {
			return &apperr.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
		}
		p.Stock -= qty
		st.products[id] = p
		return nil
	})
}

func (r productRepo) IncrementSold(_ context.Context, id uuid.UUID, qty int) error {
	return r.v.with(func(st *state) error {
		if p, ok := st.products[id]; ok {
			p.SoldCount += qty
			st.products[id] = p
		}
		return nil
	})
}
