package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
)

type complaintRepo struct{ v view }

func (r complaintRepo) Create(_ context.Context, c *complaint.Complaint) error {
	return r.v.with(func(st *state) error {
		for _, existing := range st.complaints {
			if existing.OrderItemID == c.OrderItemID && existing.Status.IsActive() {
				return complaint.ErrActiveComplaintExists
			}
		}
		if c.ID == uuid.Nil {
			c.ID = newID()
		}
		now := time.Now().UTC()
		c.CreatedAt = now
		c.UpdatedAt = now
		if c.Media == nil {
			c.Media = []string{}
		}
		st.complaints[c.ID] = copyComplaint(*c)
		return nil
	})
}

func (r complaintRepo) GetByID(_ context.Context, id uuid.UUID) (*complaint.Complaint, error) {
	var out *complaint.Complaint
	err := r.v.with(func(st *state) error {
		c, ok := st.complaints[id]
		if !ok {
			return complaint.ErrComplaintNotFound
		}
		c = copyComplaint(c)
		out = &c
		return nil
	})
	return out, err
}

func (r complaintRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*complaint.Complaint, error) {
	return r.GetByID(ctx, id)
}

func (r complaintRepo) Update(_ context.Context, c *complaint.Complaint) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.complaints[c.ID]
		if !ok {
			return complaint.ErrComplaintNotFound
		}
		stored.SellerResponse = c.SellerResponse
		stored.AdminNotes = c.AdminNotes
		stored.Status = c.Status
		stored.ReturnRequired = c.ReturnRequired
		stored.Return = c.Return
		stored.UpdatedAt = c.UpdatedAt
		stored.ResolvedAt = c.ResolvedAt
		st.complaints[c.ID] = stored
		return nil
	})
}

func (r complaintRepo) HasActiveForItem(_ context.Context, orderItemID uuid.UUID) (bool, error) {
	var found bool
	err := r.v.with(func(st *state) error {
		for _, c := range st.complaints {
			if c.OrderItemID == orderItemID && c.Status.IsActive() {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r complaintRepo) CountActiveForOrder(_ context.Context, orderID uuid.UUID) (int, error) {
	var n int
	err := r.v.with(func(st *state) error {
		for _, c := range st.complaints {
			if c.OrderID == orderID && c.Status.IsActive() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r complaintRepo) ListByOrder(_ context.Context, orderID uuid.UUID) ([]complaint.Complaint, error) {
	out := []complaint.Complaint{}
	err := r.v.with(func(st *state) error {
		for _, c := range st.complaints {
			if c.OrderID == orderID {
				out = append(out, copyComplaint(c))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		return nil
	})
	return out, err
}

func copyComplaint(c complaint.Complaint) complaint.Complaint {
	c.Media = slices.Clone(c.Media)
	return c
}
