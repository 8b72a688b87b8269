package settlement

import (
	"github.com/gofrs/uuid"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/actor"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/order"
)

// requireOrderSeller admits a seller owning at least one item, an admin, or
// the system sweep.
func requireOrderSeller(by actor.Actor, o *order.Order) error {
	if by.IsPrivileged() {
		return nil
	}
	if by.Role == actor.RoleSeller && o.HasSeller(by.ID) {
		return nil
	}
	return apperr.Permission("%s %s is not a seller of order %s", by.Role, by.ID, o.ID)
}

func requireOrderBuyer(by actor.Actor, o *order.Order) error {
	if by.IsAdmin() {
		return nil
	}
	if by.Role == actor.RoleBuyer && by.ID == o.BuyerID {
		return nil
	}
	return apperr.Permission("%s %s is not the buyer of order %s", by.Role, by.ID, o.ID)
}

// requireOrderParty admits the buyer, any seller of the order, or a privileged actor.
func requireOrderParty(by actor.Actor, o *order.Order) error {
	if by.IsPrivileged() {
		return nil
	}
	switch by.Role {
	case actor.RoleBuyer:
		if by.ID == o.BuyerID {
			return nil
		}
	case actor.RoleSeller:
		if o.HasSeller(by.ID) {
			return nil
		}
	}
	return apperr.Permission("%s %s is not a party to order %s", by.Role, by.ID, o.ID)
}

func requireComplaintBuyer(by actor.Actor, c *complaint.Complaint) error {
	if by.Role == actor.RoleBuyer && by.ID == c.BuyerID {
		return nil
	}
	return apperr.Permission("only the buyer who filed complaint %s may do this", c.ID)
}

func requireComplaintSeller(by actor.Actor, c *complaint.Complaint) error {
	if by.Role == actor.RoleSeller && by.ID == c.SellerID {
		return nil
	}
	return apperr.Permission("only the seller of the disputed item may act on complaint %s", c.ID)
}

func requireComplaintParty(by actor.Actor, c *complaint.Complaint) error {
	if by.IsAdmin() {
		return nil
	}
	if (by.Role == actor.RoleBuyer && by.ID == c.BuyerID) || (by.Role == actor.RoleSeller && by.ID == c.SellerID) {
		return nil
	}
	return apperr.Permission("%s %s is not a party to complaint %s", by.Role, by.ID, c.ID)
}

func requireAdmin(by actor.Actor) error {
	if by.IsAdmin() {
		return nil
	}
	return apperr.Permission("%s %s is not an admin", by.Role, by.ID)
}

// requireSelf admits a seller acting on their own wallet, or an admin.
func requireSelf(by actor.Actor, sellerID uuid.UUID) error {
	if by.IsAdmin() || (by.Role == actor.RoleSeller && by.ID == sellerID) {
		return nil
	}
	return apperr.Permission("%s %s may not act on the wallet of seller %s", by.Role, by.ID, sellerID)
}
