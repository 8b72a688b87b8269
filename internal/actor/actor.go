// Package actor identifies who issues a settlement command.
package actor

import "github.com/gofrs/uuid"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	// RoleSystem is used by background sweeps.
	RoleSystem Role = "system"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

type Actor struct {
	ID   uuid.UUID
	Role Role
}

// System is the actor of timer-driven transitions.
var System = Actor{Role: RoleSystem}

func Buyer(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleBuyer} }
func Seller(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleSeller} }
func Admin(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleAdmin} }

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}
