// Package access holds the role model and the authorization rules shared by
// the cart, order and user services.
package access

import (
	"strings"

	"github.com/MikeMC777/storefront-ecom/internal/apperr"
)

type Role string

const (
	Customer Role = "customer"
	Employee Role = "employee"
	Admin    Role = "admin"
)

var (
	ErrUnauthenticated = apperr.New(apperr.Unauthenticated, "must be logged in")
	ErrForbidden       = apperr.New(apperr.Forbidden, "operation not permitted")
	ErrInvalidRole     = apperr.New(apperr.ValidationFailed, "invalid role")
	ErrDeleteSelf      = apperr.New(apperr.ValidationFailed, "cannot delete your own account")
	ErrDeleteAdmin     = apperr.New(apperr.ValidationFailed, "cannot delete other admin accounts")
	ErrDeleteCustomer  = apperr.New(apperr.ValidationFailed, "cannot delete customer accounts via this interface")
)

// ParseRole maps free-form input onto the closed role set. Empty input is
// the default role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", Customer:
		return Customer, nil
	case Employee:
		return Employee, nil
	case Admin:
		return Admin, nil
	}
	return "", ErrInvalidRole
}

func (r Role) Valid() bool {
	switch r {
	case Customer, Employee, Admin:
		return true
	}
	return false
}

// Staff reports whether the role sees every order.
func (r Role) Staff() bool {
	return r == Admin || r == Employee
}

// Principal is the authenticated caller as seen by the services.
type Principal struct {
	UserID int64
	Role   Role
}

func (p Principal) Authenticated() bool { return p.UserID != 0 }

// RequireUser fails with Unauthenticated for the zero principal.
func RequireUser(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func RequireAdmin(p Principal) error {
	if err := RequireUser(p); err != nil {
		return err
	}
	if p.Role != Admin {
		return ErrForbidden
	}
	return nil
}

func CanListAllOrders(r Role) bool { return r.Staff() }

// CanViewOrder covers both reading and cancelling. Callers that fail it must
// report the order as not found.
func CanViewOrder(p Principal, ownerID int64) bool {
	if !p.Authenticated() {
		return false
	}
	return p.UserID == ownerID || p.Role.Staff()
}

// AuthorizeCreateUser checks that caller may provision an account with the
// given role.
func AuthorizeCreateUser(caller Principal, role Role) error {
	if err := RequireAdmin(caller); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	return nil
}

// CheckDeleteUser enforces the deletion rules: only admins delete, and only
// employees other than themselves.
func CheckDeleteUser(caller Principal, targetID int64, targetRole Role) error {
	if err := RequireAdmin(caller); err != nil {
		return err
	}
	if caller.UserID == targetID {
		return ErrDeleteSelf
	}
	switch targetRole {
	case Admin:
		return ErrDeleteAdmin
	case Customer:
		return ErrDeleteCustomer
	case Employee:
		return nil
	}
	return ErrInvalidRole
}
