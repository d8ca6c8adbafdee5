// Package identity resolves who the caller is and which cart the request
// operates on, and performs the login/logout handshakes around it.
package identity

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/apperr"
	"github.com/MikeMC777/storefront-ecom/internal/cart"
	"github.com/MikeMC777/storefront-ecom/internal/session"
	"github.com/MikeMC777/storefront-ecom/internal/user"
)

type Users interface {
	Get(ctx context.Context, id int64) (*user.User, error)
}

type Carts interface {
	CurrentForUser(ctx context.Context, userID int64) (*cart.Cart, error)
	GuestCart(ctx context.Context, id int64) (*cart.Cart, error)
	NewGuestCart(ctx context.Context) (*cart.Cart, error)
	Reconcile(ctx context.Context, guestCartID, userID int64) error
}

// Identity is the resolved caller of one request. User is nil for guests.
type Identity struct {
	User   *user.User
	CartID int64
}

func (i Identity) Principal() access.Principal {
	if i.User == nil {
		return access.Principal{}
	}
	return i.User.Principal()
}

type Resolver struct {
	users    Users
	carts    Carts
	sessions *session.Manager
	cookies  *session.CartCookie
	log      *zap.Logger
}

func NewResolver(users Users, carts Carts, sessions *session.Manager, cookies *session.CartCookie, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{users: users, carts: carts, sessions: sessions, cookies: cookies, log: log}
}

// User returns the authenticated user or nil. A session naming a deleted
// or deactivated account counts as anonymous.
func (r *Resolver) User(ctx context.Context, req *http.Request) (*user.User, error) {
	data := r.sessions.Load(req)
	if data.UserID == 0 {
		return nil, nil
	}
	u, err := r.users.Get(ctx, data.UserID)
	if apperr.Is(err, apperr.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, nil
	}
	return u, nil
}

// Resolve determines the caller and their cart, creating the cart (and the
// guest cookie) when needed. Cookie content never causes an error.
func (r *Resolver) Resolve(ctx context.Context, w http.ResponseWriter, req *http.Request) (Identity, error) {
	u, err := r.User(ctx, req)
	if err != nil {
		return Identity{}, err
	}
	if u != nil {
		c, err := r.carts.CurrentForUser(ctx, u.ID)
		if err != nil {
			return Identity{}, err
		}
		return Identity{User: u, CartID: c.ID}, nil
	}

	if id, ok := r.cookies.Read(req); ok {
		c, err := r.carts.GuestCart(ctx, id)
		switch {
		case err == nil:
			return Identity{CartID: c.ID}, nil
		case !apperr.Is(err, apperr.NotFound):
			return Identity{}, err
		}
		// signed but stale: merged away, deleted or claimed by a user
	}

	c, err := r.carts.NewGuestCart(ctx)
	if err != nil {
		return Identity{}, err
	}
	if err := r.cookies.Write(w, c.ID); err != nil {
		return Identity{}, err
	}
	return Identity{CartID: c.ID}, nil
}

// GuestCartID is the verified guest cart id carried by req, zero if none.
func (r *Resolver) GuestCartID(req *http.Request) int64 {
	id, _ := r.cookies.Read(req)
	return id
}

// Login reconciles the incoming guest cart into u's cart and only then
// binds the session, so a failed reconciliation leaves the caller logged out.
func (r *Resolver) Login(ctx context.Context, w http.ResponseWriter, req *http.Request, u *user.User) error {
	if guest := r.GuestCartID(req); guest != 0 {
		if err := r.carts.Reconcile(ctx, guest, u.ID); err != nil {
			return err
		}
		r.cookies.Clear(w)
	}
	if err := r.sessions.Login(w, u.ID); err != nil {
		return apperr.Wrap(apperr.Internal, "start session", err)
	}
	r.log.Debug("session started", zap.Int64("user_id", u.ID))
	return nil
}

func (r *Resolver) Logout(w http.ResponseWriter) {
	r.sessions.Destroy(w)
	r.cookies.Clear(w)
}
