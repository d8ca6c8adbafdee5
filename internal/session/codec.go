// Package session carries caller state across requests in signed cookies:
// the guest cart id and the authenticated user id.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	CartCookieName    = "cart_id"
	SessionCookieName = "session"

	defaultMaxAge = 30 * 24 * time.Hour
)

var ErrInvalidConfig = errors.New("session: invalid config")

// Config controls cookie attributes. Secret is the process-wide signing key.
type Config struct {
	Secret   string
	Secure   bool
	Path     string
	MaxAge   time.Duration
	SameSite http.SameSite
}

func (c *Config) normalize() error {
	if len(c.Secret) < 16 {
		return fmt.Errorf("%w: secret must have at least 16 bytes", ErrInvalidConfig)
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = defaultMaxAge
	}
	if c.SameSite == http.SameSiteDefaultMode {
		c.SameSite = http.SameSiteLaxMode
	}
	return nil
}

// keys derives independent hash and block keys from the secret so one
// configured value is enough.
func keys(secret, purpose string) (hashKey, blockKey []byte) {
	h := sha256.Sum256([]byte("hash:" + purpose + ":" + secret))
	b := sha256.Sum256([]byte("block:" + purpose + ":" + secret))
	return h[:], b[:]
}

func newCodec(secret, purpose string, encrypt bool, maxAge time.Duration) *securecookie.SecureCookie {
	hashKey, blockKey := keys(secret, purpose)
	if !encrypt {
		blockKey = nil
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(maxAge.Seconds()))
	return codec
}

// CartCookie signs and verifies the guest cart id. The id is a lookup key
// only; Verify must succeed before it is used.
type CartCookie struct {
	cfg   Config
	codec *securecookie.SecureCookie
}

func NewCartCookie(cfg Config) (*CartCookie, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &CartCookie{cfg: cfg, codec: newCodec(cfg.Secret, CartCookieName, false, cfg.MaxAge)}, nil
}

func (c *CartCookie) Sign(cartID int64) (string, error) {
	return c.codec.Encode(CartCookieName, cartID)
}

// Verify returns the cart id carried by token. Any tampering, expiry or
// malformed payload yields ok=false.
func (c *CartCookie) Verify(token string) (int64, bool) {
	var id int64
	if err := c.codec.Decode(CartCookieName, token, &id); err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Read verifies the cart cookie of r, if any.
func (c *CartCookie) Read(r *http.Request) (int64, bool) {
	ck, err := r.Cookie(CartCookieName)
	if err != nil || ck.Value == "" {
		return 0, false
	}
	return c.Verify(ck.Value)
}

func (c *CartCookie) Write(w http.ResponseWriter, cartID int64) error {
	token, err := c.Sign(cartID)
	if err != nil {
		return fmt.Errorf("sign cart cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookieName,
		Value:    token,
		Path:     c.cfg.Path,
		MaxAge:   int(c.cfg.MaxAge.Seconds()),
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	})
	return nil
}

func (c *CartCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, expired(CartCookieName, c.cfg))
}

func expired(name string, cfg Config) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	}
}
