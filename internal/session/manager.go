package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// Data is the persisted session payload.
type Data struct {
	UserID   int64     `json:"uid,omitempty"`
	IssuedAt time.Time `json:"iat"`
}

// Manager stores Data in a signed and encrypted cookie.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:   cfg,
		codec: newCodec(cfg.Secret, SessionCookieName, true, cfg.MaxAge),
		now:   time.Now,
	}, nil
}

// Load returns the session of r. Missing or invalid cookies give an empty
// session, never an error.
func (m *Manager) Load(r *http.Request) Data {
	ck, err := r.Cookie(SessionCookieName)
	if err != nil {
		return Data{}
	}
	var d Data
	if err := m.codec.Decode(SessionCookieName, ck.Value, &d); err != nil {
		return Data{}
	}
	return d
}

// Login binds userID to the caller.
func (m *Manager) Login(w http.ResponseWriter, userID int64) error {
	if userID <= 0 {
		return errors.New("session: invalid user id")
	}
	return m.save(w, Data{UserID: userID, IssuedAt: m.now().UTC()})
}

func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, expired(SessionCookieName, m.cfg))
}

func (m *Manager) save(w http.ResponseWriter, d Data) error {
	encoded, err := m.codec.Encode(SessionCookieName, d)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    encoded,
		Path:     m.cfg.Path,
		MaxAge:   int(m.cfg.MaxAge.Seconds()),
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: m.cfg.SameSite,
	})
	return nil
}
