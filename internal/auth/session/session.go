package session

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/logger"
	"go.uber.org/zap"
)

// Record is everything kept for one browser session.
type Record struct {
	User               *models.UserInfo    `json:"user,omitempty"`
	RedirectAfterLogin string              `json:"redirect_after_login,omitempty"`
	Pending            *models.PendingAuth `json:"pending,omitempty"`

	// server-side id, only used by the redis backend
	id string
	// set on login so server-side backends issue a fresh id
	rotate bool
}

// IsEmpty reports whether the record holds nothing worth persisting
func (r *Record) IsEmpty() bool {
	return r.User == nil && r.RedirectAfterLogin == "" && r.Pending == nil
}

// TakePending removes and returns the pending login attempt
func (r *Record) TakePending() *models.PendingAuth {
	p := r.Pending
	r.Pending = nil
	return p
}

// Login stores user and consumes the stashed redirect target. It returns
// where the browser should go next.
func (r *Record) Login(user *models.UserInfo) (string, error) {
	if user == nil || user.ID == "" {
		return "", models.ErrMissingSubject
	}
	r.User = user
	r.Pending = nil
	r.rotate = true
	target := SafeRedirect(r.RedirectAfterLogin)
	r.RedirectAfterLogin = ""
	return target, nil
}

// Store persists session records. Load never fails on a missing or
// undecodable cookie; it returns an empty record instead.
type Store interface {
	Load(r *http.Request) (*Record, error)
	Save(w http.ResponseWriter, r *http.Request, rec *Record) error
	Clear(w http.ResponseWriter, r *http.Request, rec *Record) error
}

// Manager is the session accessor used by the handlers and the guard.
// Writes are request-scoped and last-write-wins across concurrent requests
// from the same browser.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Load returns the current record
func (m *Manager) Load(r *http.Request) (*Record, error) {
	rec, err := m.store.Load(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return rec, nil
}

// Save writes rec, or clears the session when rec is empty
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, rec *Record) error {
	var err error
	if rec.IsEmpty() {
		err = m.store.Clear(w, r, rec)
	} else {
		err = m.store.Save(w, r, rec)
	}
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// CurrentUser returns the logged-in user or nil. It never writes.
func (m *Manager) CurrentUser(r *http.Request) *models.UserInfo {
	rec, err := m.store.Load(r)
	if err != nil {
		logger.Warn("Failed to read session", zap.Error(err))
		return nil
	}
	if rec.User == nil || rec.User.ID == "" {
		return nil
	}
	return rec.User
}

// StashRedirect records target as the post-login destination
func (m *Manager) StashRedirect(w http.ResponseWriter, r *http.Request, target string) error {
	rec, err := m.Load(r)
	if err != nil {
		return err
	}
	rec.RedirectAfterLogin = target
	return m.Save(w, r, rec)
}

// Logout drops the user from the session. Calling it without a session is not an error.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	rec, err := m.Load(r)
	if err != nil {
		return err
	}
	if rec.IsEmpty() {
		return nil
	}
	rec.User = nil
	return m.Save(w, r, rec)
}

// SafeRedirect returns target when it is a local path, otherwise the default
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return constants.DefaultRedirect
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return constants.DefaultRedirect
	}
	return target
}

func cookieAttributes(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
