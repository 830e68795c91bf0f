package session

import (
	"fmt"
	"net/http"

	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// CookieStore keeps the whole record in a signed (and optionally encrypted) cookie
type CookieStore struct {
	name   string
	codec  *securecookie.SecureCookie
	maxAge int
	secure bool
}

func newCodec(cfg *config.SessionConfig) *securecookie.SecureCookie {
	var blockKey []byte
	if cfg.EncryptionKey != "" {
		blockKey = []byte(cfg.EncryptionKey)
	}
	codec := securecookie.New([]byte(cfg.Secret), blockKey)
	codec.MaxAge(int(cfg.MaxAge.Seconds()))
	codec.SetSerializer(securecookie.JSONEncoder{})
	return codec
}

func NewCookieStore(cfg *config.SessionConfig) *CookieStore {
	return &CookieStore{
		name:   cfg.CookieName,
		codec:  newCodec(cfg),
		maxAge: int(cfg.MaxAge.Seconds()),
		secure: cfg.Secure,
	}
}

func (s *CookieStore) Load(r *http.Request) (*Record, error) {
	rec := &Record{}
	c, err := r.Cookie(s.name)
	if err != nil {
		return rec, nil
	}
	if err := s.codec.Decode(s.name, c.Value, rec); err != nil {
		// Expired, tampered with, or signed with a rotated secret
		logger.Debug("Ignoring invalid session cookie", zap.Error(err))
		return &Record{}, nil
	}
	return rec, nil
}

func (s *CookieStore) Save(w http.ResponseWriter, _ *http.Request, rec *Record) error {
	encoded, err := s.codec.Encode(s.name, rec)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, cookieAttributes(s.name, encoded, s.maxAge, s.secure))
	return nil
}

func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request, _ *Record) error {
	if _, err := r.Cookie(s.name); err != nil {
		return nil
	}
	http.SetCookie(w, cookieAttributes(s.name, "", -1, s.secure))
	return nil
}
