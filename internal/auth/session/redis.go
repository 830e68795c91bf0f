package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/brizzai/llm-server/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps records in redis. The cookie only carries the signed session id.
type RedisStore struct {
	client    redis.UniversalClient
	name      string
	codec     *securecookie.SecureCookie
	keyPrefix string
	ttl       time.Duration
	secure    bool
}

func NewRedisStore(client redis.UniversalClient, cfg *config.SessionConfig) *RedisStore {
	return &RedisStore{
		client:    client,
		name:      cfg.CookieName,
		codec:     newCodec(cfg),
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.MaxAge,
		secure:    cfg.Secure,
	}
}

// ttlFor keeps records without a user (a stashed redirect or a pending login)
// no longer than a login attempt may take.
func (s *RedisStore) ttlFor(rec *Record) time.Duration {
	if rec.User == nil && constants.PendingAuthTTL < s.ttl {
		return constants.PendingAuthTTL
	}
	return s.ttl
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *RedisStore) sessionID(r *http.Request) string {
	c, err := r.Cookie(s.name)
	if err != nil {
		return ""
	}
	var id string
	if err := s.codec.Decode(s.name, c.Value, &id); err != nil {
		logger.Debug("Ignoring invalid session cookie", zap.Error(err))
		return ""
	}
	return id
}

func (s *RedisStore) Load(r *http.Request) (*Record, error) {
	id := s.sessionID(r)
	if id == "" {
		return &Record{}, nil
	}

	data, err := s.client.Get(r.Context(), s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired server-side; a fresh id is issued on the next save
		return &Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		logger.Warn("Discarding undecodable session", logger.Redacted("session_id", id), zap.Error(err))
		return &Record{}, nil
	}
	rec.id = id
	return rec, nil
}

func (s *RedisStore) Save(w http.ResponseWriter, r *http.Request, rec *Record) error {
	if rec.rotate && rec.id != "" {
		if err := s.client.Del(r.Context(), s.key(rec.id)).Err(); err != nil {
			logger.Warn("Failed to delete pre-login session", logger.Redacted("session_id", rec.id), zap.Error(err))
		}
		rec.id = ""
	}
	rec.rotate = false
	if rec.id == "" {
		rec.id = uuid.NewString()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := s.ttlFor(rec)
	if err := s.client.Set(r.Context(), s.key(rec.id), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session %s: %w", rec.id, err)
	}

	encoded, err := s.codec.Encode(s.name, rec.id)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, cookieAttributes(s.name, encoded, int(ttl.Seconds()), s.secure))
	return nil
}

func (s *RedisStore) Clear(w http.ResponseWriter, r *http.Request, rec *Record) error {
	id := rec.id
	if id == "" {
		id = s.sessionID(r)
	}
	if id == "" {
		return nil
	}
	if err := s.client.Del(r.Context(), s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	rec.id = ""
	http.SetCookie(w, cookieAttributes(s.name, "", -1, s.secure))
	return nil
}
