package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brizzai/llm-server/internal/auth/constants"
	"github.com/brizzai/llm-server/internal/auth/models"
	"github.com/brizzai/llm-server/internal/config"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionConfig() *config.SessionConfig {
	return &config.SessionConfig{
		Backend:       config.SessionBackendCookie,
		CookieName:    "llm_session",
		Secret:        strings.Repeat("s", 32),
		EncryptionKey: strings.Repeat("k", 32),
		MaxAge:        time.Hour,
		KeyPrefix:     "llm:session:",
	}
}

// browser replays the cookies set by earlier responses
type browser struct {
	cookies map[string]*http.Cookie
}

func newBrowser() *browser {
	return &browser{cookies: map[string]*http.Cookie{}}
}

func (b *browser) request(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func (b *browser) absorb(rec *httptest.ResponseRecorder) {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
}

type storeFactory struct {
	name  string
	build func(t *testing.T) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{"cookie", func(t *testing.T) Store { return NewCookieStore(testSessionConfig()) }},
		{"redis", func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client, testSessionConfig())
		}},
	}
}

func TestManager_StashThenLogin(t *testing.T) {
	for _, sf := range storeFactories() {
		t.Run(sf.name, func(t *testing.T) {
			m := NewManager(sf.build(t))
			b := newBrowser()

			w := httptest.NewRecorder()
			require.NoError(t, m.StashRedirect(w, b.request("/protected/x"), "/protected/x?tab=1"))
			b.absorb(w)

			rec, err := m.Load(b.request("/auth/google"))
			require.NoError(t, err)
			assert.Equal(t, "/protected/x?tab=1", rec.RedirectAfterLogin)
			assert.Nil(t, m.CurrentUser(b.request("/")))

			user := &models.UserInfo{ID: "u123", Email: "a@b.com", Provider: models.ProviderGoogle}
			target, err := rec.Login(user)
			require.NoError(t, err)
			assert.Equal(t, "/protected/x?tab=1", target)

			w = httptest.NewRecorder()
			require.NoError(t, m.Save(w, b.request("/auth/google"), rec))
			b.absorb(w)

			got := m.CurrentUser(b.request("/protected/x"))
			require.NotNil(t, got)
			if diff := cmp.Diff(user, got); diff != "" {
				t.Errorf("user mismatch (-want +got):\n%s", diff)
			}

			after, err := m.Load(b.request("/"))
			require.NoError(t, err)
			assert.Empty(t, after.RedirectAfterLogin, "redirect target must be consumed")
		})
	}
}

func TestManager_PendingRoundTrip(t *testing.T) {
	for _, sf := range storeFactories() {
		t.Run(sf.name, func(t *testing.T) {
			m := NewManager(sf.build(t))
			b := newBrowser()
			pending := &models.PendingAuth{
				Provider:     models.ProviderGitHub,
				State:        "st",
				CodeVerifier: "cv",
				CreatedAt:    time.Now().Truncate(time.Second),
			}

			rec, err := m.Load(b.request("/login/github"))
			require.NoError(t, err)
			rec.Pending = pending
			w := httptest.NewRecorder()
			require.NoError(t, m.Save(w, b.request("/login/github"), rec))
			b.absorb(w)

			rec, err = m.Load(b.request("/auth/github"))
			require.NoError(t, err)
			taken := rec.TakePending()
			if diff := cmp.Diff(pending, taken, cmpopts.EquateApproxTime(time.Second)); diff != "" {
				t.Errorf("pending mismatch (-want +got):\n%s", diff)
			}
			assert.Nil(t, rec.TakePending(), "pending auth is single use")
		})
	}
}

func TestManager_Logout(t *testing.T) {
	for _, sf := range storeFactories() {
		t.Run(sf.name, func(t *testing.T) {
			m := NewManager(sf.build(t))
			b := newBrowser()

			// Without a session
			w := httptest.NewRecorder()
			require.NoError(t, m.Logout(w, b.request("/logout")))
			assert.Empty(t, w.Result().Cookies())

			rec := &Record{}
			_, err := rec.Login(&models.UserInfo{ID: "u1"})
			require.NoError(t, err)
			w = httptest.NewRecorder()
			require.NoError(t, m.Save(w, b.request("/"), rec))
			b.absorb(w)
			require.NotNil(t, m.CurrentUser(b.request("/")))

			w = httptest.NewRecorder()
			require.NoError(t, m.Logout(w, b.request("/logout")))
			b.absorb(w)
			assert.Nil(t, m.CurrentUser(b.request("/")))

			w = httptest.NewRecorder()
			require.NoError(t, m.Logout(w, b.request("/logout")))
		})
	}
}

func TestRecord_LoginRejectsMissingSubject(t *testing.T) {
	rec := &Record{RedirectAfterLogin: "/protected/x"}

	for _, user := range []*models.UserInfo{nil, {Email: "a@b.com"}} {
		_, err := rec.Login(user)
		assert.True(t, errors.Is(err, models.ErrMissingSubject))
	}
	assert.Nil(t, rec.User)
	assert.Equal(t, "/protected/x", rec.RedirectAfterLogin)
}

func TestCookieStore_TamperedCookie(t *testing.T) {
	store := NewCookieStore(testSessionConfig())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "llm_session", Value: "not-a-valid-cookie"})

	rec, err := store.Load(req)
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())
}

func TestCookieStore_RotatedSecret(t *testing.T) {
	m := NewManager(NewCookieStore(testSessionConfig()))
	b := newBrowser()
	w := httptest.NewRecorder()
	require.NoError(t, m.StashRedirect(w, b.request("/"), "/protected/a"))
	b.absorb(w)

	rotated := testSessionConfig()
	rotated.Secret = strings.Repeat("r", 32)
	other := NewManager(NewCookieStore(rotated))

	rec, err := other.Load(b.request("/"))
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	m := NewManager(NewRedisStore(client, testSessionConfig()))
	b := newBrowser()

	w := httptest.NewRecorder()
	require.NoError(t, m.StashRedirect(w, b.request("/"), "/protected/a"))
	b.absorb(w)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "llm:session:"))
	assert.Equal(t, constants.PendingAuthTTL, mr.TTL(keys[0]), "anonymous records are short-lived")

	cookie := b.cookies["llm_session"]
	require.NotNil(t, cookie)
	assert.NotContains(t, cookie.Value, "protected", "record must not travel in the cookie")

	// Clearing the only field drops the server-side record
	rec, err := m.Load(b.request("/"))
	require.NoError(t, err)
	rec.RedirectAfterLogin = ""
	w = httptest.NewRecorder()
	require.NoError(t, m.Save(w, b.request("/"), rec))
	assert.False(t, mr.Exists(keys[0]))
}

func TestRedisStore_ExpiredServerSide(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	m := NewManager(NewRedisStore(client, testSessionConfig()))
	b := newBrowser()

	w := httptest.NewRecorder()
	require.NoError(t, m.StashRedirect(w, b.request("/"), "/protected/a"))
	b.absorb(w)

	mr.FastForward(2 * time.Hour)

	rec, err := m.Load(b.request("/"))
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())
}

func TestRedisStore_AnonymousHitsExpireQuickly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	m := NewManager(NewRedisStore(client, testSessionConfig()))

	// Cookieless clients each leave a record behind
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		require.NoError(t, m.StashRedirect(w, newBrowser().request("/protected/x"), "/protected/x"))
		c := w.Result().Cookies()
		require.Len(t, c, 1)
		assert.Equal(t, int(constants.PendingAuthTTL.Seconds()), c[0].MaxAge)
	}
	require.Len(t, mr.Keys(), 5)

	mr.FastForward(constants.PendingAuthTTL + time.Second)
	assert.Empty(t, mr.Keys())
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/protected/x", "/protected/x"},
		{"/protected/x?tab=1#top", "/protected/x?tab=1#top"},
		{"https://evil.example/", "/"},
		{"//evil.example/path", "/"},
		{`/\evil.example`, "/"},
		{"protected/x", "/"},
		{"javascript:alert(1)", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeRedirect(tt.in))
		})
	}
}

func TestRedisStore_RotatesIDOnLogin(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	m := NewManager(NewRedisStore(client, testSessionConfig()))
	b := newBrowser()

	w := httptest.NewRecorder()
	require.NoError(t, m.StashRedirect(w, b.request("/"), "/protected/a"))
	b.absorb(w)
	before := mr.Keys()
	require.Len(t, before, 1)

	rec, err := m.Load(b.request("/auth/github"))
	require.NoError(t, err)
	_, err = rec.Login(&models.UserInfo{ID: "u1"})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	require.NoError(t, m.Save(w, b.request("/auth/github"), rec))
	b.absorb(w)

	after := mr.Keys()
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0], after[0])
	assert.Equal(t, time.Hour, mr.TTL(after[0]), "a signed-in session gets the full max age")
	require.NotNil(t, m.CurrentUser(b.request("/")))
}
