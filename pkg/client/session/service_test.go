package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/portfolio/pkg/client"
	"github.com/diagnosis/portfolio/pkg/client/tokenstore"
)

// fakeAPI implements the /auth routes against an in-memory user table.
type fakeAPI struct {
	mu        sync.Mutex
	passwords map[string]string // email -> password
	users     map[string]*User  // token -> user
	loginCode int               // status for bad credentials
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{passwords: map[string]string{}, users: map[string]*User{}, loginCode: http.StatusUnauthorized}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	switch r.Method + " " + r.URL.Path {
	case "POST /auth/register":
		if len(body["password"]) < 6 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"error":"Validation failed","code":"VALIDATION_FAILED","fields":{"password":"too short"}}`))
			return
		}
		f.passwords[body["email"]] = body["password"]
		f.issue(w, http.StatusCreated, body["email"], "user")
	case "POST /auth/login":
		if r.Header.Get("Authorization") != "" {
			http.Error(w, "login must not carry a token", http.StatusTeapot)
			return
		}
		if pw, ok := f.passwords[body["email"]]; !ok || pw != body["password"] {
			w.WriteHeader(f.loginCode)
			w.Write([]byte(`{"success":false,"error":"Invalid credentials","code":"INVALID_CREDENTIALS"}`))
			return
		}
		f.issue(w, http.StatusOK, body["email"], "user")
	case "GET /auth/me":
		u, ok := f.users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"Token is not valid","code":"INVALID_TOKEN"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": u})
	case "PUT /auth/profile":
		u, ok := f.users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"Token has expired","code":"EXPIRED_TOKEN"}`))
			return
		}
		if v, ok := body["bio"]; ok {
			u.Bio = v
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": u})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) issue(w http.ResponseWriter, status int, email, role string) {
	token := "tok-" + email
	u := &User{ID: "id-" + email, Name: "Ada", Email: email, Role: role}
	f.users[token] = u
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "token": token, "user": u})
}

type notices struct {
	mu  sync.Mutex
	got []string
}

func (n *notices) notify(class client.Class, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, string(class)+": "+err.Error())
}

func setup(t *testing.T) (*Service, *fakeAPI, tokenstore.Store, *notices) {
	t.Helper()
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemory()
	n := &notices{}
	c := client.New(srv.URL, store, client.WithNotifier(n.notify))
	return NewService(c, store), api, store, n
}

func TestRegisterThenLogin(t *testing.T) {
	s, _, store, _ := setup(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "Ada", "ada@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok-ada@x.com", reg.Token)

	s.Logout()
	assert.Equal(t, Unauthenticated, s.State().Kind)

	sess, err := s.Login(ctx, "ada@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, s.State().IsAuthenticated())
	assert.Equal(t, "ada@x.com", sess.User.Email)

	tok, _ := store.Get(tokenstore.KeyToken)
	assert.Equal(t, sess.Token, tok)
	assert.Equal(t, "ada@x.com", s.CachedUser().Email)
	assert.False(t, s.IsAdmin())
}

func TestRegister_ValidationError(t *testing.T) {
	s, _, _, n := setup(t)

	_, err := s.Register(context.Background(), "Ada", "ada@x.com", "1")
	var ve *client.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "too short", ve.Fields["password"])
	assert.Equal(t, Unauthenticated, s.State().Kind)
	assert.Len(t, n.got, 1)
}

func TestLogin_BadCredentials(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusUnprocessableEntity} {
		s, api, _, _ := setup(t)
		api.loginCode = code

		_, err := s.Login(context.Background(), "bad@x.com", "wrong")
		var ae *client.AuthError
		require.True(t, errors.As(err, &ae), "status %d gave %T", code, err)
		assert.False(t, ae.Expired)
		assert.Equal(t, Unauthenticated, s.State().Kind)
	}
}

func TestLogin_StaleTokenNotSent(t *testing.T) {
	s, _, store, _ := setup(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "Ada", "ada@x.com", "secret1")
	require.NoError(t, err)
	store.Set(tokenstore.KeyToken, "stale")

	_, err = s.Login(ctx, "ada@x.com", "secret1")
	require.NoError(t, err)
}

func TestLogoutThenCheckAuth(t *testing.T) {
	s, _, store, _ := setup(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "Ada", "ada@x.com", "secret1")
	require.NoError(t, err)

	s.Logout()
	_, ok := store.Get(tokenstore.KeyToken)
	assert.False(t, ok)

	st := s.CheckAuth(ctx)
	assert.Equal(t, Unauthenticated, st.Kind)
}

func TestCheckAuth(t *testing.T) {
	s, _, store, _ := setup(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "Ada", "ada@x.com", "secret1")
	require.NoError(t, err)

	// A fresh service over the same store restores the session.
	again := NewService(s.client, store)
	assert.True(t, again.State().IsLoading())
	st := again.CheckAuth(ctx)
	assert.True(t, st.IsAuthenticated())
	assert.Equal(t, "ada@x.com", st.User.Email)
}

func TestCheckAuth_InvalidTokenClears(t *testing.T) {
	s, _, store, n := setup(t)
	store.Set(tokenstore.KeyToken, "forged")

	st := s.CheckAuth(context.Background())
	assert.Equal(t, Unauthenticated, st.Kind)
	_, ok := store.Get(tokenstore.KeyToken)
	assert.False(t, ok)
	require.Len(t, n.got, 1)
	assert.Contains(t, n.got[0], "auth: Session expired")
}

func TestUpdateProfile(t *testing.T) {
	s, _, _, _ := setup(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "Ada", "ada@x.com", "secret1")
	require.NoError(t, err)

	bio := "Analyst"
	u, err := s.UpdateProfile(ctx, ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Analyst", u.Bio)

	st := s.State()
	assert.Equal(t, Authenticated, st.Kind)
	assert.Equal(t, "Analyst", st.User.Bio)
	assert.Equal(t, "Analyst", s.CachedUser().Bio)
}

func TestExpiredSessionForcesLogout(t *testing.T) {
	s, api, store, n := setup(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "Ada", "ada@x.com", "secret1")
	require.NoError(t, err)

	api.mu.Lock()
	api.users = map[string]*User{}
	api.mu.Unlock()

	var kinds []Kind
	s.Machine().Subscribe(func(st State) { kinds = append(kinds, st.Kind) })

	bio := "x"
	_, err = s.UpdateProfile(ctx, ProfileUpdate{Bio: &bio})
	var ae *client.AuthError
	require.True(t, errors.As(err, &ae))
	assert.True(t, ae.Expired)

	assert.Equal(t, []Kind{Unauthenticated}, kinds)
	_, ok := store.Get(tokenstore.KeyToken)
	assert.False(t, ok)
	require.NotEmpty(t, n.got)
	assert.Contains(t, n.got[len(n.got)-1], "Session expired")
}

// brokenStore fails the configured operations of a memory store.
type brokenStore struct {
	*tokenstore.Memory
	failKey  string
	clearErr error
}

func (b *brokenStore) Set(key, value string) error {
	if key == b.failKey {
		return errors.New("disk full")
	}
	return b.Memory.Set(key, value)
}

func (b *brokenStore) Clear() error {
	if b.clearErr != nil {
		return b.clearErr
	}
	return b.Memory.Clear()
}

func setupBroken(t *testing.T, store *brokenStore) (*Service, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(newFakeAPI())
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	c := client.New(srv.URL, store, client.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	return NewService(c, store), &logs
}

func TestRegister_PartialPersistLeavesNoToken(t *testing.T) {
	for _, key := range []string{tokenstore.KeyUser, tokenstore.KeyToken} {
		t.Run(key, func(t *testing.T) {
			store := &brokenStore{Memory: tokenstore.NewMemory(), failKey: key}
			s, _ := setupBroken(t, store)

			_, err := s.Register(context.Background(), "Ada", "ada@x.com", "secret1")
			require.Error(t, err)
			_, hasToken := store.Get(tokenstore.KeyToken)
			_, hasUser := store.Get(tokenstore.KeyUser)
			assert.False(t, hasToken)
			assert.False(t, hasUser)
			assert.False(t, s.State().IsAuthenticated())
		})
	}
}

func TestLogout_ClearFailureIsLogged(t *testing.T) {
	store := &brokenStore{Memory: tokenstore.NewMemory(), clearErr: errors.New("permission denied")}
	s, logs := setupBroken(t, store)

	s.Logout()
	assert.Equal(t, Unauthenticated, s.State().Kind)
	assert.Contains(t, logs.String(), "Failed to clear stored session")
	assert.Contains(t, logs.String(), "permission denied")
}
