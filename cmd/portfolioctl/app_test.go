package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/portfolio/pkg/client"
	"github.com/diagnosis/portfolio/pkg/client/tokenstore"
)

const adminJSON = `{"id":"u1","name":"Ada","email":"ada@x.com","role":"admin","bio":"","createdAt":"2026-01-02T03:04:05Z"}`

type fakeAPI struct {
	mu       sync.Mutex
	expired  bool
	uploads  int
	deleted  []string
	statuses []map[string]any
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter22" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"Invalid email or password","code":"INVALID_CREDENTIALS"}`))
			return
		}
		w.Write([]byte(`{"success":true,"token":"tok-1","user":` + adminJSON + `}`))
	})
	r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if f.expired || r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"Token has expired","code":"EXPIRED_TOKEN"}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":` + adminJSON + `}`))
	})
	r.Get("/contact", func(w http.ResponseWriter, r *http.Request) {
		if f.expired {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"Token has expired","code":"EXPIRED_TOKEN"}`))
			return
		}
		w.Write([]byte(`{"contacts":[{"id":"c1","name":"Bob","email":"bob@x.com","subject":"Site rebuild","message":"hi",
			"status":"new","priority":"high","isSpam":false,"createdAt":"2026-03-01T10:00:00Z"}],
			"pagination":{"page":1,"limit":20,"total":1,"pages":1},
			"stats":{"total":1,"spam":0,"byStatus":{"new":1}}}`))
	})
	r.Put("/contact/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.statuses = append(f.statuses, body)
		f.mu.Unlock()
		w.Write([]byte(`{"success":true,"data":{"id":"` + chi.URLParam(r, "id") + `","status":"completed","priority":"medium"}}`))
	})
	r.Post("/upload/image", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.uploads++
		n := f.uploads
		f.mu.Unlock()
		id := "portfolio/img-" + string(rune('0'+n))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"image":{"url":"/media/` + id + `.png","publicId":"` + id + `","width":2,"height":1}}`))
	})
	r.Delete("/upload/*", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, chi.URLParam(r, "*"))
		f.mu.Unlock()
		w.Write([]byte(`{"success":true}`))
	})
	return r
}

type harness struct {
	app    *app
	api    *fakeAPI
	store  tokenstore.Store
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func setup(t *testing.T, stdin string) *harness {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.router())
	t.Cleanup(srv.Close)

	store, err := tokenstore.OpenFile(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	h := &harness{api: api, store: store, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	h.app = newApp(client.New(srv.URL, store), store, strings.NewReader(stdin), h.out, h.errOut)
	return h
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	prev := readPassword
	readPassword = func() ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = prev })
}

func TestLoginThenWhoami(t *testing.T) {
	h := setup(t, "ada@x.com\n")
	stubPassword(t, "hunter22")

	require.NoError(t, h.app.run(context.Background(), []string{"login"}))
	assert.Contains(t, h.out.String(), "Logged in as Ada (admin)")
	tok, ok := h.store.Get(tokenstore.KeyToken)
	require.True(t, ok)
	assert.Equal(t, "tok-1", tok)

	h.out.Reset()
	require.NoError(t, h.app.run(context.Background(), []string{"whoami"}))
	assert.Contains(t, h.out.String(), "Ada <ada@x.com>")
	assert.Contains(t, h.out.String(), "role: admin")
}

func TestLogin_BadPassword(t *testing.T) {
	h := setup(t, "")
	stubPassword(t, "wrong")

	err := h.app.run(context.Background(), []string{"login", "-email", "ada@x.com"})
	var ae *client.AuthError
	require.ErrorAs(t, err, &ae)
	_, ok := h.store.Get(tokenstore.KeyToken)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	h := setup(t, "")
	require.NoError(t, h.store.Set(tokenstore.KeyToken, "tok-1"))

	require.NoError(t, h.app.run(context.Background(), []string{"logout"}))
	_, ok := h.store.Get(tokenstore.KeyToken)
	assert.False(t, ok)
	assert.EqualError(t, h.app.run(context.Background(), []string{"whoami"}), "not logged in")
}

func TestContactsList(t *testing.T) {
	h := setup(t, "")
	require.NoError(t, h.store.Set(tokenstore.KeyToken, "tok-1"))

	require.NoError(t, h.app.run(context.Background(), []string{"contacts", "list", "-status", "new"}))
	out := h.out.String()
	assert.Contains(t, out, "c1")
	assert.Contains(t, out, "Site rebuild")
	assert.Contains(t, out, "page 1 of 1, 1 total, new 1")
}

func TestContactsList_RejectsUnknownStatus(t *testing.T) {
	h := setup(t, "")
	err := h.app.run(context.Background(), []string{"contacts", "list", "-status", "bogus"})
	var ve *client.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestContactsStatus_SendsOnlySetFlags(t *testing.T) {
	h := setup(t, "")
	require.NoError(t, h.store.Set(tokenstore.KeyToken, "tok-1"))

	require.NoError(t, h.app.run(context.Background(), []string{"contacts", "status", "c1", "-status", "completed"}))
	require.Len(t, h.api.statuses, 1)
	assert.Equal(t, map[string]any{"status": "completed"}, h.api.statuses[0])
	assert.Contains(t, h.out.String(), "c1 is now completed")
}

func TestExpiredSessionPrintsNotice(t *testing.T) {
	h := setup(t, "")
	require.NoError(t, h.store.Set(tokenstore.KeyToken, "tok-1"))
	h.api.expired = true

	err := h.app.run(context.Background(), []string{"contacts", "list"})
	var ae *client.AuthError
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.Expired)
	assert.Contains(t, h.errOut.String(), "Session expired")
	_, ok := h.store.Get(tokenstore.KeyToken)
	assert.False(t, ok)
}

func TestUploadAndDelete(t *testing.T) {
	h := setup(t, "")
	require.NoError(t, h.store.Set(tokenstore.KeyToken, "tok-1"))

	dir := t.TempDir()
	png := []byte("\x89PNG\r\n\x1a\n0000")
	var paths []string
	for _, name := range []string{"a.png", "b.png"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, png, 0o644))
		paths = append(paths, p)
	}

	require.NoError(t, h.app.run(context.Background(), append([]string{"upload", "-folder", "portfolio"}, paths...)))
	assert.Equal(t, 2, h.api.uploads)
	assert.Equal(t, 2, strings.Count(h.out.String(), "/media/portfolio/img-"))

	require.NoError(t, h.app.run(context.Background(), []string{"delete-upload", "portfolio/img-1"}))
	assert.Equal(t, []string{"portfolio/img-1"}, h.api.deleted)
}

func TestUpload_RejectsOversizeLocally(t *testing.T) {
	h := setup(t, "")
	p := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{1}, 2<<20), 0o644))

	err := h.app.run(context.Background(), []string{"upload", "-max-mb", "1", p})
	var ve *client.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, h.api.uploads)
}

func TestUsageErrors(t *testing.T) {
	h := setup(t, "")
	for _, args := range [][]string{
		{"frobnicate"},
		{"contacts"},
		{"contacts", "show"},
		{"upload"},
		{"delete-upload"},
	} {
		var ue usageError
		assert.ErrorAs(t, h.app.run(context.Background(), args), &ue, "%v", args)
	}
}
