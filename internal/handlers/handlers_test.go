package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/gluk-w/webterm/internal/auth"
	"github.com/gluk-w/webterm/internal/bridge"
	"github.com/gluk-w/webterm/internal/crypto"
	"github.com/gluk-w/webterm/internal/database"
	"github.com/gluk-w/webterm/internal/middleware"
	"github.com/gluk-w/webterm/internal/profile"
)

const testAdminPassword = "admin-pass"

type testEnv struct {
	h        *Handler
	db       *gorm.DB
	crypt    *crypto.Service
	sessions *auth.SessionStore
	admin    *database.User
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	crypt, err := crypto.NewService(dir)
	if err != nil {
		t.Fatalf("crypto service: %v", err)
	}

	hash, err := auth.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	admin := &database.User{Username: "admin", PasswordHash: hash, Role: "admin"}
	if err := database.CreateUser(db, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	sessions := auth.NewSessionStore(time.Hour)
	profiles := profile.NewStore(db, crypt)
	b := bridge.New(bridge.Config{ConnectTimeout: 5 * time.Second})
	h := New(db, crypt, profiles, sessions, b, 5*time.Second)

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessions, db, false))
			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.CurrentUser)
			r.Get("/connections", h.ListConnections)
			r.Post("/connections", h.CreateConnection)
			r.Get("/connections/{id}", h.GetConnection)
			r.Put("/connections/{id}", h.UpdateConnection)
			r.Delete("/connections/{id}", h.DeleteConnection)
			r.Post("/connections/{id}/install-key", h.InstallKey)
			r.Post("/keys/generate", h.GenerateKey)
			r.Post("/keys/fingerprint", h.FingerprintKey)
			r.Get("/terminal", h.Terminal)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testEnv{
		h:        h,
		db:       db,
		crypt:    crypt,
		sessions: sessions,
		admin:    admin,
		server:   server,
	}
}

// login performs a real login request and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	resp := e.request(t, "POST", "/api/auth/login", map[string]string{
		"username": "admin",
		"password": testAdminPassword,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	t.Fatal("login response carried no session cookie")
	return nil
}

// request sends a JSON request to the test server.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
