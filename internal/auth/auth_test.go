package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/auth"
	"github.com/growguru/invest-api/internal/httpx"
	"github.com/growguru/invest-api/internal/store"
)

const testSecret = "unit-test-secret-0123456789"

func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router, auth.JWT) {
	t.Helper()
	ms := store.NewMemoryStore()
	jwtCfg := auth.JWT{Secret: []byte(testSecret), TokenTTL: time.Hour}
	h := auth.Handler{Store: ms, JWT: jwtCfg}

	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/signup", h.Signup)

	// Probe endpoint behind the middleware.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwtCfg))
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.AuthIDFromContext(r.Context())
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"auth_id": id})
		})
	})
	return ms, r, jwtCfg
}

func post(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type signupBody struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestSignup(t *testing.T) {
	_, router, _ := newTestEnv(t)

	w := post(t, router, "/signup", signupBody{Name: "Ana", Email: "Ana@Example.com", Password: "segredo1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User struct {
			ID      string `json:"id"`
			Email   string `json:"email"`
			Profile struct {
				Name    string          `json:"nome"`
				Balance decimal.Decimal `json:"saldo"`
			} `json:"profile"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.User.ID == "" {
		t.Error("expected generated auth id")
	}
	if resp.User.Email != "ana@example.com" {
		t.Errorf("email = %q, want normalized ana@example.com", resp.User.Email)
	}
	if resp.User.Profile.Name != "Ana" {
		t.Errorf("nome = %q, want Ana", resp.User.Profile.Name)
	}
	if !resp.User.Profile.Balance.IsZero() {
		t.Errorf("saldo = %s, want 0", resp.User.Profile.Balance)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	_, router, _ := newTestEnv(t)

	post(t, router, "/signup", signupBody{Name: "Ana", Email: "ana@example.com", Password: "segredo1"})
	w := post(t, router, "/signup", signupBody{Name: "Outra Ana", Email: "ana@example.com", Password: "segredo2"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp authErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "DATABASE_ERROR" || resp.Message != "email já cadastrado" {
		t.Errorf("unexpected error: %+v", resp)
	}
}

func TestSignup_Validation(t *testing.T) {
	_, router, _ := newTestEnv(t)

	tests := []struct {
		name string
		body signupBody
	}{
		{"missing name", signupBody{Email: "a@b.com", Password: "segredo1"}},
		{"missing email", signupBody{Name: "Ana", Password: "segredo1"}},
		{"missing password", signupBody{Name: "Ana", Email: "a@b.com"}},
		{"short password", signupBody{Name: "Ana", Email: "a@b.com", Password: "12345"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, "/signup", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestLogin(t *testing.T) {
	_, router, jwtCfg := newTestEnv(t)

	post(t, router, "/signup", signupBody{Name: "Ana", Email: "ana@example.com", Password: "segredo1"})

	w := post(t, router, "/login", map[string]string{"email": "ana@example.com", "password": "segredo1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User struct {
			Name string `json:"nome"`
		} `json:"user"`
		Session struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresAt   string `json:"expires_at"`
		} `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.User.Name != "Ana" {
		t.Errorf("nome = %q, want Ana", resp.User.Name)
	}
	if resp.Session.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.Session.TokenType)
	}
	if _, err := time.Parse(time.RFC3339, resp.Session.ExpiresAt); err != nil {
		t.Errorf("expires_at not RFC3339: %v", err)
	}

	claims, err := jwtCfg.Verify(resp.Session.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Subject == "" {
		t.Error("token has no subject")
	}
	if claims.Email != "ana@example.com" {
		t.Errorf("token email = %q, want ana@example.com", claims.Email)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	_, router, _ := newTestEnv(t)

	post(t, router, "/signup", signupBody{Name: "Ana", Email: "ana@example.com", Password: "segredo1"})

	w := post(t, router, "/login", map[string]string{"email": "ana@example.com", "password": "errada"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp authErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "AUTH_ERROR" || resp.Message != "email ou senha incorretos" {
		t.Errorf("unexpected error: %+v", resp)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	_, router, _ := newTestEnv(t)

	w := post(t, router, "/login", map[string]string{"email": "ninguem@example.com", "password": "segredo1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	// Same message as a wrong password: the response never reveals whether
	// the account exists.
	var resp authErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "email ou senha incorretos" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestMiddleware(t *testing.T) {
	_, router, jwtCfg := newTestEnv(t)

	get := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/whoami", nil)
		if token != "" {
			req.Header.Set("Authorization", token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	if w := get(""); w.Code != http.StatusUnauthorized {
		t.Errorf("no header: expected 401, got %d", w.Code)
	}
	if w := get("Bearer not-a-token"); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", w.Code)
	}
	if w := get("Basic abc123"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong scheme: expected 401, got %d", w.Code)
	}

	expired, _, err := jwtCfg.Sign(auth.Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}
	if w := get("Bearer " + expired); w.Code != http.StatusUnauthorized {
		t.Errorf("expired token: expected 401, got %d", w.Code)
	}

	valid, _, err := jwtCfg.Sign(auth.Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: "user-1"},
	})
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	w := get("Bearer " + valid)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AuthID string `json:"auth_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AuthID != "user-1" {
		t.Errorf("auth_id = %q, want user-1", resp.AuthID)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("segredo1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "segredo1" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !auth.CheckPassword(hash, "segredo1") {
		t.Error("correct password rejected")
	}
	if auth.CheckPassword(hash, "errada") {
		t.Error("wrong password accepted")
	}
}
