package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/growguru/invest-api/internal/httpx"
	"github.com/growguru/invest-api/internal/metrics"
	"github.com/growguru/invest-api/internal/model"
	"github.com/growguru/invest-api/internal/store"
)

// Handler serves POST /login and POST /signup.
type Handler struct {
	Store store.Store
	JWT   JWT
}

// authError is the error shape of the auth endpoints: a short code plus a
// human-readable message, always with HTTP 400 (matching the public API
// contract rather than the usual {"error": ...} body).
type authError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	httpx.WriteJSON(w, http.StatusBadRequest, authError{Code: code, Message: message})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

type loginResponse struct {
	User    *model.User     `json:"user"`
	Session sessionResponse `json:"session"`
}

// Login handles POST /login.
func (h Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.ReadJSON(r, &req, 1<<20); err != nil {
		writeAuthError(w, "AUTH_ERROR", "corpo da requisição inválido")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeAuthError(w, "AUTH_ERROR", "email e senha são obrigatórios")
		return
	}

	u, err := h.Store.GetUserByEmail(r.Context(), email)
	if err != nil || !CheckPassword(u.PasswordHash, req.Password) {
		writeAuthError(w, "AUTH_ERROR", "email ou senha incorretos")
		return
	}

	tok, exp, err := h.JWT.Sign(Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: u.AuthID,
		},
	})
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "erro ao gerar token")
		return
	}

	slog.Info("user logged in", "user_id", u.ID, "email", u.Email)

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		User: u,
		Session: sessionResponse{
			AccessToken: tok,
			TokenType:   "bearer",
			ExpiresAt:   exp.UTC().Format(time.RFC3339),
		},
	})
}

type signupRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	User struct {
		ID      string      `json:"id"`
		Email   string      `json:"email"`
		Profile *model.User `json:"profile"`
	} `json:"user"`
}

// Signup handles POST /signup: creates the auth identity and the profile
// row as one unit; a profile insert failure leaves nothing behind.
func (h Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.ReadJSON(r, &req, 1<<20); err != nil {
		writeAuthError(w, "DATABASE_ERROR", "corpo da requisição inválido")
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || req.Password == "" {
		writeAuthError(w, "DATABASE_ERROR", "nome, email e senha são obrigatórios")
		return
	}
	if len(req.Password) < 6 {
		writeAuthError(w, "DATABASE_ERROR", "a senha deve ter pelo menos 6 caracteres")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "erro ao processar cadastro")
		return
	}

	u := &model.User{
		AuthID:       uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeAuthError(w, "DATABASE_ERROR", "email já cadastrado")
			return
		}
		slog.Error("signup failed", "err", err)
		writeAuthError(w, "DATABASE_ERROR", "erro ao criar usuário")
		return
	}

	metrics.SignupsTotal.Inc()
	slog.Info("user signed up", "user_id", u.ID, "email", u.Email)

	var resp signupResponse
	resp.User.ID = u.AuthID
	resp.User.Email = u.Email
	resp.User.Profile = u
	httpx.WriteJSON(w, http.StatusOK, resp)
}
