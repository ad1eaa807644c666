package api

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/nerrad567/pizza-service/internal/auth"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth", map[string]any{
		"name":     "pizza diner",
		"email":    "d@jwt.com",
		"password": "diner",
		"roles":    []map[string]string{{"role": "admin"}},
	}, "")
	expectStatus(t, rec, http.StatusOK)

	resp := decode[sessionResponse](t, rec)
	if resp.Token == "" {
		t.Fatal("register returned no token")
	}
	if !auth.HasRole(resp.User, auth.RoleDiner) || auth.IsAdmin(resp.User) {
		t.Errorf("roles = %v, want diner only", resp.User.Roles)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != tokenCookie {
		t.Fatalf("cookies = %v, want one %q cookie", cookies, tokenCookie)
	}
	if c := cookies[0]; !c.HttpOnly || c.SameSite != http.SameSiteStrictMode || c.Value != resp.Token {
		t.Errorf("cookie = %+v, want HttpOnly SameSite=Strict carrying the token", c)
	}
	if !slices.Equal(env.metrics.attempts, []string{AuthRegister}) {
		t.Errorf("auth metrics = %v", env.metrics.attempts)
	}
}

func TestRegister_Rejects(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "diner", "d@jwt.com")

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing password", map[string]string{"name": "x", "email": "x@jwt.com"}, http.StatusBadRequest},
		{"duplicate email", map[string]string{"name": "y", "email": "d@jwt.com", "password": "p"}, http.StatusConflict},
		{"not JSON", "just a string", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPost, "/api/auth", tt.body, ""), tt.want)
		})
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"wrong password", map[string]string{"email": auth.DefaultAdminEmail, "password": "nope"}, http.StatusNotFound},
		{"unknown email", map[string]string{"email": "ghost@jwt.com", "password": "x"}, http.StatusNotFound},
		{"missing password", map[string]string{"email": auth.DefaultAdminEmail}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPut, "/api/auth", tt.body, ""), tt.want)
		})
	}

	if !slices.Equal(env.metrics.attempts, []string{AuthFailure, AuthFailure}) {
		t.Errorf("auth metrics = %v, want two failures", env.metrics.attempts)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	user, first := env.register(t, "diner", "d@jwt.com")
	second := env.login(t, "d@jwt.com", "pw-diner")

	if first == second {
		t.Fatal("two logins returned the same token")
	}

	rec := env.do(t, http.MethodGet, "/api/user/me", nil, first)
	expectStatus(t, rec, http.StatusOK)
	if me := decode[auth.User](t, rec); me.ID != user.ID || me.Email != "d@jwt.com" {
		t.Errorf("me = %+v, want user %d", me, user.ID)
	}

	rec = env.do(t, http.MethodDelete, "/api/auth", nil, first)
	expectStatus(t, rec, http.StatusOK)
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("logout cookies = %v, want the token cookie cleared", c)
	}

	// The logged-out token is dead although its signature still verifies;
	// the other login is unaffected.
	expectStatus(t, env.do(t, http.MethodGet, "/api/user/me", nil, first), http.StatusUnauthorized)
	expectStatus(t, env.do(t, http.MethodGet, "/api/user/me", nil, second), http.StatusOK)
}

func TestPrincipalResolution(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "diner", "d@jwt.com")

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookie, Value: token})
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		expectStatus(t, rec, http.StatusOK)
	})

	t.Run("no token", func(t *testing.T) {
		expectStatus(t, env.do(t, http.MethodGet, "/api/user/me", nil, ""), http.StatusUnauthorized)
	})

	t.Run("tampered signature", func(t *testing.T) {
		last := token[len(token)-1]
		swapped := byte('A')
		if last == 'A' {
			swapped = 'B'
		}
		tampered := token[:len(token)-1] + string(swapped)
		expectStatus(t, env.do(t, http.MethodGet, "/api/user/me", nil, tampered), http.StatusUnauthorized)
	})

	t.Run("never issued", func(t *testing.T) {
		forged, err := auth.NewTokenIssuer(testJWTSecret, 0).Issue(&auth.User{
			ID:    1,
			Name:  "forger",
			Roles: []auth.RoleAssignment{auth.AdminRole()},
		})
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		expectStatus(t, env.do(t, http.MethodGet, "/api/user/me", nil, forged), http.StatusUnauthorized)
	})

	t.Run("logout without session", func(t *testing.T) {
		expectStatus(t, env.do(t, http.MethodDelete, "/api/auth", nil, ""), http.StatusUnauthorized)
	})
}
