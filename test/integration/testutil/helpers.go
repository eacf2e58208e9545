//go:build integration

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// LoginResponse mirrors the /auth/login response body.
type LoginResponse struct {
	Credentials struct {
		SessionID    uuid.UUID `json:"session_id"`
		SessionToken string    `json:"session_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
	} `json:"credentials"`
	Verdict struct {
		IsSuspicious bool     `json:"is_suspicious"`
		Flags        []string `json:"flags"`
		RiskLevel    string   `json:"risk_level"`
	} `json:"verdict"`
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// RegisterEmployee creates a new employee account and returns its ID.
func (env *TestEnv) RegisterEmployee(email, password, fullName string) uuid.UUID {
	env.t.Helper()
	resp := env.POST("/auth/register", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		env.t.Fatalf("RegisterEmployee: expected 201, got %d", resp.StatusCode)
	}

	var result struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("RegisterEmployee: decode: %v", err)
	}
	return result.ID
}

// Login authenticates an employee from the default test browser and returns
// the full login response.
func (env *TestEnv) Login(email, password string) LoginResponse {
	env.t.Helper()
	return env.LoginAs(email, password, nil)
}

// LoginAs authenticates with custom headers layered over the default browser
// profile. Use User-Agent and X-Forwarded-For to simulate another device or
// network.
func (env *TestEnv) LoginAs(email, password string, headers map[string]string) LoginResponse {
	env.t.Helper()
	resp := env.PostWithHeaders("/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, headers)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("LoginAs: expected 200, got %d", resp.StatusCode)
	}

	var result LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("LoginAs: decode: %v", err)
	}
	return result
}

// DefaultUserAgent is the browser every helper logs in with unless a test
// overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a POST request with optional bearer token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return env.PostWithHeaders(path, body, headers)
}

// PostWithHeaders performs a POST request with custom headers. A default
// User-Agent and Accept-Language are set so fingerprints are stable across
// helper calls.
func (env *TestEnv) PostWithHeaders(path string, body interface{}, headers map[string]string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("POST %s: encode: %v", path, err)
		}
	}
	req, err := http.NewRequest("POST", env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("POST %s: new request: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("GET", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("AuthGET %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("AuthGET %s: %v", path, err)
	}
	return resp
}

// AuthPOST performs an authenticated POST request.
func (env *TestEnv) AuthPOST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.POST(path, body, token)
}

// AuthDELETE performs an authenticated DELETE request.
func (env *TestEnv) AuthDELETE(path, token string) *http.Response {
	env.t.Helper()
	req, err := http.NewRequest("DELETE", env.Server.URL+path, nil)
	if err != nil {
		env.t.Fatalf("DELETE %s: new request: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

// FirstIdentityID returns the ID of the most recently seen identity for a user.
func (env *TestEnv) FirstIdentityID(userID uuid.UUID) uuid.UUID {
	env.t.Helper()
	ctx, cancel := timeoutCtx()
	defer cancel()

	var id uuid.UUID
	err := env.Pool.QueryRow(ctx,
		"SELECT id FROM user_identities WHERE user_id = $1 ORDER BY last_seen DESC LIMIT 1",
		userID).Scan(&id)
	if err != nil {
		env.t.Fatalf("FirstIdentityID: %v", err)
	}
	return id
}

// PromoteToAdmin flips an employee's role to admin directly in the database.
// Registration never grants elevated roles, so tests that exercise the admin
// surface promote their operator this way.
func (env *TestEnv) PromoteToAdmin(userID uuid.UUID) {
	env.t.Helper()
	ctx, cancel := timeoutCtx()
	defer cancel()

	tag, err := env.Pool.Exec(ctx, "UPDATE employees SET role = 'admin' WHERE id = $1", userID)
	if err != nil {
		env.t.Fatalf("PromoteToAdmin: %v", err)
	}
	if tag.RowsAffected() != 1 {
		env.t.Fatalf("PromoteToAdmin: no employee with id %s", userID)
	}
}

// LoginAdmin registers a fresh admin account and returns its login response.
func (env *TestEnv) LoginAdmin(email, password string) LoginResponse {
	env.t.Helper()
	id := env.RegisterEmployee(email, password, "Ops Admin")
	env.PromoteToAdmin(id)
	return env.Login(email, password)
}
