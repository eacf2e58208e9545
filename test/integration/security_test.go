//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/staffhub/platform/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"

// ─── Lockout Tests ──────────────────────────────────────────────────────────

func TestLockout_AfterFiveFailures(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterEmployee("lockout@test.com", "securepass123", "")

	for i := 0; i < 5; i++ {
		resp := env.POST("/auth/login", map[string]string{
			"email": "lockout@test.com", "password": "wrongpass",
		}, "")
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// Even the correct password is refused while locked.
	resp := env.POST("/auth/login", map[string]string{
		"email": "lockout@test.com", "password": "securepass123",
	}, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	testutil.AssertErrorCode(t, resp, "ACCOUNT_LOCKED")
}

func TestLockout_ResetsOnSuccess(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.RegisterEmployee("resetlock@test.com", "securepass123", "")

	for i := 0; i < 4; i++ {
		resp := env.POST("/auth/login", map[string]string{
			"email": "resetlock@test.com", "password": "wrongpass",
		}, "")
		resp.Body.Close()
	}

	env.Login("resetlock@test.com", "securepass123")

	// One more failure after the success does not tip the counter.
	bad := env.POST("/auth/login", map[string]string{
		"email": "resetlock@test.com", "password": "wrongpass",
	}, "")
	bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	good := env.POST("/auth/login", map[string]string{
		"email": "resetlock@test.com", "password": "securepass123",
	}, "")
	defer good.Body.Close()
	assert.Equal(t, http.StatusOK, good.StatusCode)
}

// ─── Suspicious Login Tests ─────────────────────────────────────────────────

func TestSuspiciousLogin_NewDevice(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterEmployee("traveler@test.com", "securepass123", "")

	first := env.Login("traveler@test.com", "securepass123")
	require.False(t, first.Verdict.IsSuspicious)

	second := env.LoginAs("traveler@test.com", "securepass123", map[string]string{
		"User-Agent": androidUA,
	})

	assert.True(t, second.Verdict.IsSuspicious)
	assert.Contains(t, second.Verdict.Flags, "new_device")
	assert.Equal(t, 2, testutil.CountIdentities(t, env, userID), "new browser creates a second identity")
}

// ─── Device Block Tests ─────────────────────────────────────────────────────

func TestAdminBlock_RejectsNextLogin(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterEmployee("blocked@test.com", "securepass123", "")
	login := env.Login("blocked@test.com", "securepass123")
	admin := env.LoginAdmin("ops1@test.com", "securepass123")

	identityID := env.FirstIdentityID(userID)
	resp := env.AuthPOST("/admin/identities/"+identityID.String()+"/block",
		map[string]string{"reason": "stolen laptop"}, admin.Credentials.SessionToken)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Blocking the device does not cascade to the live session.
	me := env.AuthGET("/sessions/me", login.Credentials.SessionToken)
	me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)

	// A fresh login from the blocked device is refused.
	retry := env.POST("/auth/login", map[string]string{
		"email": "blocked@test.com", "password": "securepass123",
	}, "")
	defer retry.Body.Close()
	assert.Equal(t, http.StatusForbidden, retry.StatusCode)
	testutil.AssertErrorCode(t, retry, "DEVICE_BLOCKED")
}

func TestAdminBlock_RequiresReason(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterEmployee("noreason@test.com", "securepass123", "")
	env.Login("noreason@test.com", "securepass123")
	admin := env.LoginAdmin("ops2@test.com", "securepass123")
	identityID := env.FirstIdentityID(userID)

	resp := env.AuthPOST("/admin/identities/"+identityID.String()+"/block",
		map[string]string{}, admin.Credentials.SessionToken)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminUnblock_RestoresLogin(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterEmployee("unblock@test.com", "securepass123", "")
	env.Login("unblock@test.com", "securepass123")
	admin := env.LoginAdmin("ops3@test.com", "securepass123")
	identityID := env.FirstIdentityID(userID)

	block := env.AuthPOST("/admin/identities/"+identityID.String()+"/block",
		map[string]string{"reason": "investigation"}, admin.Credentials.SessionToken)
	block.Body.Close()
	require.Equal(t, http.StatusNoContent, block.StatusCode)

	unblock := env.AuthPOST("/admin/identities/"+identityID.String()+"/unblock",
		nil, admin.Credentials.SessionToken)
	unblock.Body.Close()
	require.Equal(t, http.StatusNoContent, unblock.StatusCode)

	again := env.POST("/auth/login", map[string]string{
		"email": "unblock@test.com", "password": "securepass123",
	}, "")
	defer again.Body.Close()
	assert.Equal(t, http.StatusOK, again.StatusCode)
}

// ─── Admin Role Gate Tests ──────────────────────────────────────────────────

func TestAdmin_ForbiddenForEmployee(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterEmployee("plain@test.com", "securepass123", "")
	login := env.Login("plain@test.com", "securepass123")
	identityID := env.FirstIdentityID(userID)

	// An ordinary employee session cannot reach any admin operation, not even
	// against its own identities and sessions.
	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/admin/sessions/stats"},
		{"POST", "/admin/identities/" + identityID.String() + "/block"},
		{"DELETE", "/admin/users/" + userID.String() + "/sessions"},
	}
	for _, p := range paths {
		var resp *http.Response
		switch p.method {
		case "GET":
			resp = env.AuthGET(p.path, login.Credentials.SessionToken)
		case "POST":
			resp = env.AuthPOST(p.path, map[string]string{"reason": "x"}, login.Credentials.SessionToken)
		case "DELETE":
			resp = env.AuthDELETE(p.path, login.Credentials.SessionToken)
		}
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s", p.method, p.path)
		testutil.AssertErrorCode(t, resp, "FORBIDDEN")
		resp.Body.Close()
	}

	// The target user's sessions survive the rejected termination attempt.
	assert.Equal(t, 1, testutil.CountActiveSessions(t, env, userID))
}

func TestAdmin_AllowedForAdminRole(t *testing.T) {
	env := testutil.NewTestEnv(t)
	admin := env.LoginAdmin("gatecheck@test.com", "securepass123")

	resp := env.AuthGET("/admin/sessions/stats", admin.Credentials.SessionToken)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ─── Identity Admin Tests ───────────────────────────────────────────────────

func TestAdminVerify_MarksIdentity(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterEmployee("verify@test.com", "securepass123", "")
	env.Login("verify@test.com", "securepass123")
	admin := env.LoginAdmin("ops4@test.com", "securepass123")
	identityID := env.FirstIdentityID(userID)

	resp := env.AuthPOST("/admin/identities/"+identityID.String()+"/verify",
		map[string]string{"method": "email"}, admin.Credentials.SessionToken)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var verified bool
	var method string
	env.Pool.QueryRow(t.Context(),
		"SELECT is_verified, verification_method FROM user_identities WHERE id = $1",
		identityID).Scan(&verified, &method)
	assert.True(t, verified)
	assert.Equal(t, "email", method)
}

func TestAdminListIdentities(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID := env.RegisterEmployee("idlist@test.com", "securepass123", "")
	env.Login("idlist@test.com", "securepass123")
	env.LoginAs("idlist@test.com", "securepass123", map[string]string{
		"User-Agent": androidUA,
	})
	admin := env.LoginAdmin("ops5@test.com", "securepass123")

	resp := env.AuthGET("/admin/users/"+userID.String()+"/identities", admin.Credentials.SessionToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Identities []struct {
			FingerprintHash string `json:"fingerprint_hash"`
		} `json:"identities"`
		Count int `json:"count"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, 2, result.Count)
	assert.NotEqual(t, result.Identities[0].FingerprintHash, result.Identities[1].FingerprintHash)
}

func TestAdminTerminateUserSessions(t *testing.T) {
	env := testutil.NewTestEnv(t)
	targetID := env.RegisterEmployee("target@test.com", "securepass123", "")
	env.Login("target@test.com", "securepass123")
	env.Login("target@test.com", "securepass123")

	operator := env.LoginAdmin("operator@test.com", "securepass123")

	resp := env.AuthDELETE("/admin/users/"+targetID.String()+"/sessions", operator.Credentials.SessionToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Terminated int64 `json:"terminated"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, int64(2), result.Terminated)
	assert.Equal(t, 0, testutil.CountActiveSessions(t, env, targetID))
}
