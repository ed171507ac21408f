package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authservice "perfumery-notify/internal/service/auth"
)

const (
	adminPass  = "Rose-Oud-Vetiver-2024!"
	viewerPass = "Amber-Musk-Sandal-77"
)

func testUsers() []User {
	return []User{
		{Name: "owner@shop.test", Password: adminPass, Role: authservice.RoleAdmin},
		{Name: "demo@shop.test", Password: viewerPass, Role: authservice.RoleViewer},
	}
}

func newTestService(t *testing.T) (*authservice.AuthService, *authservice.Tokens) {
	t.Helper()
	tokens, err := authservice.NewTokens("test-secret-with-enough-entropy-123", time.Hour)
	require.NoError(t, err)
	provider := NewStaticProvider(testUsers(), 12, []string{"password"})
	public := []string{"/auth/token", "/health", "/metrics", "/contact-messages", "/checkout"}
	return authservice.NewAuthService(provider, tokens, public), tokens
}

func TestStaticProvider_ValidateCredentials(t *testing.T) {
	p := NewStaticProvider(append(testUsers(), User{Name: "", Password: "ignored-password"}), 12, []string{"password"})

	tests := []struct {
		name    string
		creds   authservice.Credentials
		wantErr string
	}{
		{"admin", authservice.Credentials{Username: "owner@shop.test", Password: adminPass}, ""},
		{"viewer", authservice.Credentials{Username: "demo@shop.test", Password: viewerPass}, ""},
		{"wrong password", authservice.Credentials{Username: "owner@shop.test", Password: viewerPass}, "invalid credentials"},
		{"unknown user", authservice.Credentials{Username: "nobody", Password: adminPass}, "invalid credentials"},
		{"empty", authservice.Credentials{}, "must not be empty"},
		{"short", authservice.Credentials{Username: "owner@shop.test", Password: "short"}, "at least 12"},
		{"weak prefix", authservice.Credentials{Username: "owner@shop.test", Password: "password-1234"}, "weak password"},
		{"skipped blank account", authservice.Credentials{Username: "", Password: "ignored-password"}, "must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.ValidateCredentials(context.Background(), tt.creds)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStaticProvider_IdentifyUser(t *testing.T) {
	p := NewStaticProvider(testUsers(), 12, nil)

	role, err := p.IdentifyUser(context.Background(), "owner@shop.test")
	require.NoError(t, err)
	assert.Equal(t, authservice.RoleAdmin, role)

	role, err = p.IdentifyUser(context.Background(), "demo@shop.test")
	require.NoError(t, err)
	assert.Equal(t, authservice.RoleViewer, role)

	_, err = p.IdentifyUser(context.Background(), "stranger")
	assert.Error(t, err)
	_, err = p.IdentifyUser(context.Background(), "")
	assert.Error(t, err)

	assert.Equal(t, "static", p.Name())
	assert.Equal(t, 12, p.GetRequirements().MinPasswordLength)
}

func TestCheckRolePermission(t *testing.T) {
	tests := []struct {
		role, method, path string
		want               bool
	}{
		{authservice.RoleAdmin, "POST", "/orders/abc/notify", true},
		{authservice.RoleAdmin, "POST", "/telegram/test", true},
		{authservice.RoleViewer, "GET", "/telegram/recipients", true},
		{authservice.RoleViewer, "POST", "/telegram/recipients", false},
		{authservice.RoleViewer, "POST", "/orders/abc/notify", false},
		{authservice.RoleViewer, "GET", "/orders/abc", true},
		{authservice.RoleViewer, "PATCH", "/orders/abc/status", false},
		{authservice.RoleViewer, "GET", "/inbox", true},
		{authservice.RoleViewer, "GET", "/inbox/12", true},
		{authservice.RoleViewer, "POST", "/inbox/12/read", false},
		{authservice.RoleViewer, "GET", "/telegram/recipients/extra", false},
		{authservice.RoleService, "GET", "/telegram/recipients", false},
		{"", "GET", "/telegram/recipients", false},
		{authservice.RoleAdmin, "TRACE", "/orders", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, checkRolePermission(tt.role, tt.method, tt.path), "%s %s %s", tt.role, tt.method, tt.path)
	}
}

func TestMatchesPathPattern(t *testing.T) {
	patterns := []string{"/orders/*", "/telegram/recipients"}
	assert.True(t, matchesPathPattern("/orders", patterns))
	assert.True(t, matchesPathPattern("/orders/1/notify", patterns))
	assert.True(t, matchesPathPattern("/telegram/recipients", patterns))
	assert.False(t, matchesPathPattern("/ordersx", patterns))
	assert.False(t, matchesPathPattern("/telegram/test", patterns))
	assert.True(t, matchesPathPattern("/anything", []string{"/*"}))
}

func okHandler(t *testing.T, wantIdentity bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := IdentityFromContext(r.Context())
		assert.Equal(t, wantIdentity, ok)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthz(t *testing.T) {
	svc, tokens := newTestService(t)
	adminToken, _, err := tokens.Issue("owner@shop.test", authservice.RoleAdmin)
	require.NoError(t, err)
	viewerToken, _, err := tokens.Issue("demo@shop.test", authservice.RoleViewer)
	require.NoError(t, err)

	tests := []struct {
		name     string
		method   string
		path     string
		header   string
		want     int
		identity bool
	}{
		{"public health", "GET", "/health", "", http.StatusNoContent, false},
		{"public contact form", "POST", "/contact-messages", "", http.StatusNoContent, false},
		{"public checkout", "POST", "/checkout", "", http.StatusNoContent, false},
		{"missing token", "POST", "/orders/1/notify", "", http.StatusUnauthorized, false},
		{"not bearer", "POST", "/orders/1/notify", "Basic abc", http.StatusUnauthorized, false},
		{"garbage token", "POST", "/orders/1/notify", "Bearer garbage", http.StatusUnauthorized, false},
		{"admin", "POST", "/orders/1/notify", "Bearer " + adminToken, http.StatusNoContent, true},
		{"viewer read", "GET", "/telegram/recipients", "Bearer " + viewerToken, http.StatusNoContent, true},
		{"viewer write", "POST", "/orders/1/notify", "Bearer " + viewerToken, http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Authz(svc)(okHandler(t, tt.identity))
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthz_CountsForbidden(t *testing.T) {
	svc, tokens := newTestService(t)
	viewerToken, _, err := tokens.Issue("demo@shop.test", authservice.RoleViewer)
	require.NoError(t, err)

	forbiddenAttempts.Reset()
	req := httptest.NewRequest("POST", "/telegram/test", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	Authz(svc)(okHandler(t, false)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(forbiddenAttempts.WithLabelValues(authservice.RoleViewer, "POST")))
}

func TestTokenHandler(t *testing.T) {
	svc, tokens := newTestService(t)
	h := TokenHandler(svc)

	t.Run("success", func(t *testing.T) {
		authRequests.Reset()
		body := `{"username":"owner@shop.test","password":"` + adminPass + `"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", "/auth/token", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp tokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, authservice.RoleAdmin, resp.Role)

		id, err := tokens.Verify(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "owner@shop.test", id.Subject)
		assert.Equal(t, 1.0, testutil.ToFloat64(authRequests.WithLabelValues(authservice.RoleAdmin, "success")))
	})

	t.Run("bad credentials", func(t *testing.T) {
		authRequests.Reset()
		body := `{"username":"owner@shop.test","password":"Wrong-Password-999"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", "/auth/token", strings.NewReader(body)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(authRequests.WithLabelValues("unknown", "failure")))
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", "/auth/token", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/auth/token", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	})
}

func TestValidateAdmin(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr string
	}{
		{"strong", User{Name: "owner", Password: adminPass}, ""},
		{"no user", User{Password: adminPass}, "ADMIN_USER must not be empty"},
		{"no password", User{Name: "owner"}, "must not be empty"},
		{"short", User{Name: "owner", Password: "Short-1"}, "at least 12"},
		{"numeric run", User{Name: "owner", Password: "123456789012"}, "numeric pattern"},
		{"repeated", User{Name: "owner", Password: "aaaaaaaaaaaa"}, "numeric pattern"},
		{"keyboard", User{Name: "owner", Password: "My-qwerty-pass-9"}, "keyboard pattern"},
		{"weak prefix", User{Name: "owner", Password: "Password1234"}, "common weak passwords"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAdmin(tt.user)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateViewer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	admin := User{Name: "owner", Password: adminPass, Role: authservice.RoleAdmin}

	_, ok := ValidateViewer(admin, User{}, logger)
	assert.False(t, ok)

	_, ok = ValidateViewer(admin, User{Name: "owner", Password: viewerPass}, logger)
	assert.False(t, ok, "viewer must differ from admin")

	_, ok = ValidateViewer(admin, User{Name: "demo", Password: "short"}, logger)
	assert.False(t, ok)

	v, ok := ValidateViewer(admin, User{Name: "demo", Password: viewerPass, Role: authservice.RoleViewer}, logger)
	assert.True(t, ok)
	assert.Equal(t, "demo", v.Name)
}

func TestPasswordPatterns(t *testing.T) {
	assert.True(t, isSimpleNumericPattern("987654321098"))
	assert.True(t, isSimpleNumericPattern("890123456789"))
	assert.False(t, isSimpleNumericPattern("193847561029"))
	assert.False(t, isSimpleNumericPattern("12345"))
	assert.True(t, isKeyboardPattern("xxYTREWQxx"))
	assert.False(t, isKeyboardPattern(adminPass))
	assert.Equal(t, "cba", reverse("abc"))
}
