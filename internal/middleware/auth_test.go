package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := ServiceClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Feature: vms-inventory, Property 10: Protected endpoints reject missing tokens
func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest(method, "/vms/orders/"+pathSuffix, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Logf("FAIL: %s %s returned %d", method, req.URL.Path, w.Code)
				return false
			}
			return true
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: vms-inventory, Property 11: Expired tokens are rejected
func TestProperty_ExpiredTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("expired tokens are rejected with 401", prop.ForAll(
		func(subject string, role string) bool {
			handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

			req := httptest.NewRequest("GET", "/vms/orders", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, "svc-"+subject, role, -time.Hour))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf(RoleVMS, RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: vms-inventory, Property 12: Valid tokens expose the caller
func TestProperty_ValidTokensExposeCaller(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens put caller id and role in the context", prop.ForAll(
		func(subject string, role string) bool {
			subject = "svc-" + subject
			var gotID, gotRole string

			handler := AuthMiddleware(testSecret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetCallerID(r.Context())
				gotRole, _ = GetCallerRole(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("PUT", "/vms/orders/1/ship", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, subject, role, time.Hour))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK || gotID != subject || gotRole != role {
				t.Logf("FAIL: status %d, caller %q/%q", w.Code, gotID, gotRole)
				return false
			}
			return true
		},
		gen.AlphaString(),
		gen.OneConstOf(RoleVMS, RoleAdmin),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddleware_RejectsMalformedCredentials(t *testing.T) {
	handler := AuthMiddleware(testSecret, zap.NewNop())(okHandler())

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ServiceClaims{
		Role:             RoleVMS,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "svc", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	cases := map[string]string{
		"no bearer prefix": signToken(t, "svc", RoleVMS, time.Hour),
		"garbage token":    "Bearer not-a-jwt",
		"wrong secret":     "Bearer " + foreign,
		"missing role":     "Bearer " + signToken(t, "svc", "", time.Hour),
		"missing subject":  "Bearer " + signToken(t, "", RoleVMS, time.Hour),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/vms/orders", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	guard := RequireRole(zap.NewNop(), RoleAdmin, RoleVMS)

	cases := []struct {
		role   string
		status int
	}{
		{RoleAdmin, http.StatusOK},
		{RoleVMS, http.StatusOK},
		{"reporting", http.StatusForbidden},
	}

	for _, tc := range cases {
		handler := AuthMiddleware(testSecret, zap.NewNop())(guard(okHandler()))

		req := httptest.NewRequest("POST", "/api/products", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "svc", tc.role, time.Hour))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != tc.status {
			t.Errorf("role %q: expected %d, got %d", tc.role, tc.status, w.Code)
		}
	}

	// without AuthMiddleware there is no role at all
	w := httptest.NewRecorder()
	guard(okHandler()).ServeHTTP(w, httptest.NewRequest("POST", "/api/products", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 without caller, got %d", w.Code)
	}
}
