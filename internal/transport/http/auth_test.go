package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "test-jwt-secret"

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	now := time.Now()
	valid, err := IssueAdminToken(testJWTSecret, "ops@example.com", time.Hour, now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	expired, err := IssueAdminToken(testJWTSecret, "ops@example.com", time.Minute, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	wrongSecret, err := IssueAdminToken("other-secret", "ops@example.com", time.Hour, now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "ops@example.com",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Role: adminRole,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{name: "valid", header: "Bearer " + valid, expectedStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, expectedStatus: http.StatusOK},
		{name: "missing", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "malformed", header: "Token " + valid, expectedStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, expectedStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + wrongSecret, expectedStatus: http.StatusUnauthorized},
		{name: "missing role", header: "Bearer " + noRole, expectedStatus: http.StatusUnauthorized},
		{name: "none algorithm", header: "Bearer " + noneAlg, expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var subject string
			handler := RequireAdmin(testJWTSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject, _ = AdminFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin/summary", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedStatus == http.StatusOK && subject != "ops@example.com" {
				t.Fatalf("expected subject in context, got %q", subject)
			}
		})
	}
}

func TestRequireAdmin_NoSecretRejectsEverything(t *testing.T) {
	t.Parallel()

	token, err := IssueAdminToken(testJWTSecret, "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	handler := RequireAdmin("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin/summary", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestIssueAdminToken_RequiresSecretAndSubject(t *testing.T) {
	t.Parallel()

	if _, err := IssueAdminToken("", "ops", time.Hour, time.Now()); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := IssueAdminToken(testJWTSecret, " ", time.Hour, time.Now()); err == nil {
		t.Fatal("expected error without subject")
	}
}
