package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/terra-sneakers/terra-backend/pkg/auth"
	"github.com/terra-sneakers/terra-backend/pkg/config"
	"github.com/terra-sneakers/terra-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "terra", ExpirationMinutes: 60}

func mintTestToken(t *testing.T, role enums.AdminRole) (string, uuid.UUID) {
	t.Helper()
	staffID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		StaffID: staffID,
		Email:   "ops@terra.example",
		Role:    role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, staffID
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	resp := httptest.NewRecorder()
	AdminAuth(testJWT, nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	AdminAuth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminAuthSeedsContext(t *testing.T) {
	token, staffID := mintTestToken(t, enums.AdminRoleInventory)

	var gotStaff, gotRole string
	handler := AdminAuth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStaff = StaffIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotStaff != staffID.String() || gotRole != string(enums.AdminRoleInventory) {
		t.Fatalf("unexpected context %s %s", gotStaff, gotRole)
	}
}

func TestRequireRole(t *testing.T) {
	inventoryToken, _ := mintTestToken(t, enums.AdminRoleInventory)
	adminToken, _ := mintTestToken(t, enums.AdminRoleAdmin)
	handler := AdminAuth(testJWT, nil)(RequireRole(nil, enums.AdminRoleAdmin)(okHandler()))

	for token, want := range map[string]int{inventoryToken: http.StatusForbidden, adminToken: http.StatusOK} {
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("expected %d got %d", want, resp.Code)
		}
	}
}
