package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ocupmed/platform/internal/shared/types"
)

func TestActingDoctorIDWithoutUser(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)

	if id := ActingDoctorID(r); !id.IsZero() {
		t.Errorf("unauthenticated request should resolve to no doctor, got %s", id)
	}
}

func TestDevMiddlewareInjectsIdentity(t *testing.T) {
	var captured types.ID
	var isAdmin bool
	handler := DevMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = ActingDoctorID(r)
		if u := GetUser(r.Context()); u != nil {
			isAdmin = u.IsAdmin()
		}
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if captured.IsZero() {
		t.Fatal("expected a development identity to be injected")
	}
	if captured != DevUserID {
		t.Errorf("expected the fixed development identity, got %s", captured)
	}
	if !isAdmin {
		t.Error("development identity should carry the admin role")
	}
}

func TestDevMiddlewareAllowsImpersonation(t *testing.T) {
	doctorID := types.NewID()

	var captured types.ID
	handler := DevMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = ActingDoctorID(r)
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	r.Header.Set("X-Acting-Doctor", doctorID.String())
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if captured != doctorID {
		t.Errorf("expected the impersonated doctor, got %s", captured)
	}
}

func TestDevMiddlewareKeepsExistingUser(t *testing.T) {
	doctor := &User{ID: types.NewID(), UserType: "doctor"}

	var captured *User
	handler := DevMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetUser(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
	r = r.WithContext(context.WithValue(r.Context(), UserContextKey, doctor))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if captured == nil || captured.ID != doctor.ID {
		t.Error("an already-authenticated user should not be replaced")
	}
}
