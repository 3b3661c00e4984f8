package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/service"
)

func issue(t *testing.T, ja *jwtauth.JWTAuth, role model.Role, expires time.Time) string {
	t.Helper()
	_, token, err := ja.Encode(map[string]interface{}{
		jwt.IssuedAtKey:   expires.Add(-service.SessionTTL),
		jwt.ExpirationKey: expires,
		"userId":          int64(7),
		"name":            "Alice",
		"role":            string(role),
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return token
}

func TestAuthenticated(t *testing.T) {
	ja := service.NewJWTAuth("test-secret")
	valid := issue(t, ja, model.RoleOrdinary, time.Now().Add(time.Hour))
	expired := issue(t, ja, model.RoleOrdinary, time.Now().Add(-time.Hour))
	forged := issue(t, service.NewJWTAuth("another-secret"), model.RoleAdmin, time.Now().Add(time.Hour))

	testCases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"NoToken", func(r *http.Request) {}, http.StatusUnauthorized},
		{"Cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: valid})
		}, http.StatusOK},
		{"BearerHeader", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+valid)
		}, http.StatusOK},
		{"Expired", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: expired})
		}, http.StatusUnauthorized},
		{"WrongSecret", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: forged})
		}, http.StatusUnauthorized},
		{"Garbage", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: httpx.SessionCookie, Value: "garbage"})
		}, http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got model.Principal
			handler := Authenticated(ja)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = PrincipalFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/users", nil)
			tc.setup(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("Expected status %d, got %d. Body: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.status == http.StatusOK && (got.UserID != 7 || got.Name != "Alice" || got.Role != model.RoleOrdinary) {
				t.Errorf("Unexpected principal: %+v", got)
			}
		})
	}
}

func TestAdmin(t *testing.T) {
	testCases := []struct {
		name      string
		principal *model.Principal
		status    int
	}{
		{"NoPrincipal", nil, http.StatusUnauthorized},
		{"Ordinary", &model.Principal{UserID: 1, Role: model.RoleOrdinary}, http.StatusForbidden},
		{"Admin", &model.Principal{UserID: 2, Role: model.RoleAdmin}, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			handler := Admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("DELETE", "/api/polls/1/option", nil)
			if tc.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tc.principal))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, w.Code)
			}
			if called != (tc.status == http.StatusOK) {
				t.Errorf("Unexpected handler call: %v", called)
			}
		})
	}
}
