package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/service"
	"github.com/mbolis/quick-poll/testutil"
)

func setupAuth(t *testing.T) (*service.AuthService, *jwtauth.JWTAuth, *service.UserService) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	users := service.NewUserService(db)
	ja := service.NewJWTAuth(testutil.TestSecret)
	return service.NewAuthService(users, ja), ja, users
}

func TestLoginByNationalID(t *testing.T) {
	ctx := context.Background()
	auth, ja, users := setupAuth(t)

	user, err := users.CreateUser(ctx, "Alice", "11111111111")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	before := time.Now().Truncate(time.Second)
	session, err := auth.LoginByNationalID(ctx, " 11111111111 ")
	if err != nil {
		t.Fatalf("LoginByNationalID failed: %v", err)
	}

	if session.User.ID != user.ID || session.User.Role != model.RoleOrdinary {
		t.Errorf("Unexpected session user: %+v", session.User)
	}
	if session.Token == "" {
		t.Fatal("Expected a token")
	}

	token, err := jwtauth.VerifyToken(ja, session.Token)
	if err != nil {
		t.Fatalf("Token does not verify: %v", err)
	}
	if ttl := token.Expiration().Sub(token.IssuedAt()); ttl != 24*time.Hour {
		t.Errorf("Expected a 24h session, got %v", ttl)
	}
	if token.IssuedAt().Before(before) {
		t.Errorf("Token issued in the past: %v", token.IssuedAt())
	}
	if !token.Expiration().Equal(session.ExpiresAt) {
		t.Errorf("ExpiresAt %v does not match token expiry %v", session.ExpiresAt, token.Expiration())
	}
	if token.JwtID() == "" {
		t.Error("Expected a token id")
	}

	claims, err := token.AsMap(ctx)
	if err != nil {
		t.Fatalf("AsMap failed: %v", err)
	}
	principal, err := service.Principal(claims)
	if err != nil {
		t.Fatalf("Principal failed: %v", err)
	}
	if principal.UserID != user.ID || principal.Name != "Alice" || principal.Role != model.RoleOrdinary {
		t.Errorf("Unexpected principal: %+v", principal)
	}
}

func TestLoginByNationalID_TokensAreUnique(t *testing.T) {
	ctx := context.Background()
	auth, _, users := setupAuth(t)

	if _, err := users.CreateUser(ctx, "Alice", "11111111111"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	first, err := auth.LoginByNationalID(ctx, "11111111111")
	if err != nil {
		t.Fatalf("LoginByNationalID failed: %v", err)
	}
	second, err := auth.LoginByNationalID(ctx, "11111111111")
	if err != nil {
		t.Fatalf("LoginByNationalID failed: %v", err)
	}
	if first.Token == second.Token {
		t.Error("Expected distinct tokens for distinct logins")
	}
}

func TestLoginByNationalID_Errors(t *testing.T) {
	auth, _, _ := setupAuth(t)

	testCases := []struct {
		name       string
		nationalID string
		want       error
	}{
		{"Blank", "  ", service.ErrValidation},
		{"Unknown", "99999999999", service.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.LoginByNationalID(context.Background(), tc.nationalID)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPrincipal(t *testing.T) {
	testCases := []struct {
		name    string
		claims  map[string]interface{}
		want    model.Principal
		wantErr bool
	}{
		{
			name:   "FloatID",
			claims: map[string]interface{}{"userId": float64(7), "name": "Alice", "role": "ADMIN"},
			want:   model.Principal{UserID: 7, Name: "Alice", Role: model.RoleAdmin},
		},
		{
			name:   "JSONNumberID",
			claims: map[string]interface{}{"userId": json.Number("8"), "name": "Bob", "role": "ORDINARY"},
			want:   model.Principal{UserID: 8, Name: "Bob", Role: model.RoleOrdinary},
		},
		{
			name:    "MissingID",
			claims:  map[string]interface{}{"name": "Alice", "role": "ADMIN"},
			wantErr: true,
		},
		{
			name:    "StringID",
			claims:  map[string]interface{}{"userId": "7", "role": "ADMIN"},
			wantErr: true,
		},
		{
			name:    "UnknownRole",
			claims:  map[string]interface{}{"userId": float64(7), "role": "ROOT"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := service.Principal(tc.claims)
			if tc.wantErr {
				if !errors.Is(err, service.ErrUnauthorized) {
					t.Errorf("Expected ErrUnauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Principal failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestCanActFor(t *testing.T) {
	testCases := []struct {
		name      string
		principal model.Principal
		userID    int64
		allowed   bool
	}{
		{"Self", model.Principal{UserID: 7, Role: model.RoleOrdinary}, 7, true},
		{"Other", model.Principal{UserID: 7, Role: model.RoleOrdinary}, 8, false},
		{"AdminOnOther", model.Principal{UserID: 1, Role: model.RoleAdmin}, 8, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := service.CanActFor(tc.principal, tc.userID)
			if tc.allowed && err != nil {
				t.Errorf("Expected access, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, service.ErrForbidden) {
				t.Errorf("Expected ErrForbidden, got %v", err)
			}
		})
	}
}
