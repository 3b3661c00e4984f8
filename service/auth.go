package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/gofrs/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-poll/model"
)

// SessionTTL is the lifetime of a session token, counted from issuance.
const SessionTTL = 24 * time.Hour

const (
	claimUserID = "userId"
	claimName   = "name"
	claimRole   = "role"
)

func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// AuthService issues session tokens. Knowing a registered national id is
// enough to log in: there is no password.
type AuthService struct {
	users *UserService
	jwt   *jwtauth.JWTAuth
	now   func() time.Time
}

func NewAuthService(users *UserService, ja *jwtauth.JWTAuth) *AuthService {
	return &AuthService{users: users, jwt: ja, now: time.Now}
}

func (s *AuthService) LoginByNationalID(ctx context.Context, nationalID string) (*model.Session, error) {
	if strings.TrimSpace(nationalID) == "" {
		return nil, newError(ErrValidation, "national id is required")
	}

	user, err := s.users.FindByNationalID(ctx, nationalID)
	if err != nil {
		return nil, err
	}

	jti, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "auth.token_id")
	}

	// JWT dates have second precision
	issued := s.now().Truncate(time.Second)
	expires := issued.Add(SessionTTL)

	_, token, err := s.jwt.Encode(map[string]interface{}{
		jwt.SubjectKey:    strconv.FormatInt(user.ID, 10),
		jwt.JwtIDKey:      jti.String(),
		jwt.IssuedAtKey:   issued,
		jwt.ExpirationKey: expires,
		claimUserID:       user.ID,
		claimName:         user.Name,
		claimRole:         string(user.Role),
	})
	if err != nil {
		return nil, errors.Wrap(err, "auth.encode_token")
	}

	return &model.Session{User: *user, Token: token, ExpiresAt: expires}, nil
}

// Principal extracts the session identity from verified token claims.
func Principal(claims map[string]interface{}) (model.Principal, error) {
	var p model.Principal

	switch id := claims[claimUserID].(type) {
	case float64:
		p.UserID = int64(id)
	case int64:
		p.UserID = id
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return p, newError(ErrUnauthorized, "malformed token")
		}
		p.UserID = n
	default:
		return p, newError(ErrUnauthorized, "malformed token")
	}

	p.Name, _ = claims[claimName].(string)

	role, _ := claims[claimRole].(string)
	p.Role = model.Role(role)
	if p.Role != model.RoleOrdinary && p.Role != model.RoleAdmin {
		return p, newError(ErrUnauthorized, "malformed token")
	}

	return p, nil
}

// CanActFor allows a principal to touch the given user's data when it is that
// user or an admin.
func CanActFor(p model.Principal, userID int64) error {
	if p.UserID != userID && !p.IsAdmin() {
		return newError(ErrForbidden, "you can only act on your own data")
	}
	return nil
}
