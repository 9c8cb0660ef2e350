package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eln-app/eln-api/internal/config"
	infraerrors "github.com/eln-app/eln-api/internal/pkg/errors"
	"github.com/eln-app/eln-api/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var (
	ErrTokenInvalid       = infraerrors.Unauthorized("TOKEN_INVALID", "invalid or expired token")
	ErrUnauthenticated    = infraerrors.Unauthorized("UNAUTHENTICATED", "authentication required")
	ErrAdminRequired      = infraerrors.Forbidden("ADMIN_REQUIRED", "admin role required")
	errMissingBearerToken = errors.New("missing bearer token")
)

// Claims are the session token claims.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware authenticates session tokens for requests no API key
// claimed.
type JWTAuthMiddleware struct {
	secret []byte
	issuer string
}

// NewJWTAuthMiddleware creates the JWT authenticator.
func NewJWTAuthMiddleware(cfg *config.Config) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{secret: []byte(cfg.JWT.Secret), issuer: cfg.JWT.Issuer}
}

// IssueToken signs an HS256 session token.
func (m *JWTAuthMiddleware) IssueToken(userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *JWTAuthMiddleware) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Handler authenticates "Authorization: Bearer <jwt>" when no earlier
// authenticator set a subject. A request without the header passes untouched;
// a malformed or expired token is rejected.
func (m *JWTAuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetAuthSubjectFromContext(c); ok {
			c.Next()
			return
		}
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if errors.Is(err, errMissingBearerToken) {
			c.Next()
			return
		}
		if err != nil || len(m.secret) == 0 {
			response.ErrorFrom(c, ErrTokenInvalid)
			return
		}

		claims, err := m.parse(raw)
		if err != nil {
			response.ErrorFrom(c, ErrTokenInvalid.WithCause(err))
			return
		}
		uid := claims.UserID
		c.Set(string(ContextKeyAuthSubject), AuthSubject{
			UserID: &uid,
			Method: AuthMethodJWT,
			Role:   claims.Role,
		})
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingBearerToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("malformed authorization header")
	}
	return strings.TrimSpace(token), nil
}
