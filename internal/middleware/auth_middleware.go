package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID      = "userID"
	ContextUserEmail   = "userEmail"
	ContextDisplayName = "userDisplayName"
	ContextPhotoURL    = "userPhotoURL"
)

// ContextEmailVerified is true only when the issuer vouches for the e-mail.
const ContextEmailVerified = "userEmailVerified"

// SessionCookie is read when no Authorization header is sent.
const SessionCookie = "session"

// ErrorResponse mirrors api.ErrorResponse to avoid an import cycle.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// VerifiedToken is the caller identity extracted from a valid token.
type VerifiedToken struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*VerifiedToken, error)
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier checks Firebase ID tokens with the Admin SDK.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier wraps a Firebase Auth client.
func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*VerifiedToken, error) {
	token, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	out := &VerifiedToken{Subject: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		out.Email = email
	}
	if verified, ok := token.Claims["email_verified"].(bool); ok {
		out.EmailVerified = verified && out.Email != ""
	}
	if name, ok := token.Claims["name"].(string); ok {
		out.Name = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		out.Picture = picture
	}
	return out, nil
}

// SessionClaims are the claims of an HS256 session token issued by the dashboard.
type SessionClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 session tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a JWTVerifier for secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (*VerifiedToken, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" && claims.Email == "" {
		return nil, errors.New("token carries neither subject nor email")
	}
	// Session tokens are minted by the dashboard after it has checked the e-mail.
	return &VerifiedToken{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.Email != "",
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// AuthMiddleware authenticates dashboard requests with a TokenVerifier.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("AuthMiddleware requires a TokenVerifier")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// VerifyToken reads the token from the Authorization header or the session cookie
// and stores the caller identity in the gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}

		token, err := m.verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			m.logger.Debug("Token verification failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		c.Set(ContextUserID, token.Subject)
		c.Set(ContextUserEmail, token.Email)
		c.Set(ContextEmailVerified, token.EmailVerified)
		if token.Name != "" {
			c.Set(ContextDisplayName, token.Name)
		}
		if token.Picture != "" {
			c.Set(ContextPhotoURL, token.Picture)
		}
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", errors.New("Authorization header format must be 'Bearer {token}'")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, nil
	}
	return "", errors.New("Authorization header is required")
}
