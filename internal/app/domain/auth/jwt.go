package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	userIDKey        = "user_id"
	authenticatedKey = "authenticated"
)

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	SecretKey       string
	TokenExpiration time.Duration
	Logger          *zap.Logger
	Optional        bool // If true, missing/invalid tokens won't block the request
}

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTService creates a new JWT service
func NewJWTService() *JWTService {
	return &JWTService{}
}

type JWTService struct{}

// GenerateToken signs an HS256 token for userID. Tokens are normally issued by
// the identity provider; this exists for tooling and tests.
func (s *JWTService) GenerateToken(config JWTConfig, userID, email, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Email:    email,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(config.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(config.SecretKey))
	if err != nil {
		if config.Logger != nil {
			config.Logger.Error("Failed to sign token", zap.Error(err))
		}
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken parses and validates a JWT token
func (s *JWTService) ValidateToken(config JWTConfig, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.SecretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("token user_id is not a uuid: %w", err)
	}

	return claims, nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// JWTAuthMiddleware authenticates requests from the Authorization: Bearer
// header and stores the caller's id on the gin context.
func JWTAuthMiddleware(config JWTConfig) gin.HandlerFunc {
	service := NewJWTService()
	return func(c *gin.Context) {
		tokenString := bearerToken(c)

		if tokenString == "" {
			if config.Optional {
				c.Set(authenticatedKey, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := service.ValidateToken(config, tokenString)
		if err != nil {
			if config.Logger != nil {
				config.Logger.Debug("Rejected bearer token", zap.Error(err))
			}
			if config.Optional {
				c.Set(authenticatedKey, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// ValidateToken already checked the format.
		userID := uuid.MustParse(claims.UserID)
		c.Set(userIDKey, userID)
		c.Set(authenticatedKey, true)
		c.Next()
	}
}

// UserIDFromContext returns the authenticated caller, if any.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
