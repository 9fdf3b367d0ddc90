package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"parttrack/internal/config"
	"parttrack/internal/constants"
	pkgerrors "parttrack/pkg/errors"
	"parttrack/pkg/logging"
)

const rolesContextKey = "roles"

// Claims carries the identity the parent application issues. Subject is the
// username recorded as actor on audit logs.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTAuth verifies the Bearer token and places the actor and roles on the
// request. With auth disabled the actor falls back to the X-Actor header so
// audit logs stay usable in internal deployments.
func JWTAuth(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			if actor := c.GetHeader("X-Actor"); actor != "" {
				setActor(c, actor)
			}
			c.Next()
			return
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			unauthorized(c, "authorization is required")
			return
		}

		parseOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
		if cfg.JWT.Issuer != "" {
			parseOpts = append(parseOpts, jwt.WithIssuer(cfg.JWT.Issuer))
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWT.Secret), nil
		}, parseOpts...)
		if err != nil || !token.Valid {
			unauthorized(c, "invalid or expired token")
			return
		}

		setActor(c, claims.Subject)
		c.Set(rolesContextKey, claims.Roles)
		c.Next()
	}
}

// RequireRole rejects requests whose token does not carry the role. Admins
// pass every role check.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(rolesContextKey)
		if !exists {
			// Auth disabled: role checks are not enforceable.
			c.Next()
			return
		}

		roles, ok := value.([]string)
		if !ok {
			forbidden(c, "invalid roles claim")
			return
		}

		for _, r := range roles {
			if r == role || r == constants.RoleAdmin {
				c.Next()
				return
			}
		}

		forbidden(c, "role required: "+role)
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func setActor(c *gin.Context, actor string) {
	c.Set(logging.ActorKey, actor)
	c.Request = c.Request.WithContext(logging.WithActor(c.Request.Context(), actor))
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		pkgerrors.ToErrorResponse(pkgerrors.ErrUnauthorized.WithMessage(message)))
}

func forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden,
		pkgerrors.ToErrorResponse(pkgerrors.ErrForbidden.WithMessage(message)))
}
