package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// Middleware は Bearer トークンを検証し、Principal をリクエストのコンテキストに格納します。
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := v.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			status, message := httpStatus(err)
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// RequireRole は Principal が role を持たない場合に 403 を返します。
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromGin(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}
		if p.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

// PrincipalFromGin は Middleware が格納した Principal を返します。
func PrincipalFromGin(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func httpStatus(err error) (int, string) {
	var blocked *BlockedError
	switch {
	case errors.As(err, &blocked):
		return http.StatusForbidden, blocked.Error()
	case errors.Is(err, ErrAccountBlocked):
		return http.StatusForbidden, ErrAccountBlocked.Error()
	case errors.Is(err, ErrMissingToken):
		return http.StatusUnauthorized, ErrMissingToken.Error()
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, ErrInvalidToken.Error()
	case errors.Is(err, ErrUnknownAccount):
		return http.StatusUnauthorized, ErrUnknownAccount.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
