package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CtxClaimsKey is where AuthMiddleware stores the parsed claims on the gin
// context.
const CtxClaimsKey = "auth_claims"

// AuthMiddleware rejects requests without a valid bearer token. With a
// non-nil repo the claims' token version is also checked against the stored
// one, so bumping the version invalidates every token issued before it.
func AuthMiddleware(tokens TokenService, repo *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, raw, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "bearer") {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		if repo != nil {
			version, err := repo.GetTokenVersion(c.Request.Context(), claims.UserID)
			if err != nil || version != claims.TokenVersion {
				abortUnauthorized(c, "token no longer valid")
				return
			}
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
	c.Abort()
}

// MustGetClaims returns the claims AuthMiddleware stored. It is only
// meaningful on routes behind the middleware; elsewhere it returns nil.
func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
