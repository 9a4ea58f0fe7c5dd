package stub

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stemsi/exstem-client/internal/apierr"
	"github.com/stemsi/exstem-client/internal/response"
)

// contextKeyCandidate is the Gin context key for the candidate ID.
const contextKeyCandidate = "candidate_id"

// MintToken issues an HS256 bearer token for a candidate. The session
// client under test carries it on every request.
func MintToken(secret, candidateID string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   candidateID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// requireCandidate validates the bearer token and stores the candidate
// ID on the context.
func requireCandidate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.AbortFail(c, http.StatusUnauthorized, apierr.ErrUnauthorized)
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			response.AbortFail(c, http.StatusUnauthorized, apierr.ErrUnauthorized)
			return
		}

		c.Set(contextKeyCandidate, claims.Subject)
		c.Next()
	}
}

func candidateID(c *gin.Context) string {
	v, _ := c.Get(contextKeyCandidate)
	id, _ := v.(string)
	return id
}
