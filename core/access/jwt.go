package access

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/flexbase-tech/flexbase/core/logger"
)

// JwtMiddlewareBuilder is a helper builder for the JWT middleware
type JwtMiddlewareBuilder struct {
	// Secret is the HMAC signing secret application tokens were issued with
	Secret string
	// Issuer, when set, is the only accepted token issuer
	Issuer string
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body, _ := json.Marshal(errorResponse{Success: false, Message: message})
	w.Write(body)
}

// NewJwtMiddleware returns a middleware handler to validate JWT bearer
// tokens issued for an application.
//
// Tokens are accepted as "Authorization: Bearer" header. Verified claims
// are turned into an Authorization carrying the caller identity and the
// application id, which is added to the request context. Requests without
// a token pass through unauthorized; route handlers decide whether an
// authorization is required.
func NewJwtMiddleware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {

	authCache := NewAuthorizationCache()

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := AuthorizationFromContext(r.Context()); auth != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}

			rlog := logger.FromContext(r.Context())

			tokenString := ""
			bearer := r.Header.Get("Authorization")
			if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
				tokenString = bearer[7:]
			}
			if tokenString == "" {
				h.ServeHTTP(w, r)
				return
			}

			if auth := authCache.Read(tokenString); auth != nil {
				ctx := auth.ContextWithAuthorization(r.Context())
				ctx, _ = logger.ContextWithLoggerIdentity(ctx, auth.Identity)
				h.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jmb.Secret), nil
			})
			if err != nil || !token.Valid {
				rlog.WithError(err).Debugln("invalid bearer token")
				writeUnauthorized(w, "invalid or expired token")
				return
			}
			if jmb.Issuer != "" {
				if !claims.VerifyIssuer(jmb.Issuer, true) {
					writeUnauthorized(w, "invalid token issuer")
					return
				}
			}

			auth := &Authorization{}
			if identity, ok := claims["identity"].(string); ok {
				auth.Identity = identity
			} else if sub, ok := claims["sub"].(string); ok {
				auth.Identity = sub
			}
			if applicationID, ok := claims["application_id"].(float64); ok {
				auth.ApplicationID = int64(applicationID)
			}
			if roles, ok := claims["roles"].([]interface{}); ok {
				for _, role := range roles {
					if s, ok := role.(string); ok {
						auth.Roles = append(auth.Roles, s)
					}
				}
			}

			authCache.Write(tokenString, auth)
			ctx := auth.ContextWithAuthorization(r.Context())
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, auth.Identity)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
