package access_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/flexbase-tech/flexbase/core/access"
)

func TestAuthorization(t *testing.T) {
	auth := &access.Authorization{Identity: "maria@example.com", ApplicationID: 7, Roles: []string{"tenant"}}

	assert.True(t, auth.HasRole("tenant"))
	assert.False(t, auth.HasRole("admin"))
	assert.True(t, auth.ForApplication(7))
	assert.False(t, auth.ForApplication(8))

	admin := &access.Authorization{Identity: "root", Roles: []string{"admin"}}
	assert.True(t, admin.ForApplication(7))
	assert.True(t, admin.ForApplication(8))

	var nilAuth *access.Authorization
	assert.False(t, nilAuth.HasRole("admin"))
	assert.False(t, nilAuth.ForApplication(7))
}

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func jwtTestRouter(secret string, received **access.Authorization) *mux.Router {
	router := mux.NewRouter()
	router.Use(access.NewJwtMiddleware(&access.JwtMiddlewareBuilder{Secret: secret}))
	router.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		*received = access.AuthorizationFromContext(r.Context())
	})
	return router
}

func TestJwtMiddleware(t *testing.T) {
	var received *access.Authorization
	router := jwtTestRouter("secret", &received)

	token := signedToken(t, "secret", jwt.MapClaims{
		"identity":       "maria@example.com",
		"application_id": float64(7),
		"roles":          []interface{}{"tenant"},
		"exp":            time.Now().Add(time.Hour).Unix(),
	})

	r := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, received)
	assert.Equal(t, "maria@example.com", received.Identity)
	assert.Equal(t, int64(7), received.ApplicationID)
	assert.True(t, received.HasRole("tenant"))

	// second request with the same token is answered from the cache
	received = nil
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, received)
	assert.Equal(t, int64(7), received.ApplicationID)
}

func TestJwtMiddleware_NoToken(t *testing.T) {
	var received *access.Authorization
	router := jwtTestRouter("secret", &received)

	// requests without a token pass through unauthorized
	r := httptest.NewRequest(http.MethodGet, "/probe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, received)
}

func TestJwtMiddleware_InvalidToken(t *testing.T) {
	var received *access.Authorization
	router := jwtTestRouter("secret", &received)

	token := signedToken(t, "wrong secret", jwt.MapClaims{"identity": "maria@example.com"})

	r := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, received)
}
