package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware(testSecret), func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok {
			c.JSON(500, gin.H{"error": "no identity"})
			return
		}
		c.JSON(200, gin.H{"uid": id.UserID, "name": id.Username})
	})
	return r
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	r := testRouter()

	token, err := Token(testSecret, Identity{UserID: 7, Username: "alice"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"uid":7,"name":"alice"}`, w.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	r := testRouter()

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not.a.token",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestMiddlewareRejectsWrongSecret(t *testing.T) {
	r := testRouter()

	token, err := Token([]byte("other-secret"), Identity{UserID: 7, Username: "alice"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	r := testRouter()

	token, err := Token(testSecret, Identity{UserID: 7, Username: "alice"}, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
