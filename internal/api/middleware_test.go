package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"droply/internal/auth"

	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	claims *auth.AppClaims
}

func (v stubVerifier) Verify(token string) (*auth.AppClaims, error) {
	if token != "good-token" {
		return nil, auth.ErrInvalidToken
	}
	return v.claims, nil
}

func TestAuthMiddleware(t *testing.T) {
	claims := &auth.AppClaims{UserID: "user_mw_test"}
	srv := NewServer(nil, nil, nil, stubVerifier{claims: claims}, nil)

	var seen *auth.AppClaims
	handler := srv.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	run := func(authorization string) *httptest.ResponseRecorder {
		seen = nil
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/me", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		handler.ServeHTTP(rr, req)
		return rr
	}

	t.Run("passes valid bearer tokens through", func(t *testing.T) {
		rr := run("Bearer good-token")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, claims, seen)
	})

	t.Run("rejects a missing header", func(t *testing.T) {
		rr := run("")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Nil(t, seen)
	})

	t.Run("rejects a malformed header", func(t *testing.T) {
		rr := run("Basic abc")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Nil(t, seen)
	})

	t.Run("rejects a bad token", func(t *testing.T) {
		rr := run("Bearer forged-token")
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Nil(t, seen)
	})
}

func TestGetUserFromContextWithoutClaims(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	require.Nil(t, GetUserFromContext(req.Context()))
}
