package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretVerifier(t *testing.T) {
	verifier := NewSecretVerifier("hunter2")
	require.True(t, verifier.Verify("hunter2"))
	require.False(t, verifier.Verify("hunter3"))
	require.False(t, verifier.Verify(""))

	// An unset secret must never authenticate anyone.
	empty := NewSecretVerifier("")
	require.False(t, empty.Verify(""))
	require.False(t, empty.Verify("anything"))
}

func TestRequireSecret(t *testing.T) {
	called := false
	handler := RequireSecret(NewSecretVerifier("s3cret"), SyncSecretHeader)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusNoContent)
		}))

	t.Run("missing secret", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, called, "handler must not run without a valid secret")
	})

	t.Run("wrong secret", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(SyncSecretHeader, "wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.False(t, called)
	})

	t.Run("header secret", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(SyncSecretHeader, "s3cret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.True(t, called)
	})

	t.Run("bearer token", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.True(t, called)
	})
}
