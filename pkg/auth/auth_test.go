package auth

import (
	"bufio"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramondl/httpserv/internal/protocol/http"
)

func TestLoadCredentials(t *testing.T) {
	t.Run("ParsesUsersAndSkipsComments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.txt")
		content := "# users\nalice:secret\n\nbob:pa:ss:word\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		store, err := LoadCredentials(path)
		require.NoError(t, err)
		assert.Equal(t, 2, store.Len())

		pass, ok := store.Lookup("alice")
		require.True(t, ok)
		assert.Equal(t, "secret", pass)

		pass, ok = store.Lookup("bob")
		require.True(t, ok)
		assert.Equal(t, "pa:ss:word", pass, "password keeps everything after the first colon")
	})

	t.Run("RejectsLinesWithoutColon", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.txt")
		require.NoError(t, os.WriteFile(path, []byte("justauser\n"), 0o644))

		_, err := LoadCredentials(path)
		assert.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadCredentials(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

func requestWithAuth(t *testing.T, header string) *http.Request {
	t.Helper()
	raw := "GET /secret.html HTTP/1.1\r\n"
	if header != "" {
		raw += "Authorization: " + header + "\r\n"
	}
	raw += "\r\n"

	req, err := http.ReadRequest(bufio.NewReader(strings.NewReader(raw)), 0)
	require.NoError(t, err)
	return req
}

func basicToken(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestAuthenticator(t *testing.T) {
	store := NewCredentialStore(map[string]string{"alice": "secret"})
	a := NewAuthenticator(store, "protected area")

	t.Run("ValidCredentials", func(t *testing.T) {
		req := requestWithAuth(t, basicToken("alice", "secret"))
		assert.NoError(t, a.Authenticate(req))
	})

	t.Run("MissingHeader", func(t *testing.T) {
		err := a.Authenticate(requestWithAuth(t, ""))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("WrongScheme", func(t *testing.T) {
		err := a.Authenticate(requestWithAuth(t, "Bearer abcdef"))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("MalformedBase64", func(t *testing.T) {
		err := a.Authenticate(requestWithAuth(t, "Basic !!!not-base64!!!"))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		err := a.Authenticate(requestWithAuth(t, basicToken("mallory", "secret")))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		err := a.Authenticate(requestWithAuth(t, basicToken("alice", "guess")))
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("SchemeIsCaseInsensitive", func(t *testing.T) {
		token := strings.Replace(basicToken("alice", "secret"), "Basic", "basic", 1)
		assert.NoError(t, a.Authenticate(requestWithAuth(t, token)))
	})

	t.Run("Challenge", func(t *testing.T) {
		assert.Equal(t, `Basic realm="protected area"`, a.Challenge())
	})
}
