package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ramondl/httpserv/internal/protocol/http"
)

// ErrUnauthorized is returned for every authentication failure: missing
// Authorization header, malformed token, unknown user or wrong password.
// Callers must short-circuit with a 401 challenge and never fall through
// to routing.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator validates Basic credentials on incoming requests.
type Authenticator struct {
	store *CredentialStore

	// Realm names the protected realm in the WWW-Authenticate challenge.
	Realm string
}

// NewAuthenticator returns an Authenticator checking against store.
func NewAuthenticator(store *CredentialStore, realm string) *Authenticator {
	if realm == "" {
		realm = "httpserv"
	}
	return &Authenticator{store: store, Realm: realm}
}

// Challenge returns the WWW-Authenticate header value sent with 401
// responses.
func (a *Authenticator) Challenge() string {
	return fmt.Sprintf("Basic realm=%q", a.Realm)
}

// Authenticate checks the request's Authorization header against the
// credential store. The token is base64 of `user:password`; the split is at
// the first ':' so passwords may contain colons. The password comparison is
// constant-time.
func (a *Authenticator) Authenticate(req *http.Request) error {
	value, ok := req.Header("Authorization")
	if !ok {
		return fmt.Errorf("%w: missing Authorization header", ErrUnauthorized)
	}

	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return fmt.Errorf("%w: unsupported authorization scheme", ErrUnauthorized)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return fmt.Errorf("%w: malformed token", ErrUnauthorized)
	}

	user, pass, found := strings.Cut(string(decoded), ":")
	if !found {
		return fmt.Errorf("%w: malformed credentials", ErrUnauthorized)
	}

	want, ok := a.store.Lookup(user)
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(pass)) != 1 {
		return fmt.Errorf("%w: invalid credentials for %q", ErrUnauthorized, user)
	}
	return nil
}
