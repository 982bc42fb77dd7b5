package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/warp/pos-ledger/ledger"
)

// AnonymousCaller is bound to every request when authentication is off.
var AnonymousCaller = ledger.Caller{ID: "anonymous", Name: "anonymous"}

type tokenEntry struct {
	token  []byte
	caller ledger.Caller
}

// Authenticator resolves "Authorization: Bearer <token>" to a ledger caller.
type Authenticator struct {
	disabled bool
	tokens   []tokenEntry
}

// NewAuthenticator maps each token to the caller name it authenticates.
// With disabled set every request runs as AnonymousCaller.
func NewAuthenticator(tokens map[string]string, disabled bool) *Authenticator {
	a := &Authenticator{disabled: disabled}
	for token, name := range tokens {
		a.tokens = append(a.tokens, tokenEntry{
			token:  []byte(token),
			caller: ledger.Caller{ID: name, Name: name},
		})
	}
	return a
}

// Middleware binds the caller to the request context or answers 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.disabled {
			next.ServeHTTP(w, r.WithContext(ledger.WithCaller(r.Context(), AnonymousCaller)))
			return
		}
		caller, ok := a.lookup(bearerToken(r))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pos"`)
			writeError(w, http.StatusUnauthorized, "Unauthenticated", ledger.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(ledger.WithCaller(r.Context(), caller)))
	})
}

func (a *Authenticator) lookup(token string) (ledger.Caller, bool) {
	if token == "" {
		return ledger.Caller{}, false
	}
	var (
		found  ledger.Caller
		ok     bool
		candid = []byte(token)
	)
	// Compare against every entry so timing does not reveal a match position.
	for _, e := range a.tokens {
		if subtle.ConstantTimeCompare(e.token, candid) == 1 {
			found, ok = e.caller, true
		}
	}
	return found, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
