package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths bypass authentication.
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type keyRole int

const (
	roleNone keyRole = iota
	roleReader
	roleAdmin
)

// keyring holds SHA-256 digests of the configured keys. lookup compares
// against every digest in constant time.
type keyring struct {
	keys [][sha256.Size]byte
	role []keyRole
}

func (k *keyring) add(key string, role keyRole) {
	if key == "" {
		return
	}
	sum := sha256.Sum256([]byte(key))
	for i, have := range k.keys {
		if have == sum {
			k.role[i] = max(k.role[i], role)
			return
		}
	}
	k.keys = append(k.keys, sum)
	k.role = append(k.role, role)
}

func (k *keyring) lookup(token string) keyRole {
	sum := sha256.Sum256([]byte(token))
	found := roleNone
	for i := range k.keys {
		if subtle.ConstantTimeCompare(sum[:], k.keys[i][:]) == 1 {
			found = k.role[i]
		}
	}
	return found
}

// mutatesCatalog reports whether the request changes mounted attributes or the pivot space.
func mutatesCatalog(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/catalog") || r.URL.Path == "/pivot"
}

// BearerAuthMiddleware validates Bearer tokens.
// With no keys at all, authentication is disabled.
// When adminKeys is non-empty, only those keys may mutate the catalog;
// admin keys are valid API keys as well.
func BearerAuthMiddleware(apiKeys, adminKeys []string) func(http.Handler) http.Handler {
	ring := &keyring{}
	readerRole := roleReader
	if len(nonEmpty(adminKeys)) == 0 {
		readerRole = roleAdmin
	}
	for _, k := range apiKeys {
		ring.add(k, readerRole)
	}
	for _, k := range adminKeys {
		ring.add(k, roleAdmin)
	}

	return func(next http.Handler) http.Handler {
		if len(ring.keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			switch role := ring.lookup(auth[len(bearerPrefix):]); {
			case role == roleNone:
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
			case role == roleReader && mutatesCatalog(r):
				writeError(w, http.StatusForbidden, CodeForbidden, "api key may not modify the catalog")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func nonEmpty(keys []string) []string {
	out := keys[:0:0]
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
